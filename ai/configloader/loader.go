// Package configloader reads YAML configuration such as prompt personas,
// with an optional compiled-in fallback.
package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader reads YAML files relative to a base directory.
type Loader struct {
	baseDir  string
	fallback fs.FS
}

// NewLoader creates a new configuration loader. fallback, when non-nil, is
// consulted after the filesystem lookups fail.
func NewLoader(baseDir string, fallback fs.FS) *Loader {
	return &Loader{baseDir: baseDir, fallback: fallback}
}

// Load reads subPath and unmarshals it into target.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.ReadFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}
	return nil
}

// ReadFileWithFallback tries, in order: baseDir, baseDir next to the
// executable, then the fallback filesystem.
func (l *Loader) ReadFileWithFallback(path string) ([]byte, error) {
	var errs []error

	if l.baseDir != "" {
		data, err := os.ReadFile(filepath.Join(l.baseDir, path))
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)

		if execPath, err := os.Executable(); err == nil && !filepath.IsAbs(l.baseDir) {
			data, err := os.ReadFile(filepath.Join(filepath.Dir(execPath), l.baseDir, path))
			if err == nil {
				return data, nil
			}
			errs = append(errs, err)
		}
	}

	if l.fallback != nil {
		data, err := fs.ReadFile(l.fallback, filepath.ToSlash(path))
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, fs.ErrNotExist
	}
	return nil, errors.Join(errs...)
}

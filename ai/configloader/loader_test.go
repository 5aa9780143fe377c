package configloader

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type persona struct {
	Name  string   `yaml:"name"`
	Rules []string `yaml:"rules"`
}

func TestLoad_PrefersBaseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "p.yaml"), []byte("name: disk\nrules: [a, b]\n"), 0o644))

	fallback := fstest.MapFS{"prompts/p.yaml": {Data: []byte("name: embedded\n")}}

	var p persona
	require.NoError(t, NewLoader(dir, fallback).Load("prompts/p.yaml", &p))
	assert.Equal(t, "disk", p.Name)
	assert.Equal(t, []string{"a", "b"}, p.Rules)
}

func TestLoad_Fallback(t *testing.T) {
	fallback := fstest.MapFS{"prompts/p.yaml": {Data: []byte("name: embedded\n")}}

	var p persona
	require.NoError(t, NewLoader(t.TempDir(), fallback).Load("prompts/p.yaml", &p))
	assert.Equal(t, "embedded", p.Name)
}

func TestLoad_Errors(t *testing.T) {
	var p persona
	assert.Error(t, NewLoader(t.TempDir(), nil).Load("missing.yaml", &p))

	bad := fstest.MapFS{"bad.yaml": {Data: []byte("name: [unclosed\n")}}
	assert.ErrorContains(t, NewLoader("", bad).Load("bad.yaml", &p), "unmarshal YAML")
}

// Package corpus loads the book summary collection and resolves titles to
// their canonical full summaries.
package corpus

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

const titlePrefix = "## Title: "

// Book is one corpus entry.
type Book struct {
	Title   string
	Summary string
}

// Parse reads the summary format: a "## Title: <title>" line followed by
// summary lines, which are trimmed and joined with single spaces. Blank
// lines are ignored and a title without any summary text is dropped.
func Parse(r io.Reader) ([]Book, error) {
	var (
		books   []Book
		title   string
		summary []string
	)
	flush := func() {
		if title != "" && len(summary) > 0 {
			books = append(books, Book{Title: title, Summary: strings.Join(summary, " ")})
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, titlePrefix):
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, titlePrefix))
			summary = nil
		case line != "":
			summary = append(summary, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read corpus")
	}
	flush()
	return books, nil
}

// LoadFile parses the corpus file at path.
func LoadFile(path string) ([]Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open corpus %s", path)
	}
	defer f.Close()
	return Parse(f)
}

// NormalizeTitle folds case, trims, collapses whitespace runs and strips
// punctuation so "The Hobbit", " the   hobbit " and "The Hobbit." match.
func NormalizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			continue
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteString(string(unicode.ToLower(r)))
		}
	}
	return b.String()
}

// Library is an immutable, normalized-title index over the corpus.
type Library struct {
	books []Book
	index map[string]int
}

// NewLibrary indexes books. When two titles normalize to the same key the
// first one wins.
func NewLibrary(books []Book) *Library {
	l := &Library{books: books, index: make(map[string]int, len(books))}
	for i, b := range books {
		key := NormalizeTitle(b.Title)
		if _, dup := l.index[key]; dup {
			slog.Warn("Corpus: duplicate title ignored", "title", b.Title)
			continue
		}
		l.index[key] = i
	}
	return l
}

// Lookup returns the canonical entry for title, or nil when absent.
func (l *Library) Lookup(_ context.Context, title string) (*Book, error) {
	i, ok := l.index[NormalizeTitle(title)]
	if !ok {
		return nil, nil
	}
	b := l.books[i]
	return &b, nil
}

// Books returns the corpus in file order.
func (l *Library) Books() []Book {
	out := make([]Book, len(l.books))
	copy(out, l.books)
	return out
}

// Len returns the number of entries.
func (l *Library) Len() int {
	return len(l.books)
}

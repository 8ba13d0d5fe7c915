package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nao1215/lexcrawl/internal/model"
)

// Errors returned by the page store.
var (
	// ErrPersist wraps every I/O failure while saving a page. It is fatal for a crawl.
	ErrPersist = errors.New("failed to persist page")

	// ErrOutOfOrder is returned when a page does not carry the next sequence number.
	ErrOutOfOrder = errors.New("page sequence out of order")

	// ErrMalformedIndex is returned when a page index line cannot be parsed.
	ErrMalformedIndex = errors.New("malformed page index line")

	// ErrPageNotFound is returned when a page file does not exist.
	ErrPageNotFound = errors.New("page not found")

	// ErrAmbiguousPage is returned when a page exists under several widths.
	ErrAmbiguousPage = errors.New("page stored under several file names")
)

// MinSeqWidth is the minimum number of digits of a page file name.
const MinSeqWidth = 3

// SeqWidth returns the file name width needed to number pageCap pages.
func SeqWidth(pageCap int) int {
	return max(MinSeqWidth, len(strconv.Itoa(pageCap)))
}

// PageFileName returns the file name of page seq, e.g. "007.html".
func PageFileName(seq, width int) string {
	return fmt.Sprintf("%0*d.html", width, seq)
}

// isPageFileName reports whether name is a page file or a leftover
// temporary file of one.
func isPageFileName(name string) bool {
	if tmp, ok := strings.CutPrefix(name, "."); ok && strings.HasSuffix(name, ".tmp") {
		name, _, _ = strings.Cut(tmp, ".html.")
		name += ".html"
	}
	stem, ok := strings.CutSuffix(name, ".html")
	if !ok || stem == "" {
		return false
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// removePages deletes the page files of an earlier crawl from dir.
// Other files are left alone.
func removePages(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isPageFileName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// PageStore writes pages and the page index of one crawl.
// Save is safe for concurrent use; pages must still arrive in sequence order.
type PageStore struct {
	dir       string
	indexPath string
	width     int

	mu      sync.Mutex
	index   *os.File
	lastSeq int
}

// Option configures a PageStore.
type Option func(*PageStore)

// WithSeqWidth sets the minimum digit count of page file names.
func WithSeqWidth(width int) Option {
	return func(s *PageStore) {
		if width > 0 {
			s.width = width
		}
	}
}

// Create prepares a fresh page store: it creates dir, removes the page
// files of any earlier crawl from it and truncates the page index.
func Create(dir, indexPath string, opts ...Option) (*PageStore, error) {
	s := &PageStore{
		dir:       dir,
		indexPath: indexPath,
		width:     MinSeqWidth,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create page directory: %w", ErrPersist, err)
	}
	if err := removePages(dir); err != nil {
		return nil, fmt.Errorf("%w: remove earlier pages: %w", ErrPersist, err)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create index directory: %w", ErrPersist, err)
	}

	index, err := os.OpenFile(indexPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open page index: %w", ErrPersist, err)
	}
	s.index = index
	return s, nil
}

// Dir returns the page directory.
func (s *PageStore) Dir() string {
	return s.dir
}

// Count returns the number of saved pages.
func (s *PageStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// Save writes the page content to its NNN.html file and appends its entry
// to the page index. page.Seq must be exactly one more than the previous page.
func (s *PageStore) Save(page *model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return fmt.Errorf("%w: store is closed", ErrPersist)
	}
	if page.Seq != s.lastSeq+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, page.Seq, s.lastSeq+1)
	}

	path := filepath.Join(s.dir, PageFileName(page.Seq, s.width))
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(page.Content)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	entry := model.IndexEntry{Seq: page.Seq, URL: page.URL}
	if _, err := s.index.WriteString(entry.String() + "\n"); err != nil {
		return fmt.Errorf("%w: append page index: %w", ErrPersist, err)
	}
	if err := s.index.Sync(); err != nil {
		return fmt.Errorf("%w: sync page index: %w", ErrPersist, err)
	}

	s.lastSeq = page.Seq
	return nil
}

// Close closes the page index.
func (s *PageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

// WriteFileAtomic streams the output of write into a temporary file in the
// directory of path, syncs it and renames it over path. On failure path is
// left untouched and the temporary file is removed.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadIndex reads a page index file. Blank lines are ignored.
func ReadIndex(indexPath string) ([]model.IndexEntry, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open page index: %w", err)
	}
	defer f.Close()

	entries := make([]model.IndexEntry, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		seqField, url, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedIndex, lineNo, line)
		}
		seq, err := strconv.Atoi(seqField)
		if err != nil || seq < 1 {
			return nil, fmt.Errorf("%w: line %d: bad sequence number %q", ErrMalformedIndex, lineNo, seqField)
		}
		entries = append(entries, model.IndexEntry{Seq: seq, URL: strings.TrimSpace(url)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read page index: %w", err)
	}
	return entries, nil
}

// PagePath finds the file of page seq in dir. Any zero-padding width of at
// least MinSeqWidth is accepted, but only one file may match.
func PagePath(dir string, seq int) (string, error) {
	found := ""
	for width := MinSeqWidth; width <= 10; width++ {
		path := filepath.Join(dir, PageFileName(seq, width))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("%w: %s and %s", ErrAmbiguousPage, filepath.Base(found), filepath.Base(path))
		}
		found = path
	}
	if found == "" {
		return "", fmt.Errorf("%w: %d in %s", ErrPageNotFound, seq, dir)
	}
	return found, nil
}

// Load reads the content of page seq from dir.
func Load(dir string, seq int) ([]byte, error) {
	path, err := PagePath(dir, seq)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", seq, err)
	}
	return data, nil
}

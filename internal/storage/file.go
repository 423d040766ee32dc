package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"smartexpense/internal/codec"
	"smartexpense/internal/core"
)

// DefaultFileName is used when no storage path is configured.
const DefaultFileName = "expenses.csv"

// FileStore persists the whole collection in one flat file.
// It keeps no state between calls.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultFileName
	}
	return &FileStore{path: path}
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// LoadAll reads every well-formed record in file order. A missing file is an
// empty collection. Malformed lines are dropped and counted in skipped.
func (s *FileStore) LoadAll() (expenses []core.Expense, skipped int, err error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []core.Expense{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	expenses, skipped, err = ReadCSV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", s.path, err)
	}
	return expenses, skipped, nil
}

// SaveAll replaces the file content with expenses, one line each.
func (s *FileStore) SaveAll(expenses []core.Expense) error {
	return writeFileAtomic(s.path, func(w io.Writer) error {
		return WriteCSV(w, expenses, false)
	})
}

// ReadCSV decodes lines from r. Blank lines and the export header are ignored,
// undecodable lines are counted in skipped.
func ReadCSV(r io.Reader) (expenses []core.Expense, skipped int, err error) {
	expenses = []core.Expense{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" || codec.IsHeader(line) {
			continue
		}
		e, err := codec.Decode(line)
		if err != nil {
			skipped++
			continue
		}
		expenses = append(expenses, e)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	return expenses, skipped, nil
}

// WriteCSV writes one encoded line per expense, optionally preceded by the header.
func WriteCSV(w io.Writer, expenses []core.Expense, header bool) error {
	bw := bufio.NewWriter(w)
	if header {
		if _, err := bw.WriteString(codec.Header + "\n"); err != nil {
			return err
		}
	}
	for _, e := range expenses {
		if _, err := bw.WriteString(codec.Encode(e) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportCSV writes a standalone copy of expenses, with header, to path.
func ExportCSV(path string, expenses []core.Expense) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, expenses, true)
	})
}

// writeFileAtomic writes to a temporary sibling of path and renames it into
// place, so readers see either the old or the new content.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// CSVExporter writes exports to a caller-chosen path.
type CSVExporter struct {
	Path string
}

// Name identifies the export target.
func (x CSVExporter) Name() string {
	return "csv:" + x.Path
}

// Export implements services.Exporter.
func (x CSVExporter) Export(_ context.Context, expenses []core.Expense) error {
	return ExportCSV(x.Path, expenses)
}

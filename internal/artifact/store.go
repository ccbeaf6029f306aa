package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File names of the artifacts written by a run.
const (
	DOMFile         = "dom.html"
	ErrorScreenshot = "error.png"
	ErrorLog        = "error.log"
	ErrorStack      = "error-stack.txt"
	ErrorSummary    = "error-report.md"
)

// ErrInvalidName is returned for names that would escape the store directory.
var ErrInvalidName = errors.New("invalid artifact name")

// Store writes artifacts atomically into a single directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the location of the named artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write stores data under name and returns the final path.
func (s *Store) Write(name string, data []byte) (string, error) {
	return s.WriteFrom(name, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFrom stores whatever fill writes under name and returns the final path.
// If fill fails the previous file, if any, is left untouched.
func (s *Store) WriteFrom(name string, fill func(w io.Writer) error) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	path := s.Path(name)
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return path, nil
}

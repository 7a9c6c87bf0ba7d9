package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store places uploaded binaries on disk, outside any database transaction.
// Files land under <root>/<kind>/<nif>/ with a uuid suffix so re-uploads
// never clobber each other.
type Store struct {
	Root string
}

func New(root string) *Store { return &Store{Root: root} }

// SaveClientPhoto stores a client's photo or ID scan and returns the
// relative path recorded on the client.
func (s *Store) SaveClientPhoto(nif, filename string, r io.Reader) (string, error) {
	return s.save(filepath.Join("photos", sanitize(nif)), filename, r)
}

// SaveDocumentPDF stores a document's scanned PDF.
func (s *Store) SaveDocumentPDF(nif, docType, filename string, r io.Reader) (string, error) {
	return s.save(filepath.Join("documents", sanitize(nif), sanitize(docType)), filename, r)
}

// ExportsDir is where generated reports are written.
func (s *Store) ExportsDir() (string, error) {
	dir := filepath.Join(s.Root, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// ImportsDir holds uploaded spreadsheets prior to parsing.
func (s *Store) ImportsDir() (string, error) {
	dir := filepath.Join(s.Root, "imports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Store) save(subdir, filename string, r io.Reader) (string, error) {
	dir := filepath.Join(s.Root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	name := fmt.Sprintf("%s_%s%s", strings.TrimSuffix(sanitize(filename), ext), uuid.NewString()[:8], ext)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return replacer.Replace(s)
}

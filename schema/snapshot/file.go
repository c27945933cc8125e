package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/syssam/formulite/dialect"
)

// FileStore keeps the records in a YAML document on disk, the same format
// ReadFile accepts for schema-as-code files. Writes go through a temporary
// file and a rename, but are not part of the database transaction.
type FileStore struct {
	Path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, _ dialect.ExecQuerier, recs []Record) error {
	return WriteFile(s.Path, &Document{Revision: uuid.NewString(), Entities: recs})
}

// Load implements Store. A missing file has no records.
func (s *FileStore) Load(context.Context, dialect.ExecQuerier) ([]Record, error) {
	doc, err := ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Entities, nil
}

// Decode parses a YAML snapshot document.
func Decode(data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("snapshot: decode yaml: %w", err)
	}
	return doc, nil
}

// Encode renders a snapshot document as YAML.
func Encode(doc *Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode yaml: %w", err)
	}
	return data, nil
}

// ReadFile reads a YAML snapshot document.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// WriteFile atomically writes a YAML snapshot document.
func WriteFile(path string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".formulite-*.yaml")
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

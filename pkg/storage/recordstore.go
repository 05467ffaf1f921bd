package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/synaptica-ai/formrelay/pkg/common/models"
)

// ErrCorruptStore is matched by errors.Is when the document on disk is not a
// JSON object.
var ErrCorruptStore = errors.New("corrupt record store")

type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("record store %s is not a valid JSON object: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

func (e *CorruptStoreError) Is(target error) bool {
	return target == ErrCorruptStore
}

func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptStore)
}

// RecordStore owns a single JSON document mapping timestamp to field map.
// Every call re-reads and rewrites the whole file; the caller must ensure a
// single writer.
//
// Writes truncate and rewrite in place. A process killed mid-write can leave
// a partial document behind.
type RecordStore struct {
	path string
}

func NewRecordStore(path string) *RecordStore {
	return &RecordStore{path: path}
}

func (s *RecordStore) Path() string {
	return s.path
}

// Load returns the current document. A missing or empty file is an empty
// document.
func (s *RecordStore) Load() (models.Document, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading record store: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return models.Document{}, nil
	}

	var doc models.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, &CorruptStoreError{Path: s.path, Err: err}
	}
	if doc == nil {
		// "null" decodes without error but is not an object.
		return nil, &CorruptStoreError{Path: s.path, Err: errors.New("document is null")}
	}
	return doc, nil
}

// Append merges one record into the document under timestamp, overwriting an
// existing entry with the same key. The file is left untouched when the
// existing document cannot be read.
func (s *RecordStore) Append(timestamp string, fields models.FieldMap) error {
	doc, err := s.Load()
	if err != nil {
		return err
	}
	doc[timestamp] = fields

	content, err := encode(doc)
	if err != nil {
		return fmt.Errorf("encoding record store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating record store directory: %w", err)
	}
	if err := os.WriteFile(s.path, content, 0o644); err != nil {
		return fmt.Errorf("writing record store: %w", err)
	}
	return nil
}

func encode(doc models.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

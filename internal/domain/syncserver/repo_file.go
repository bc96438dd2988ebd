package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileStore keeps the document in memory and flushes it to a JSON file
// after every committed update.
type FileStore struct {
	path   string
	logger zerolog.Logger

	mu  sync.Mutex
	doc *Document
}

// OpenFileStore loads the document at path, creating the file with empty
// collections when it does not exist. An unreadable or corrupt file is
// logged and replaced in memory by an empty document; it is only
// overwritten by the next committed update.
func OpenFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: logger.With().Str("component", "document_store").Str("path", path).Logger(),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = NewDocument()
		if err := s.flush(s.doc); err != nil {
			return nil, fmt.Errorf("initialize data file: %w", err)
		}
		s.logger.Info().Msg("initialized empty data file")
	case err != nil:
		s.logger.Error().Err(err).Msg("error reading data file, starting from empty document")
		s.doc = NewDocument()
	default:
		doc := &Document{}
		if err := json.Unmarshal(raw, doc); err != nil {
			s.logger.Error().Err(err).Msg("error parsing data file, starting from empty document")
			doc = &Document{}
		}
		doc.normalize()
		s.doc = doc
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Snapshot(_ context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), nil
}

// Update commits fn's changes in memory and then writes the whole document.
// A failed write is logged and not retried: the change stays visible until
// the process restarts.
func (s *FileStore) Update(ctx context.Context, fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.doc.Clone()
	if err := fn(working); err != nil {
		return err
	}
	working.normalize()
	s.doc = working

	if err := s.flush(working); err != nil {
		s.logger.Error().Err(err).Msg("error writing data file")
	}
	return nil
}

// flush writes doc next to the target and renames it into place so a
// crash never leaves a truncated file behind.
func (s *FileStore) flush(doc *Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

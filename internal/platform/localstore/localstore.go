// Package localstore provides the per-device key-value store that backs the
// client: each key holds one JSON value, and the whole set lives in a single
// file on disk. Writes are durable before they return.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Keys used by the client.
const (
	KeyUsers          = "pd_users"
	KeyCurrentUser    = "pd_user"
	KeyPatientRecords = "pd_patient_records"
	KeyDoctorQRCodes  = "pd_doctor_qrcodes"
	KeyOutbox         = "pd_outbox"
)

var ErrEmptyKey = errors.New("key is required")

// KV is the storage contract the domain packages depend on. Get reports
// whether the key was present; absent keys leave v untouched.
type KV interface {
	Get(key string, v interface{}) (bool, error)
	Set(key string, v interface{}) error
	Delete(key string) error
}

// Store is a file-backed KV. Every Get reads the file so that changes made
// by other processes on the same device are observed; writes from this
// process are serialised and replace the file atomically.
type Store struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// Open prepares a store at path, creating the parent directory. The file
// itself is created on the first write.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("local store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create local store directory: %w", err)
	}
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "local_store").Str("path", path).Logger(),
	}, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Get(key string, v interface{}) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	s.mu.Lock()
	entries := s.loadOrEmpty()
	s.mu.Unlock()

	raw, ok := entries[key]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(key string, v interface{}) error {
	if key == "" {
		return ErrEmptyKey
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = raw
	return s.save(entries)
}

func (s *Store) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	entries := s.loadOrEmpty()
	s.mu.Unlock()

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// load reads the file. A missing file is an empty store; any other read or
// parse failure is returned so that writers never replace data they could
// not see.
func (s *Store) load() (map[string]json.RawMessage, error) {
	entries := map[string]json.RawMessage{}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read local store: %w", err)
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse local store: %w", err)
	}
	return entries, nil
}

// loadOrEmpty is load for readers: an unreadable store reads as empty.
func (s *Store) loadOrEmpty() map[string]json.RawMessage {
	entries, err := s.load()
	if err != nil {
		s.logger.Error().Err(err).Msg("error loading local store, treating as empty")
		return map[string]json.RawMessage{}
	}
	return entries
}

func (s *Store) save(entries map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write local store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close local store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace local store: %w", err)
	}
	return nil
}

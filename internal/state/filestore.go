// Package state provides lock-guarded JSON file persistence for the bot's
// collections (watchlist, monitored tokens, demo balances, caches). Each
// collection owns one FileStore; every mutation is a full read-modify-write
// guarded by the collection's own lock, and the store serializes the final
// write so concurrent savers can never interleave partial files.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileStore persists a single JSON document at a fixed path.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a store for the given path. The parent directory is
// created on the first save if it does not exist.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "FileStore").Str("file", filepath.Base(path)).Logger(),
	}
}

// Load reads the stored document into v. A missing or corrupt file is a cold
// start, not an error: v is left untouched and false is returned.
func (fs *FileStore) Load(v interface{}) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Warn().Err(err).Msg("Could not read state file, starting empty")
		}
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		fs.logger.Warn().Err(err).Msg("Corrupt state file, starting empty")
		return false
	}
	return true
}

// Save writes v as JSON. The write goes to a temp file in the same directory
// followed by a rename, so readers never observe a torn document.
func (fs *FileStore) Save(v interface{}) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (fs *FileStore) Path() string {
	return fs.path
}

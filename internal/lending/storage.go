package lending

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mrz1836/anchor/internal/fileutil"
)

const (
	cacheFilePermissions = 0o640
	cacheDirPermissions  = 0o750
)

// ErrCorruptCache indicates the cache file is malformed JSON.
var ErrCorruptCache = errors.New("estimate cache file is corrupted")

// CacheFile returns the default cache location under home.
func CacheFile(home string) string {
	return filepath.Join(home, "cache", "estimates.json")
}

// FileStorage persists a Cache as JSON.
type FileStorage struct {
	path string
}

// NewFileStorage creates file-backed cache storage at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the cache file path.
func (s *FileStorage) Path() string {
	return s.path
}

// Save writes the cache atomically.
func (s *FileStorage) Save(c *Cache) error {
	if err := os.MkdirAll(filepath.Dir(s.path), cacheDirPermissions); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return fileutil.WriteJSONAtomic(s.path, c, cacheFilePermissions)
}

// Load reads the cache. The returned cache is never nil: a missing file
// yields an empty cache, an unreadable one yields an empty cache and the read
// error, and a corrupt one is moved aside and reported with ErrCorruptCache.
func (s *FileStorage) Load() (*Cache, error) {
	// #nosec G304 -- cache path is under the anchor home directory
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewCache(), nil
	}
	if err != nil {
		return NewCache(), fmt.Errorf("reading cache file: %w", err)
	}

	c := NewCache()
	if err := json.Unmarshal(data, c); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(s.path, corruptPath); renameErr != nil {
			return NewCache(), fmt.Errorf("%w: %w (also failed to move file: %w)", ErrCorruptCache, err, renameErr)
		}
		return NewCache(), fmt.Errorf("%w: %w (moved to %s)", ErrCorruptCache, err, corruptPath)
	}
	if c.Entries == nil {
		c.Entries = make(map[string]Snapshot)
	}
	return c, nil
}

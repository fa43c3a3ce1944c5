package watchlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCacheMiss is returned by LocalCache.Load when the key was never stored.
var ErrCacheMiss = errors.New("watchlist: cache miss")

// LocalCache is a durable key/value slot for the store snapshot.
type LocalCache interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// FileCache keeps one JSON file per key under Dir.
type FileCache struct {
	Dir string
}

func NewFileCache(dir string) *FileCache {
	return &FileCache{Dir: dir}
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

func (c *FileCache) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return data, nil
}

// Save writes to a temp file and renames it over the target, so a reader
// never sees a half-written snapshot.
func (c *FileCache) Save(key string, data []byte) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.Dir, key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// MemoryCache is a LocalCache for tests and anonymous sessions.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

func (c *MemoryCache) Load(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), d...), nil
}

func (c *MemoryCache) Save(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), data...)
	return nil
}

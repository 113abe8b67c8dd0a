package profilecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/theimaginaryfoundation/fan-lens/analytics/fileutils"
	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

// FileCache keeps one JSON document per entry at <dir>/<key>.json.
// It assumes a single writer per directory.
type FileCache struct {
	dir string
}

func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("NewFileCache: empty dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewFileCache: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(text string) string {
	return filepath.Join(c.dir, Key(text)+".json")
}

func (c *FileCache) Lookup(ctx context.Context, text string) (profile.Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, false, err
	}
	b, err := os.ReadFile(c.path(text))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return profile.Profile{}, false, nil
		}
		return profile.Profile{}, false, fmt.Errorf("FileCache.Lookup: %w", err)
	}
	p, err := decodeEntry(b)
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("FileCache.Lookup: %w", err)
	}
	return p, true, nil
}

// Store writes the entry atomically and fsyncs it before returning. Storing the same profile
// again is a no-op; storing a different one returns ErrConflict.
func (c *FileCache) Store(ctx context.Context, text string, p profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := c.path(text)
	if existing, err := os.ReadFile(path); err == nil {
		same, err := sameEntry(existing, p)
		if err != nil {
			return fmt.Errorf("FileCache.Store: existing entry: %w", err)
		}
		if !same {
			return ErrConflict
		}
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("FileCache.Store: %w", err)
	}

	b, err := encodeEntry(p)
	if err != nil {
		return fmt.Errorf("FileCache.Store: %w", err)
	}
	if err := fileutils.WriteFileAtomicSameDir(path, b, 0o644); err != nil {
		return fmt.Errorf("FileCache.Store: %w", err)
	}
	return nil
}

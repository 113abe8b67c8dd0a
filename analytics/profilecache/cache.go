// Package profilecache stores generated fan profiles keyed by the content hash of the transcript
// they were generated from, so identical transcripts are never sent to the model twice.
package profilecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

// ErrConflict is returned by Store when the key already holds a different profile.
// The existing entry is left untouched.
var ErrConflict = errors.New("profilecache: key already holds a different profile")

// Cache is a content-addressable profile store. Lookup misses return ok=false with a nil error.
type Cache interface {
	Lookup(ctx context.Context, text string) (profile.Profile, bool, error)
	Store(ctx context.Context, text string, p profile.Profile) error
}

// Key is the SHA-256 hex digest of the exact text bytes. No whitespace normalisation is applied.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// encodeEntry serialises the descriptive fields only; fan ids are not part of a cached value.
func encodeEntry(p profile.Profile) ([]byte, error) {
	p.FanModelID = ""
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return b, nil
}

// decodeEntry accepts both canonical and humanised field names so entries written by older
// tooling still resolve.
func decodeEntry(b []byte) (profile.Profile, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return profile.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	p, _ := profile.FromMap(m)
	p.FanModelID = ""
	return p, nil
}

func sameEntry(existing []byte, p profile.Profile) (bool, error) {
	old, err := decodeEntry(existing)
	if err != nil {
		return false, err
	}
	p.FanModelID = ""
	return old == p, nil
}

// Open returns the backend named by backend ("file", "sqlite" or "postgres"). location is a
// directory for "file" and a DSN otherwise. The returned close func is never nil.
func Open(ctx context.Context, backend, location string) (Cache, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case "", "file":
		c, err := NewFileCache(location)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case DriverSQLite, DriverPostgres:
		c, err := OpenSQLCache(ctx, backend, location)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	default:
		return nil, noop, fmt.Errorf("profilecache: unknown backend %q", backend)
	}
}

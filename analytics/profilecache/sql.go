package profilecache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

//go:embed schema.sql
var schemaSQL string

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLCache stores entries in a profile_cache table. Every Store is its own statement, so an
// entry is committed before Store returns.
type SQLCache struct {
	db     *sql.DB
	lookup string
	insert string
}

// OpenSQLCache opens dsn with the given driver ("sqlite" or "postgres") and ensures the schema.
func OpenSQLCache(ctx context.Context, driver, dsn string) (*SQLCache, error) {
	c := &SQLCache{}
	switch driver {
	case DriverSQLite:
		c.lookup = `SELECT profile FROM profile_cache WHERE cache_key = ?`
		c.insert = `INSERT INTO profile_cache (cache_key, profile, created_at) VALUES (?, ?, ?) ON CONFLICT (cache_key) DO NOTHING`
	case DriverPostgres:
		c.lookup = `SELECT profile FROM profile_cache WHERE cache_key = $1`
		c.insert = `INSERT INTO profile_cache (cache_key, profile, created_at) VALUES ($1, $2, $3) ON CONFLICT (cache_key) DO NOTHING`
	default:
		return nil, fmt.Errorf("OpenSQLCache: unsupported driver %q", driver)
	}
	if dsn == "" {
		return nil, errors.New("OpenSQLCache: empty dsn")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenSQLCache: open: %w", err)
	}
	if driver == DriverSQLite {
		// One connection serialises writers on the file.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("OpenSQLCache: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("OpenSQLCache: schema: %w", err)
	}
	c.db = db
	return c, nil
}

func (c *SQLCache) Close() error {
	return c.db.Close()
}

func (c *SQLCache) Lookup(ctx context.Context, text string) (profile.Profile, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, c.lookup, Key(text)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, false, nil
	}
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("SQLCache.Lookup: %w", err)
	}
	p, err := decodeEntry([]byte(raw))
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("SQLCache.Lookup: %w", err)
	}
	return p, true, nil
}

func (c *SQLCache) Store(ctx context.Context, text string, p profile.Profile) error {
	b, err := encodeEntry(p)
	if err != nil {
		return fmt.Errorf("SQLCache.Store: %w", err)
	}
	key := Key(text)
	res, err := c.db.ExecContext(ctx, c.insert, key, string(b), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("SQLCache.Store: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	var existing string
	if err := c.db.QueryRowContext(ctx, c.lookup, key).Scan(&existing); err != nil {
		return fmt.Errorf("SQLCache.Store: read existing: %w", err)
	}
	same, err := sameEntry([]byte(existing), p)
	if err != nil {
		return fmt.Errorf("SQLCache.Store: existing entry: %w", err)
	}
	if !same {
		return ErrConflict
	}
	return nil
}

// Package assetcache keeps document markup available offline. Entries live in
// a SQLite table keyed by cache name and reference; a cache name is a version,
// and activating a cache drops every other version.
package assetcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/lexview/internal/fetch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	_ "modernc.org/sqlite"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexview_asset_cache_lookups_total",
		Help: "Asset cache lookups by result (hit, miss)",
	}, []string{"result"})

	networkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lexview_asset_network_fetch_seconds",
		Help:    "Network fetch duration for asset cache misses",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	installedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexview_asset_cache_installed_total",
		Help: "Assets stored by Install",
	})
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
    cache_name TEXT NOT NULL,
    ref TEXT NOT NULL,
    body TEXT NOT NULL,
    fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (cache_name, ref)
);
`

// Cache is a cache-first Fetcher backed by SQLite.
type Cache struct {
	db    *sql.DB
	name  string
	net   fetch.Fetcher
	log   *slog.Logger
	group singleflight.Group

	retries int
	backoff time.Duration
}

// Open creates or opens the cache database at path. name selects the cache
// version this process reads and writes; misses go to net.
func Open(path, name string, net fetch.Fetcher, log *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}
	return newCache(db, name, net, log)
}

// OpenMemory creates an in-memory cache (useful for testing).
func OpenMemory(name string, net fetch.Fetcher, log *slog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory cache: %w", err)
	}
	// Every connection would get its own empty database.
	db.SetMaxOpenConns(1)
	return newCache(db, name, net, log)
}

func newCache(db *sql.DB, name string, net fetch.Fetcher, log *slog.Logger) (*Cache, error) {
	if name == "" {
		db.Close()
		return nil, errors.New("cache name is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Cache{
		db:      db,
		name:    name,
		net:     net,
		log:     log.With("cache", name),
		retries: fetch.DefaultRetries,
		backoff: 500 * time.Millisecond,
	}, nil
}

// SetInstallRetries sets how many times Install retries a transient failure
// per ref, and the base backoff between attempts.
func (c *Cache) SetInstallRetries(n int, base time.Duration) {
	c.retries = max(n, 0)
	c.backoff = base
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Name returns the active cache version.
func (c *Cache) Name() string { return c.name }

// Install fetches every ref from the network and stores them together. Like a
// browser cache's addAll, nothing is stored unless all refs load. Transient
// failures are retried.
func (c *Cache) Install(ctx context.Context, refs []string) error {
	if c.net == nil {
		return errors.New("install: no network fetcher")
	}
	net := &fetch.Retrier{Fetcher: c.net, Retries: c.retries, Base: c.backoff, Log: c.log}
	bodies := make(map[string]string, len(refs))
	for _, ref := range refs {
		body, err := net.Fetch(ctx, ref)
		if err != nil {
			return fmt.Errorf("install %s: %w", ref, err)
		}
		bodies[ref] = body
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("install: begin: %w", err)
	}
	defer tx.Rollback()
	for ref, body := range bodies {
		if err := c.put(ctx, tx, ref, body); err != nil {
			return fmt.Errorf("install %s: %w", ref, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("install: commit: %w", err)
	}
	installedTotal.Add(float64(len(bodies)))
	c.log.Info("assets installed", "count", len(bodies))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c *Cache) put(ctx context.Context, db execer, ref, body string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO assets (cache_name, ref, body) VALUES (?, ?, ?)
		ON CONFLICT (cache_name, ref) DO UPDATE SET body = excluded.body, fetched_at = datetime('now')`,
		c.name, ref, body)
	return err
}

// Lookup returns the cached body for ref.
func (c *Cache) Lookup(ctx context.Context, ref string) (string, bool, error) {
	var body string
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM assets WHERE cache_name = ? AND ref = ?`, c.name, ref).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", ref, err)
	}
	return body, true, nil
}

// Fetch serves ref from the cache, falling back to the network on a miss.
// Successful network responses are stored. Concurrent misses for one ref
// share a single network request.
func (c *Cache) Fetch(ctx context.Context, ref string) (string, error) {
	body, ok, err := c.Lookup(ctx, ref)
	if err != nil {
		c.log.Warn("cache lookup failed", "ref", ref, "error", err)
	}
	if ok {
		lookupsTotal.WithLabelValues("hit").Inc()
		return body, nil
	}
	lookupsTotal.WithLabelValues("miss").Inc()
	if c.net == nil {
		return "", &fetch.FetchError{Ref: ref, Err: errors.New("not cached and offline")}
	}

	ch := c.group.DoChan(ref, func() (any, error) {
		// Detached so one caller's cancellation does not fail the others.
		fctx := context.WithoutCancel(ctx)
		start := time.Now()
		body, err := c.net.Fetch(fctx, ref)
		networkDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return "", err
		}
		if err := c.put(fctx, c.db, ref, body); err != nil {
			c.log.Warn("cache store failed", "ref", ref, "error", err)
		}
		return body, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Activate deletes every entry that belongs to another cache version and
// returns how many were removed.
func (c *Cache) Activate(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM assets WHERE cache_name <> ?`, c.name)
	if err != nil {
		return 0, fmt.Errorf("activate: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.log.Info("stale cache versions removed", "entries", n)
	}
	return n, nil
}

// Refs lists the cached references of the active version.
func (c *Cache) Refs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT ref FROM assets WHERE cache_name = ? ORDER BY ref`, c.name)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

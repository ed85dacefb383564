package axiom

import (
	"context"
	"sync"
	"time"
)

// Option configures a Database at construction time, the functional-options
// idiom used throughout for schema-validation and extension configuration.
type Option func(*Database)

// WithCache attaches an optional result cache to the query engine. ttl
// of zero means cached entries never expire on their own.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(d *Database) {
		d.cache = c
		d.cacheTTL = ttl
	}
}

// Database is the coordinator the Mutation Engine, Query Engine,
// Migration Controller, and Ensure Engine all hang methods off
// of. It holds one Driver and the table registry cascade walks.
type Database struct {
	drv      Driver
	cache    Cache
	cacheTTL time.Duration

	mu     sync.RWMutex
	tables map[string]*Table

	migrationMu   sync.Mutex
	migrationOpen bool
}

// Open wraps drv in a Database, ready to serve mutations, queries,
// migrations, and ensure calls.
func Open(drv Driver, opts ...Option) *Database {
	d := &Database{drv: drv, tables: make(map[string]*Table)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Driver returns the underlying Driver.
func (d *Database) Driver() Driver { return d.drv }

// RegisterTable adds t to the registry the cascade walk and the Ensure
// Engine's view lookup (viewsOf) consult. Registering is idempotent by
// table name.
func (d *Database) RegisterTable(t *Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[t.Name] = t
}

// Tables returns every registered table.
func (d *Database) Tables() []*Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Table, 0, len(d.tables))
	for _, t := range d.tables {
		out = append(out, t)
	}
	return out
}

// Close closes the underlying driver.
func (d *Database) Close() error { return d.drv.Close() }

// Transaction runs fn against a Database bound to a single connection,
// committing on normal return and rolling back on error.
func (d *Database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Database) error) error {
	return d.drv.Transaction(ctx, func(ctx context.Context, txDrv Driver) error {
		txDB := &Database{drv: txDrv, cache: d.cache, cacheTTL: d.cacheTTL, tables: d.tables}
		return fn(ctx, txDB)
	})
}

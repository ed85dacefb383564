package sqldriver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomdb/axiom"
)

// QueryStats holds lock-free counters for queries run through a StatsDriver.
type QueryStats struct {
	TotalQueries  atomic.Int64
	TotalExecs    atomic.Int64
	TotalDuration atomic.Int64 // nanoseconds
	SlowQueries   atomic.Int64
	Errors        atomic.Int64
}

// Stats returns a point-in-time snapshot.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset zeroes every counter.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is an immutable copy of QueryStats at one instant.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration divides TotalDuration across every recorded query+exec.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is invoked whenever a statement exceeds the configured
// slow-query threshold.
type SlowQueryHook func(ctx context.Context, kind string, duration time.Duration)

// StatsDriver wraps an axiom.Driver with query statistics and slow-query
// detection. It satisfies axiom.Driver itself, so it composes transparently
// with the rest of the core (mutation/query engines, Migrator, ensure.go).
type StatsDriver struct {
	axiom.Driver
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures a StatsDriver at construction time.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration past which a statement counts as
// slow. Default 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.slowThreshold = d }
}

// WithSlowQueryHook registers a callback fired for every slow statement.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) { s.slowHook = hook }
}

// WithSlowQueryLog is a convenience WithSlowQueryHook that logs via slog.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(_ context.Context, kind string, duration time.Duration) {
		slog.Warn("slow query", "kind", kind, "duration", duration)
	})
}

// NewStatsDriver wraps drv with statistics collection.
func NewStatsDriver(drv axiom.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the live counters for reading.
func (d *StatsDriver) QueryStats() *QueryStats { return d.stats }

func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

func (d *StatsDriver) All(ctx context.Context, tpl axiom.Template) ([]axiom.Row, error) {
	start := time.Now()
	rows, err := d.Driver.All(ctx, tpl)
	d.record(ctx, "all", start, err)
	return rows, err
}

func (d *StatsDriver) Get(ctx context.Context, tpl axiom.Template) (axiom.Row, error) {
	start := time.Now()
	row, err := d.Driver.Get(ctx, tpl)
	d.record(ctx, "get", start, err)
	return row, err
}

func (d *StatsDriver) Val(ctx context.Context, tpl axiom.Template) (any, error) {
	start := time.Now()
	v, err := d.Driver.Val(ctx, tpl)
	d.record(ctx, "val", start, err)
	return v, err
}

func (d *StatsDriver) Run(ctx context.Context, tpl axiom.Template) (int64, error) {
	start := time.Now()
	n, err := d.Driver.Run(ctx, tpl)
	d.recordExec(ctx, start, err)
	return n, err
}

func (d *StatsDriver) Transaction(ctx context.Context, fn func(ctx context.Context, tx axiom.Driver) error) error {
	return d.Driver.Transaction(ctx, func(ctx context.Context, tx axiom.Driver) error {
		return fn(ctx, &StatsDriver{Driver: tx, stats: d.stats, slowThreshold: d.SlowThreshold(), slowHook: d.slowHook})
	})
}

func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

func (d *StatsDriver) record(ctx context.Context, kind string, start time.Time, err error) {
	duration := time.Since(start)
	d.stats.TotalQueries.Add(1)
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	d.maybeSlow(ctx, kind, duration)
}

func (d *StatsDriver) recordExec(ctx context.Context, start time.Time, err error) {
	duration := time.Since(start)
	d.stats.TotalExecs.Add(1)
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	d.maybeSlow(ctx, "run", duration)
}

func (d *StatsDriver) maybeSlow(ctx context.Context, kind string, duration time.Duration) {
	threshold := d.SlowThreshold()
	if duration <= threshold {
		return
	}
	d.stats.SlowQueries.Add(1)
	if d.slowHook != nil {
		d.slowHook(ctx, kind, duration)
	}
}

// WithMigrationLock forwards to the wrapped driver's MigrationLocker, if it
// has one. Wrapping with StatsDriver would otherwise hide the capability:
// Go does not promote methods of an embedded interface's dynamic type, only
// the interface's own method set.
func (d *StatsDriver) WithMigrationLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if locker, ok := d.Driver.(axiom.MigrationLocker); ok {
		return locker.WithMigrationLock(ctx, fn)
	}
	return d.Transaction(ctx, func(ctx context.Context, tx axiom.Driver) error {
		return fn(ctx)
	})
}

// ensurer returns the wrapped driver's Ensurer, for the forwarding methods
// below. Wrapping with StatsDriver would otherwise hide the capability for
// the same reason WithMigrationLock needs forwarding.
func (d *StatsDriver) ensurer() (axiom.Ensurer, bool) {
	e, ok := d.Driver.(axiom.Ensurer)
	return e, ok
}

func (d *StatsDriver) EnsureTable(ctx context.Context, tbl axiom.Table) error {
	e, ok := d.ensurer()
	if !ok {
		return fmt.Errorf("axiom/sqldriver: wrapped driver does not implement Ensurer")
	}
	return e.EnsureTable(ctx, tbl)
}

func (d *StatsDriver) EnsureConstraints(ctx context.Context, tbl axiom.Table) error {
	e, ok := d.ensurer()
	if !ok {
		return fmt.Errorf("axiom/sqldriver: wrapped driver does not implement Ensurer")
	}
	return e.EnsureConstraints(ctx, tbl)
}

func (d *StatsDriver) EnsureView(ctx context.Context, tbl axiom.Table) error {
	e, ok := d.ensurer()
	if !ok {
		return fmt.Errorf("axiom/sqldriver: wrapped driver does not implement Ensurer")
	}
	return e.EnsureView(ctx, tbl)
}

func (d *StatsDriver) CopyColumn(ctx context.Context, tbl axiom.Table, from, to string) error {
	e, ok := d.ensurer()
	if !ok {
		return fmt.Errorf("axiom/sqldriver: wrapped driver does not implement Ensurer")
	}
	return e.CopyColumn(ctx, tbl, from, to)
}

func (d *StatsDriver) ListColumns(ctx context.Context, tableName string) ([]string, error) {
	e, ok := d.ensurer()
	if !ok {
		return nil, fmt.Errorf("axiom/sqldriver: wrapped driver does not implement Ensurer")
	}
	return e.ListColumns(ctx, tableName)
}

func (d *StatsDriver) TableExists(ctx context.Context, tableName string) (bool, error) {
	e, ok := d.ensurer()
	if !ok {
		return false, fmt.Errorf("axiom/sqldriver: wrapped driver does not implement Ensurer")
	}
	return e.TableExists(ctx, tableName)
}

func (d *StatsDriver) HasConstraint(ctx context.Context, tableName, constraintName string) (bool, error) {
	e, ok := d.ensurer()
	if !ok {
		return false, fmt.Errorf("axiom/sqldriver: wrapped driver does not implement Ensurer")
	}
	return e.HasConstraint(ctx, tableName, constraintName)
}

var _ axiom.Driver = (*StatsDriver)(nil)

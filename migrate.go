package axiom

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudflare/backoff"
)

const migrationsTable = "_migrations"

// Overridable in tests that need a tighter backoff budget than production
// migration-lock contention warrants.
var (
	migrationLockMaxBackoff = 30 * time.Second
	migrationLockInterval   = 250 * time.Millisecond
)

// UpgradeEvent is dispatched exactly once during Migrator.Open when the
// desired version exceeds the current one. Listeners register continuation
// work via WaitUntil; the Migrator awaits every registered continuation
// before recording the new version.
type UpgradeEvent struct {
	OldVersion int64
	NewVersion int64

	waiting []func(ctx context.Context) error
}

// WaitUntil registers fn as a continuation the Migrator must run to
// completion before marking the upgrade successful. Multiple calls are all
// awaited, in registration order.
func (e *UpgradeEvent) WaitUntil(fn func(ctx context.Context) error) {
	e.waiting = append(e.waiting, fn)
}

func (e *UpgradeEvent) await(ctx context.Context) error {
	for _, fn := range e.waiting {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// UpgradeListener is invoked with the pending UpgradeEvent whenever Open
// finds desiredVersion > current. A listener error aborts the migration;
// the recorded version remains unchanged.
type UpgradeListener func(ctx context.Context, event *UpgradeEvent) error

// Migrator drives schema versioning for a Database: a monotonically
// increasing version ledger guarded by an exclusive lock.
type Migrator struct {
	db        *Database
	listeners []UpgradeListener
}

// Migrator returns the Migration Controller bound to d.
func (d *Database) Migrator() *Migrator {
	return &Migrator{db: d}
}

// OnUpgrade registers fn to run whenever Open finds a pending upgrade. Order
// of registration is the order listeners run in.
func (m *Migrator) OnUpgrade(fn UpgradeListener) *Migrator {
	m.listeners = append(m.listeners, fn)
	return m
}

// Open brings the schema to desiredVersion. It fails with
// *MigrationAlreadyOpenError if called a second time on the same Migrator's
// Database. Monotonic: a desiredVersion at or below the current version is
// a no-op even on the first call.
func (m *Migrator) Open(ctx context.Context, desiredVersion int64) error {
	d := m.db

	d.migrationMu.Lock()
	if d.migrationOpen {
		d.migrationMu.Unlock()
		return &MigrationAlreadyOpenError{}
	}
	d.migrationOpen = true
	d.migrationMu.Unlock()

	return m.withLock(ctx, func(ctx context.Context) error {
		if err := m.ensureLedger(ctx); err != nil {
			return err
		}
		current, err := m.currentVersion(ctx)
		if err != nil {
			return err
		}
		if desiredVersion <= current {
			return nil
		}
		slog.Info("axiom: applying migration", "from", current, "to", desiredVersion)
		event := &UpgradeEvent{OldVersion: current, NewVersion: desiredVersion}
		for _, listener := range m.listeners {
			if err := listener(ctx, event); err != nil {
				slog.Warn("axiom: migration listener failed", "from", current, "to", desiredVersion, "err", err)
				return err
			}
		}
		if err := event.await(ctx); err != nil {
			slog.Warn("axiom: migration continuation failed", "from", current, "to", desiredVersion, "err", err)
			return err
		}
		if err := m.recordVersion(ctx, desiredVersion); err != nil {
			return err
		}
		slog.Info("axiom: migration applied", "version", desiredVersion)
		return nil
	})
}

// withLock runs fn under the exclusive migration lock (see
// Database.withMigrationLock).
func (m *Migrator) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.withMigrationLock(ctx, fn)
}

// withMigrationLock runs fn under the driver's exclusive migration lock if
// the driver implements MigrationLocker, retrying lock acquisition with
// bounded backoff on ErrMigrationLockBusy. Drivers without MigrationLocker
// fall back to wrapping fn in a transaction. Shared by the Migration
// Controller and every Ensure Engine entry point.
func (d *Database) withMigrationLock(ctx context.Context, fn func(ctx context.Context) error) error {
	locker, ok := d.drv.(MigrationLocker)
	if !ok {
		return d.drv.Transaction(ctx, func(ctx context.Context, tx Driver) error {
			return fn(ctx)
		})
	}

	b := backoff.New(migrationLockMaxBackoff, migrationLockInterval)
	deadline := time.Now().Add(migrationLockMaxBackoff)
	for {
		err := locker.WithMigrationLock(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsMigrationLockBusy(err) {
			return err
		}
		if time.Now().After(deadline) {
			slog.Warn("axiom: migration lock timed out")
			return &MigrationLockTimeoutError{Err: err}
		}
		slog.Info("axiom: migration lock busy, retrying")
		if sleepErr := sleepCtx(ctx, b.Duration()); sleepErr != nil {
			return sleepErr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Migrator) ensureLedger(ctx context.Context) error {
	tpl := NewDraft().
		AppendLiteral("CREATE TABLE IF NOT EXISTS ").Ident(migrationsTable).
		AppendLiteral(" (version INTEGER PRIMARY KEY)").
		Seal()
	_, err := m.db.drv.Run(ctx, tpl)
	return err
}

func (m *Migrator) currentVersion(ctx context.Context) (int64, error) {
	tpl := NewDraft().
		AppendLiteral("SELECT MAX(version) FROM ").Ident(migrationsTable).
		Seal()
	v, err := m.db.drv.Val(ctx, tpl)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, nil
	}
}

func (m *Migrator) recordVersion(ctx context.Context, version int64) error {
	tpl := NewDraft().
		AppendLiteral("INSERT INTO ").Ident(migrationsTable).AppendLiteral(" (version) VALUES (").
		Lit(version).
		AppendLiteral(")").
		Seal()
	_, err := m.db.drv.Run(ctx, tpl)
	return err
}

// CurrentVersion reports the ledger's current version without opening a
// migration. Returns 0 if the ledger table does not exist yet.
func (m *Migrator) CurrentVersion(ctx context.Context) (int64, error) {
	if err := m.ensureLedger(ctx); err != nil {
		return 0, err
	}
	return m.currentVersion(ctx)
}

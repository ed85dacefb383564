package sqldriver

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/axiomdb/axiom"
)

// lockNamespace is the advisory/application lock name every axiom
// migration run contends on, scoped to one database.
const lockNamespace = "axiom_migration"

var lockID = int64(fnvHash(lockNamespace))

func fnvHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// WithMigrationLock runs fn while holding an exclusive, dialect-native lock:
// a non-blocking advisory lock on postgres, a non-blocking named lock on
// mysql, and a dedicated BEGIN EXCLUSIVE transaction on sqlite. A lock that
// cannot be acquired immediately reports axiom.ErrMigrationLockBusy so the
// Migration Controller's backoff loop retries rather than blocking forever
// inside the driver.
func (d *Driver) WithMigrationLock(ctx context.Context, fn func(ctx context.Context) error) error {
	switch d.Dialect() {
	case "postgres":
		return d.withPostgresLock(ctx, fn)
	case "mysql":
		return d.withMySQLLock(ctx, fn)
	default:
		return d.withSQLiteExclusive(ctx, fn)
	}
}

func (d *Driver) withPostgresLock(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var acquired bool
	row := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID)
	if err := row.Scan(&acquired); err != nil {
		return err
	}
	if !acquired {
		return axiom.ErrMigrationLockBusy
	}
	defer conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockID)

	return fn(ctx)
}

func (d *Driver) withMySQLLock(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var acquired int
	row := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", lockNamespace)
	if err := row.Scan(&acquired); err != nil {
		return err
	}
	if acquired != 1 {
		return axiom.ErrMigrationLockBusy
	}
	defer conn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", lockNamespace)

	return fn(ctx)
}

func (d *Driver) withSQLiteExclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		// modernc.org/sqlite surfaces a contended lock as a driver error
		// rather than a typed sentinel; any failure to begin is treated
		// as busy so the caller retries with backoff.
		return fmt.Errorf("%w: %v", axiom.ErrMigrationLockBusy, err)
	}

	if err := fn(ctx); err != nil {
		_, rbErr := conn.ExecContext(context.Background(), "ROLLBACK")
		return errors.Join(err, rbErr)
	}
	_, err = conn.ExecContext(context.Background(), "COMMIT")
	return err
}

var _ axiom.MigrationLocker = (*Driver)(nil)

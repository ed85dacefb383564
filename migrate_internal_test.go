package axiom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alwaysBusyLockDriver struct{ Driver }

func (alwaysBusyLockDriver) WithMigrationLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return ErrMigrationLockBusy
}

func TestMigratorWithLockTimesOutAfterBackoffBudget(t *testing.T) {
	oldMax, oldInterval := migrationLockMaxBackoff, migrationLockInterval
	migrationLockMaxBackoff = 20 * time.Millisecond
	migrationLockInterval = 5 * time.Millisecond
	defer func() {
		migrationLockMaxBackoff, migrationLockInterval = oldMax, oldInterval
	}()

	d := &Database{drv: alwaysBusyLockDriver{}, tables: make(map[string]*Table)}
	m := d.Migrator()

	err := m.withLock(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, IsMigrationLockTimeoutError(err))
}

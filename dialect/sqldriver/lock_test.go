package sqldriver_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomdb/axiom"
	"github.com/axiomdb/axiom/dialect/sqldriver"
)

func TestWithMigrationLockPostgresBusyReportsSentinel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	drv := sqldriver.OpenDB("postgres", db)
	err = drv.WithMigrationLock(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, axiom.IsMigrationLockBusy(err))
}

func TestWithMigrationLockMySQLAcquiresAndReleases(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT GET_LOCK`).
		WillReturnRows(sqlmock.NewRows([]string{"lock"}).AddRow(1))
	mock.ExpectExec(`SELECT RELEASE_LOCK`).WillReturnResult(sqlmock.NewResult(0, 0))

	drv := sqldriver.OpenDB("mysql", db)
	var ran bool
	err = drv.WithMigrationLock(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithMigrationLockMySQLBusyReportsSentinel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT GET_LOCK`).
		WillReturnRows(sqlmock.NewRows([]string{"lock"}).AddRow(0))

	drv := sqldriver.OpenDB("mysql", db)
	err = drv.WithMigrationLock(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, axiom.IsMigrationLockBusy(err))
}

func TestWithMigrationLockSQLiteBeginsExclusiveThenCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`BEGIN EXCLUSIVE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`COMMIT`).WillReturnResult(sqlmock.NewResult(0, 0))

	drv := sqldriver.OpenDB("sqlite", db)
	var ran bool
	err = drv.WithMigrationLock(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithMigrationLockSQLiteRollsBackOnFnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`BEGIN EXCLUSIVE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ROLLBACK`).WillReturnResult(sqlmock.NewResult(0, 0))

	drv := sqldriver.OpenDB("sqlite", db)
	err = drv.WithMigrationLock(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})
	require.Error(t, err)
}

func TestWithMigrationLockSQLiteContendedReportsBusy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`BEGIN EXCLUSIVE`).WillReturnError(assert.AnError)

	drv := sqldriver.OpenDB("sqlite", db)
	err = drv.WithMigrationLock(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, axiom.IsMigrationLockBusy(err))
}

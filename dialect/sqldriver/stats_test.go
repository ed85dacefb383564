package sqldriver_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomdb/axiom"
	"github.com/axiomdb/axiom/dialect/sqldriver"
)

func TestStatsDriverCountsQueriesAndExecs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 1))

	drv := sqldriver.OpenDB("sqlite", db)
	stats := sqldriver.NewStatsDriver(drv)

	_, err = stats.All(context.Background(), axiom.Raw("SELECT id FROM users"))
	require.NoError(t, err)
	_, err = stats.Run(context.Background(), axiom.Raw("UPDATE users SET x = 1"))
	require.NoError(t, err)

	snap := stats.QueryStats().Stats()
	assert.EqualValues(t, 1, snap.TotalQueries)
	assert.EqualValues(t, 1, snap.TotalExecs)
	assert.EqualValues(t, 0, snap.Errors)
}

func TestStatsDriverRecordsErrorsAndSlowQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM users`).WillReturnError(assert.AnError)

	drv := sqldriver.OpenDB("sqlite", db)
	var hookCalls int
	stats := sqldriver.NewStatsDriver(drv,
		sqldriver.WithSlowThreshold(-1*time.Nanosecond),
		sqldriver.WithSlowQueryHook(func(ctx context.Context, kind string, duration time.Duration) {
			hookCalls++
		}),
	)

	_, err = stats.All(context.Background(), axiom.Raw("SELECT id FROM users"))
	require.Error(t, err)

	snap := stats.QueryStats().Stats()
	assert.EqualValues(t, 1, snap.Errors)
	assert.EqualValues(t, 1, snap.SlowQueries)
	assert.Equal(t, 1, hookCalls)
}

func TestStatsDriverForwardsMigrationLockToWrappedDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WillReturnResult(sqlmock.NewResult(0, 0))

	drv := sqldriver.OpenDB("postgres", db)
	stats := sqldriver.NewStatsDriver(drv)

	var ran bool
	err = stats.WithMigrationLock(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

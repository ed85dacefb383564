package axiom_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomdb/axiom"
)

type fakeEnsureDriver struct {
	dupCount    int64
	orphanCount int64

	existingConstraints map[string]bool
	liveColumns         map[string][]string

	ensureTableCalls      []string
	ensureConstraintCalls []string
	ensureViewCalls       []string
	copyColumnCalls       []string
}

func newFakeEnsureDriver() *fakeEnsureDriver {
	return &fakeEnsureDriver{
		existingConstraints: map[string]bool{},
		liveColumns:         map[string][]string{},
	}
}

func (d *fakeEnsureDriver) Dialect() string         { return "sqlite" }
func (d *fakeEnsureDriver) SupportsReturning() bool { return false }
func (d *fakeEnsureDriver) Close() error            { return nil }

func (d *fakeEnsureDriver) Transaction(ctx context.Context, fn func(ctx context.Context, tx axiom.Driver) error) error {
	return fn(ctx, d)
}

func (d *fakeEnsureDriver) All(ctx context.Context, tpl axiom.Template) ([]axiom.Row, error) {
	return nil, nil
}
func (d *fakeEnsureDriver) Get(ctx context.Context, tpl axiom.Template) (axiom.Row, error) {
	return nil, nil
}
func (d *fakeEnsureDriver) Run(ctx context.Context, tpl axiom.Template) (int64, error) {
	return 0, nil
}

func (d *fakeEnsureDriver) Val(ctx context.Context, tpl axiom.Template) (any, error) {
	sql, _, err := axiom.Render(tpl, d.Dialect())
	if err != nil {
		return nil, err
	}
	switch {
	case strings.Contains(sql, "GROUP BY"):
		return d.dupCount, nil
	case strings.Contains(sql, "LEFT JOIN"):
		return d.orphanCount, nil
	}
	return nil, nil
}

func (d *fakeEnsureDriver) EnsureTable(ctx context.Context, tbl axiom.Table) error {
	d.ensureTableCalls = append(d.ensureTableCalls, tbl.Name)
	return nil
}
func (d *fakeEnsureDriver) EnsureConstraints(ctx context.Context, tbl axiom.Table) error {
	d.ensureConstraintCalls = append(d.ensureConstraintCalls, tbl.Name)
	return nil
}
func (d *fakeEnsureDriver) EnsureView(ctx context.Context, tbl axiom.Table) error {
	d.ensureViewCalls = append(d.ensureViewCalls, tbl.Name)
	return nil
}
func (d *fakeEnsureDriver) CopyColumn(ctx context.Context, tbl axiom.Table, from, to string) error {
	d.copyColumnCalls = append(d.copyColumnCalls, tbl.Name+"."+from+"->"+to)
	return nil
}
func (d *fakeEnsureDriver) ListColumns(ctx context.Context, tableName string) ([]string, error) {
	return d.liveColumns[tableName], nil
}
func (d *fakeEnsureDriver) TableExists(ctx context.Context, tableName string) (bool, error) {
	return true, nil
}
func (d *fakeEnsureDriver) HasConstraint(ctx context.Context, tableName, constraintName string) (bool, error) {
	return d.existingConstraints[tableName+"."+constraintName], nil
}

func usersTableWithUniqueEmail() *axiom.Table {
	return &axiom.Table{
		Name:    "users",
		Kind:    axiom.KindFull,
		Primary: "id",
		Fields: []axiom.Field{
			{Name: "id", Type: axiom.TypeInteger},
			{Name: "email", Type: axiom.TypeText},
		},
		Unique: [][]string{{"email"}},
	}
}

func TestEnsureTableReportsSchemaDriftWhenConstraintMissing(t *testing.T) {
	drv := newFakeEnsureDriver()
	db := axiom.Open(drv)

	err := db.EnsureTable(context.Background(), usersTableWithUniqueEmail())
	require.Error(t, err)
	assert.True(t, axiom.IsSchemaDriftError(err))
	assert.Equal(t, []string{"users"}, drv.ensureTableCalls)
}

func TestEnsureTableSucceedsWhenConstraintsPresent(t *testing.T) {
	drv := newFakeEnsureDriver()
	drv.existingConstraints["users.ux_users_email"] = true
	db := axiom.Open(drv)

	err := db.EnsureTable(context.Background(), usersTableWithUniqueEmail())
	require.NoError(t, err)
}

func TestEnsureTableReEnsuresAttachedViews(t *testing.T) {
	drv := newFakeEnsureDriver()
	drv.existingConstraints["users.ux_users_email"] = true
	db := axiom.Open(drv)

	users := usersTableWithUniqueEmail()
	activeUsers := &axiom.Table{
		Name:         "active_users",
		Kind:         axiom.KindView,
		OriginalName: "users",
	}
	db.RegisterTable(users)
	db.RegisterTable(activeUsers)

	err := db.EnsureTable(context.Background(), users)
	require.NoError(t, err)
	assert.Equal(t, []string{"active_users"}, drv.ensureViewCalls)
}

func TestEnsureConstraintsAppliesWhenPreflightClean(t *testing.T) {
	drv := newFakeEnsureDriver()
	db := axiom.Open(drv)

	err := db.EnsureConstraints(context.Background(), usersTableWithUniqueEmail())
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, drv.ensureConstraintCalls)
}

func TestEnsureConstraintsPreflightFailsOnDuplicates(t *testing.T) {
	drv := newFakeEnsureDriver()
	drv.dupCount = 2
	db := axiom.Open(drv)

	err := db.EnsureConstraints(context.Background(), usersTableWithUniqueEmail())
	require.Error(t, err)
	assert.True(t, axiom.IsConstraintPreflightError(err))
	assert.Empty(t, drv.ensureConstraintCalls, "DDL must not run once preflight finds violations")
}

func TestEnsureConstraintsForeignKeyPreflightFailsOnOrphans(t *testing.T) {
	authors, posts := authorsAndPosts()
	drv := newFakeEnsureDriver()
	drv.orphanCount = 3
	db := axiom.Open(drv)
	db.RegisterTable(authors)
	db.RegisterTable(posts)

	err := db.EnsureConstraints(context.Background(), posts)
	require.Error(t, err)
	require.True(t, axiom.IsConstraintPreflightError(err))
}

func TestEnsureConstraintsSkipsAlreadyPresentConstraint(t *testing.T) {
	drv := newFakeEnsureDriver()
	drv.dupCount = 5 // would fail preflight if checked
	drv.existingConstraints["users.ux_users_email"] = true
	db := axiom.Open(drv)

	err := db.EnsureConstraints(context.Background(), usersTableWithUniqueEmail())
	require.NoError(t, err)
}

func TestEnsureViewRejectsNonViewTable(t *testing.T) {
	drv := newFakeEnsureDriver()
	db := axiom.Open(drv)

	err := db.EnsureView(context.Background(), usersTableWithUniqueEmail())
	require.Error(t, err)
	assert.True(t, axiom.IsConfigurationError(err))
}

func TestCopyColumnRejectsUndeclaredTarget(t *testing.T) {
	drv := newFakeEnsureDriver()
	db := axiom.Open(drv)

	err := db.CopyColumn(context.Background(), usersTableWithUniqueEmail(), "old_email", "nonexistent")
	require.Error(t, err)
	assert.True(t, axiom.IsConfigurationError(err))
}

func TestCopyColumnRejectsMissingSourceColumn(t *testing.T) {
	drv := newFakeEnsureDriver()
	db := axiom.Open(drv)

	err := db.CopyColumn(context.Background(), usersTableWithUniqueEmail(), "old_email", "email")
	require.Error(t, err)
	assert.True(t, axiom.IsConfigurationError(err))
}

func TestCopyColumnSucceeds(t *testing.T) {
	drv := newFakeEnsureDriver()
	drv.liveColumns["users"] = []string{"id", "email", "old_email"}
	db := axiom.Open(drv)

	err := db.CopyColumn(context.Background(), usersTableWithUniqueEmail(), "old_email", "email")
	require.NoError(t, err)
	assert.Equal(t, []string{"users.old_email->email"}, drv.copyColumnCalls)
}

func TestEnsureTableRequiresEnsurerCapability(t *testing.T) {
	drv := newMemDriver("sqlite", false)
	db := axiom.Open(drv)

	err := db.EnsureTable(context.Background(), usersTableWithUniqueEmail())
	require.Error(t, err)
	assert.True(t, axiom.IsDialectUnsupportedError(err))
}

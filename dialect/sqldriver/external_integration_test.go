//go:build integration

package sqldriver_test

import (
	"context"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/axiomdb/axiom"
	"github.com/axiomdb/axiom/dialect/sqldriver"
)

// These tests only run with -tags integration against a reachable server;
// they are skipped (not failed) when the corresponding DSN env var is unset
// so `go test ./...` stays hermetic by default.

func TestPostgresIntegrationEnsureTable(t *testing.T) {
	dsn := os.Getenv("AXIOM_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AXIOM_POSTGRES_DSN not set")
	}
	drv, err := sqldriver.Open("postgres", dsn)
	require.NoError(t, err)
	defer drv.Close()

	ctx := context.Background()
	tbl := axiom.Table{
		Name:    "axiom_integration_widgets",
		Kind:    axiom.KindFull,
		Primary: "id",
		Fields: []axiom.Field{
			{Name: "id", Type: axiom.TypeInteger, AutoIncrement: true},
			{Name: "sku", Type: axiom.TypeText},
		},
	}
	ensurer := axiom.Driver(drv).(axiom.Ensurer)
	require.NoError(t, ensurer.EnsureTable(ctx, tbl))
}

func TestMySQLIntegrationEnsureTable(t *testing.T) {
	dsn := os.Getenv("AXIOM_MYSQL_DSN")
	if dsn == "" {
		t.Skip("AXIOM_MYSQL_DSN not set")
	}
	drv, err := sqldriver.Open("mysql", dsn)
	require.NoError(t, err)
	defer drv.Close()

	ctx := context.Background()
	tbl := axiom.Table{
		Name:    "axiom_integration_widgets",
		Kind:    axiom.KindFull,
		Primary: "id",
		Fields: []axiom.Field{
			{Name: "id", Type: axiom.TypeInteger, AutoIncrement: true},
			{Name: "sku", Type: axiom.TypeText},
		},
	}
	ensurer := axiom.Driver(drv).(axiom.Ensurer)
	require.NoError(t, ensurer.EnsureTable(ctx, tbl))
}

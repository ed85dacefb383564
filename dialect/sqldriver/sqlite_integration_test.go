package sqldriver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/axiomdb/axiom"
	"github.com/axiomdb/axiom/dialect/sqldriver"
)

// TestSQLiteIntegrationEnsureAndRoundtrip exercises sqldriver.Open against a
// real modernc.org/sqlite in-memory connection, not a sqlmock fake: it
// ensures a table from scratch, applies a unique constraint, and confirms a
// row written through axiom.Template survives a read back.
func TestSQLiteIntegrationEnsureAndRoundtrip(t *testing.T) {
	drv, err := sqldriver.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	defer drv.Close()

	ctx := context.Background()
	tbl := axiom.Table{
		Name:    "widgets",
		Kind:    axiom.KindFull,
		Primary: "id",
		Fields: []axiom.Field{
			{Name: "id", Type: axiom.TypeInteger, AutoIncrement: true},
			{Name: "sku", Type: axiom.TypeText},
		},
		Unique: [][]string{{"sku"}},
	}

	ensurer, ok := axiom.Driver(drv).(axiom.Ensurer)
	require.True(t, ok, "sqldriver.Driver must implement axiom.Ensurer")
	require.NoError(t, ensurer.EnsureTable(ctx, tbl))
	require.NoError(t, ensurer.EnsureConstraints(ctx, tbl))

	insert := axiom.NewDraft().
		AppendLiteral("INSERT INTO ").Ident("widgets").AppendLiteral(" (sku) VALUES (").
		Lit("AX-100").
		AppendLiteral(")").
		Seal()
	_, err = drv.Run(ctx, insert)
	require.NoError(t, err)

	selectAll := axiom.NewDraft().AppendLiteral("SELECT sku FROM ").Ident("widgets").Seal()
	rows, err := drv.All(ctx, selectAll)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AX-100", rows[0]["sku"])

	has, err := ensurer.HasConstraint(ctx, "widgets", "ux_widgets_sku")
	require.NoError(t, err)
	assert.True(t, has)
}

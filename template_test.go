package axiom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomdb/axiom"
)

// invariant asserts the universal template property: |literals| = |values| + 1.
func invariant(t *testing.T, tpl axiom.Template) {
	t.Helper()
	assert.Equal(t, len(tpl.Values)+1, len(tpl.Literals))
}

func TestNewInvariant(t *testing.T) {
	tpl, err := axiom.New([]string{"a", "b"}, []axiom.Value{axiom.L(1)})
	require.NoError(t, err)
	invariant(t, tpl)

	_, err = axiom.New([]string{"a", "b", "c"}, []axiom.Value{axiom.L(1)})
	assert.Error(t, err)
}

func TestDraftBasic(t *testing.T) {
	d := axiom.NewDraft()
	d.AppendLiteral("SELECT ").Ident("email").AppendLiteral(" FROM ").Ident("users")
	tpl := d.Seal()
	invariant(t, tpl)
	assert.Equal(t, []string{"SELECT ", " FROM ", ""}, tpl.Literals)
	require.Len(t, tpl.Values, 2)
	assert.Equal(t, axiom.Ident{Name: "email"}, tpl.Values[0])
	assert.Equal(t, axiom.Ident{Name: "users"}, tpl.Values[1])
}

func TestDraftSpliceFragment(t *testing.T) {
	inner := axiom.NewDraft().AppendLiteral("count + ").Lit(1).Seal()
	invariant(t, inner)

	outer := axiom.NewDraft().
		AppendLiteral("UPDATE t SET n = ").
		SpliceFragment(inner).
		AppendLiteral(" WHERE id = ").
		Lit("c1").
		Seal()
	invariant(t, outer)

	assert.Equal(t, []string{"UPDATE t SET n = count + ", " WHERE id = ", ""}, outer.Literals)
	require.Len(t, outer.Values, 2)
	assert.Equal(t, axiom.L(1), outer.Values[0])
	assert.Equal(t, axiom.L("c1"), outer.Values[1])
}

// TestSpliceNested composes fragments three levels deep and checks the
// invariant holds at every level, which is the property the algebra exists
// to guarantee.
func TestSpliceNested(t *testing.T) {
	leaf := axiom.NewDraft().AppendLiteral("(").Lit(1).AppendLiteral(",").Lit(2).AppendLiteral(")").Seal()
	invariant(t, leaf)

	mid := axiom.NewDraft().AppendLiteral("IN ").SpliceFragment(leaf).Seal()
	invariant(t, mid)

	top := axiom.NewDraft().AppendLiteral("WHERE id ").SpliceFragment(mid).AppendLiteral(" AND x = ").Lit(9).Seal()
	invariant(t, top)
	require.Len(t, top.Values, 3)
	assert.Equal(t, axiom.L(9), top.Values[2])
}

func TestJoin(t *testing.T) {
	a := axiom.NewDraft().Ident("id").Seal()
	b := axiom.NewDraft().Ident("name").Seal()
	joined := axiom.Join(", ", a, b)
	invariant(t, joined)
	assert.Equal(t, []string{"", ", ", ""}, joined.Literals)
}

func TestRaw(t *testing.T) {
	tpl := axiom.Raw("SELECT 1")
	invariant(t, tpl)
	assert.Equal(t, []string{"SELECT 1"}, tpl.Literals)
	assert.Empty(t, tpl.Values)
}

func TestExprPlaceholderMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		axiom.Expr("count + ?")
	})
}

func TestExprOK(t *testing.T) {
	e := axiom.Expr("? + ?", axiom.L(1), axiom.L(2))
	invariant(t, e.Template)
	assert.Equal(t, []string{"", " + ", ""}, e.Template.Literals)
}

package axiom

import (
	"fmt"
	"strings"
)

// Value is the tagged union of everything that may occupy a value slot in a
// Template. Every value in a template is exactly one of: Lit, Ident,
// Builtin, SubFragment, or DBExpr. The tag method is unexported so the set
// is closed to this package — callers build values with the constructors
// below and the renderer dispatches with an exhaustive type switch.
type Value interface {
	isValue()
}

// Lit is an opaque parameter value, emitted by the renderer as a numbered
// placeholder and recorded in the params slice. This is the only Value kind
// that ever appears in a driver's params array.
type Lit struct {
	V any
}

func (Lit) isValue() {}

// L wraps v as a Lit value.
func L(v any) Lit { return Lit{V: v} }

// Ident is a name to be quoted per dialect. Identifiers never appear in the
// params array; they are inlined into the rendered SQL text.
type Ident struct {
	Name string
}

func (Ident) isValue() {}

// I wraps name as an Ident value.
func I(name string) Ident { return Ident{Name: name} }

// BuiltinSymbol enumerates the named SQL constants the renderer knows how to
// resolve per dialect.
type BuiltinSymbol string

const (
	// BuiltinNow resolves to the dialect's current-timestamp keyword.
	BuiltinNow BuiltinSymbol = "now"
	// BuiltinToday resolves to the dialect's current-date keyword.
	BuiltinToday BuiltinSymbol = "today"
)

// Builtin is a named SQL constant, e.g. current-timestamp. It renders
// inline as dialect-specific SQL text and never as a parameter.
type Builtin struct {
	Symbol BuiltinSymbol
}

func (Builtin) isValue() {}

// B wraps symbol as a Builtin value.
func B(symbol BuiltinSymbol) Builtin { return Builtin{Symbol: symbol} }

// SubFragmentValue splices a nested Template at this position: its literals
// and values are merged into the parent template at render time, which is
// exactly what Draft.SpliceFragment does at build time. A Value of this kind
// models a fragment that was pushed onto a draft as an opaque value (e.g.
// because it arrived boxed from caller code) rather than spliced eagerly;
// the renderer treats it identically to an eagerly spliced fragment.
type SubFragmentValue struct {
	Template Template
}

func (SubFragmentValue) isValue() {}

// SF wraps tpl as a SubFragmentValue.
func SF(tpl Template) SubFragmentValue { return SubFragmentValue{Template: tpl} }

// DBExpr is a raw-SQL fragment authored by the schema, typically from an
// auto-value marker. It is spliced inline like a SubFragment
// but is semantically distinguished: a field carrying a DBExpr skips
// validation and encoding, and a field with a custom
// encode/decode hook must never receive one.
type DBExpr struct {
	Template Template
}

func (DBExpr) isValue() {}

// Expr builds a DBExpr from a raw SQL string whose "?" placeholders are
// filled left-to-right by values, e.g. Expr("count + ?", L(1)). The number
// of "?" occurrences in sql must equal len(values).
func Expr(sql string, values ...Value) DBExpr {
	lits := strings.Split(sql, "?")
	if len(lits) != len(values)+1 {
		panic(fmt.Sprintf("axiom: Expr: %d placeholder(s) in %q but %d value(s) given", len(lits)-1, sql, len(values)))
	}
	return DBExpr{Template: Template{Literals: lits, Values: values}}
}

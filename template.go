package axiom

import "fmt"

// Template is the immutable, finite, ordered pair (literals, values) at the
// heart of the core: len(Literals) == len(Values)+1, and the rendered form
// interleaves Literals[0], Values[0], Literals[1], ..., Values[n-1],
// Literals[n]. Templates are constructed via Draft and sealed; direct
// construction with mismatched lengths is a programmer error (see New).
type Template struct {
	Literals []string
	Values   []Value
}

// New validates the invariant and returns a Template. It is the only way to
// construct a Template outside of Draft.Seal, and exists for callers who
// already hold literals/values in the right shape (e.g. deserializing a
// cached plan); everyday composition should go through Draft.
func New(literals []string, values []Value) (Template, error) {
	if len(literals) != len(values)+1 {
		return Template{}, fmt.Errorf("axiom: template invariant violated: %d literal(s), %d value(s)", len(literals), len(values))
	}
	return Template{Literals: literals, Values: values}, nil
}

// MustNew is New but panics on invariant violation, for use in constant
// table/fragment definitions where an error return is inconvenient.
func MustNew(literals []string, values []Value) Template {
	t, err := New(literals, values)
	if err != nil {
		panic(err)
	}
	return t
}

// Raw returns a single-literal Template with no values, useful for fragments
// that are pure SQL text (e.g. a bare identifier list already quoted).
func Raw(sql string) Template {
	return Template{Literals: []string{sql}}
}

// Draft is the mutable builder for a Template. The zero Draft is ready to
// use. Every emitted Template must be the result of Draft's operations or
// New/MustNew/Raw; nothing else produces a valid Template.
type Draft struct {
	literals []string
	values   []Value
}

// NewDraft returns an empty Draft, equivalent to one literal slot and no
// values (i.e. a Template that would render as the empty string).
func NewDraft() *Draft {
	return &Draft{literals: []string{""}}
}

// AppendLiteral appends s to the current trailing literal slot.
func (d *Draft) AppendLiteral(s string) *Draft {
	d.ensureInit()
	d.literals[len(d.literals)-1] += s
	return d
}

// PushValue extends the draft by one value, opening a new trailing literal
// slot. Call PushLiteral afterward (or AppendLiteral) to fill it; an empty
// trailing literal is valid and simply renders as "".
func (d *Draft) PushValue(v Value) *Draft {
	d.ensureInit()
	d.values = append(d.values, v)
	d.literals = append(d.literals, "")
	return d
}

// PushLiteral is PushValue followed by AppendLiteral in one call's worth of
// intent split in two, kept for symmetry with the template algebra's
// push_value/push_literal pairing: it appends s as a brand-new trailing
// literal segment rather than concatenating onto the current one. Most
// callers should prefer AppendLiteral after PushValue.
func (d *Draft) PushLiteral(s string) *Draft {
	d.ensureInit()
	d.literals[len(d.literals)-1] = s
	return d
}

// SpliceFragment merges frag into the draft at the current position: the
// draft's trailing literal slot is extended with frag.Literals[0]; the
// remaining literals and all of frag's values are then appended in order.
// The invariant is maintained because frag itself satisfies it.
func (d *Draft) SpliceFragment(frag Template) *Draft {
	d.ensureInit()
	if len(frag.Literals) == 0 {
		return d
	}
	d.literals[len(d.literals)-1] += frag.Literals[0]
	for i, v := range frag.Values {
		d.values = append(d.values, v)
		d.literals = append(d.literals, frag.Literals[i+1])
	}
	return d
}

// Ident appends an Ident value, a shorthand for PushValue(I(name)).
func (d *Draft) Ident(name string) *Draft { return d.PushValue(I(name)) }

// Lit appends a Lit value, a shorthand for PushValue(L(v)).
func (d *Draft) Lit(v any) *Draft { return d.PushValue(L(v)) }

// Builtin appends a Builtin value, a shorthand for PushValue(B(symbol)).
func (d *Draft) Builtin(symbol BuiltinSymbol) *Draft { return d.PushValue(B(symbol)) }

// Seal finalises the draft into an immutable Template. The draft must not
// be reused after Seal; callers needing a fresh mutable copy should start a
// new Draft and Splice the sealed template back in.
func (d *Draft) Seal() Template {
	d.ensureInit()
	lits := make([]string, len(d.literals))
	copy(lits, d.literals)
	vals := make([]Value, len(d.values))
	copy(vals, d.values)
	return Template{Literals: lits, Values: vals}
}

func (d *Draft) ensureInit() {
	if d.literals == nil {
		d.literals = []string{""}
	}
}

// Join builds a Template from parts separated by sep, splicing each part as
// a fragment. It is the composition primitive column lists and WHERE
// clauses are built from (e.g. Join(", ", columnFragments...)).
func Join(sep string, parts ...Template) Template {
	d := NewDraft()
	for i, p := range parts {
		if i > 0 {
			d.AppendLiteral(sep)
		}
		d.SpliceFragment(p)
	}
	return d.Seal()
}

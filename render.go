package axiom

import (
	"fmt"
	"strings"

	"github.com/axiomdb/axiom/dialect"
)

// Render walks tpl's literals and values in order and produces dialect-
// specific SQL text plus a positional params slice. Placeholder
// indices are allocated strictly in left-to-right order as values are
// encountered, after full sub-fragment/DBExpression expansion — this is the
// invariant the whole template algebra exists to protect.
func Render(tpl Template, dialectName string) (string, []any, error) {
	policy, ok := dialect.PolicyFor(dialectName)
	if !ok {
		return "", nil, fmt.Errorf("axiom: unknown dialect %q", dialectName)
	}
	r := &renderer{policy: policy}
	if err := r.walk(tpl); err != nil {
		return "", nil, err
	}
	return r.sb.String(), r.params, nil
}

type renderer struct {
	policy dialect.Policy
	sb     strings.Builder
	params []any
	next   int // next 1-based placeholder index, for dollar-style dialects
}

func (r *renderer) walk(tpl Template) error {
	if len(tpl.Literals) != len(tpl.Values)+1 {
		return fmt.Errorf("axiom: render: malformed template: %d literal(s), %d value(s)", len(tpl.Literals), len(tpl.Values))
	}
	r.sb.WriteString(tpl.Literals[0])
	for i, v := range tpl.Values {
		if err := r.walkValue(v); err != nil {
			return err
		}
		r.sb.WriteString(tpl.Literals[i+1])
	}
	return nil
}

func (r *renderer) walkValue(v Value) error {
	switch val := v.(type) {
	case Lit:
		r.emitPlaceholder(val.V)
	case Ident:
		r.sb.WriteString(r.policy.QuoteIdent(val.Name))
	case Builtin:
		kw, ok := r.policy.Builtin(string(val.Symbol))
		if !ok {
			return fmt.Errorf("axiom: render: unknown builtin symbol %q", val.Symbol)
		}
		r.sb.WriteString(kw)
	case SubFragmentValue:
		return r.walk(val.Template)
	case DBExpr:
		return r.walk(val.Template)
	default:
		return fmt.Errorf("axiom: render: unsupported value kind %T", v)
	}
	return nil
}

func (r *renderer) emitPlaceholder(v any) {
	r.next++
	switch r.policy.Placeholder {
	case dialect.PlaceholderDollar:
		fmt.Fprintf(&r.sb, "$%d", r.next)
	default:
		r.sb.WriteByte('?')
	}
	r.params = append(r.params, encodeLiteralForDialect(v, r.policy))
}

// encodeLiteralForDialect applies the dialect-level boolean encoding from
// sqlite/mysql encode bool to integer 0/1, postgres passes it through
// natively. Field-level encoding has already run by the time a value
// reaches the renderer; this is strictly the wire-level dialect policy.
func encodeLiteralForDialect(v any, policy dialect.Policy) any {
	b, ok := v.(bool)
	if !ok || !policy.BoolAsInt {
		return v
	}
	if b {
		return 1
	}
	return 0
}

package axiom_test

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/axiomdb/axiom"
)

// memDriver is a minimal in-memory axiom.Driver used by this package's
// tests. It understands exactly the small set of SQL shapes the mutation
// and query engines emit; it is not a general SQL executor.
type memDriver struct {
	dialectName string
	returning   bool

	mu      sync.Mutex
	rows    map[string][]axiom.Row
	nextPK  map[string]int64
	pkField map[string]string
}

func newMemDriver(dialectName string, returning bool) *memDriver {
	return &memDriver{
		dialectName: dialectName,
		returning:   returning,
		rows:        make(map[string][]axiom.Row),
		nextPK:      make(map[string]int64),
		pkField:     make(map[string]string),
	}
}

func (m *memDriver) seed(table string, pkField string, rows ...axiom.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pkField[table] = pkField
	for _, r := range rows {
		cp := make(axiom.Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		m.rows[table] = append(m.rows[table], cp)
	}
}

func (m *memDriver) Dialect() string         { return m.dialectName }
func (m *memDriver) SupportsReturning() bool { return m.returning }
func (m *memDriver) Close() error            { return nil }

func (m *memDriver) Transaction(ctx context.Context, fn func(ctx context.Context, tx axiom.Driver) error) error {
	return fn(ctx, m)
}

func (m *memDriver) All(ctx context.Context, tpl axiom.Template) ([]axiom.Row, error) {
	sql, params, err := axiom.Render(tpl, m.dialectName)
	if err != nil {
		return nil, err
	}
	return m.exec(sql, params)
}

func (m *memDriver) Get(ctx context.Context, tpl axiom.Template) (axiom.Row, error) {
	rows, err := m.All(ctx, tpl)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (m *memDriver) Run(ctx context.Context, tpl axiom.Template) (int64, error) {
	rows, err := m.All(ctx, tpl)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (m *memDriver) Val(ctx context.Context, tpl axiom.Template) (any, error) {
	row, err := m.Get(ctx, tpl)
	if err != nil || row == nil {
		return nil, err
	}
	for _, v := range row {
		return v, nil
	}
	return nil, nil
}

var (
	reInsert = regexp.MustCompile(`^INSERT INTO "(\w+)" \(([^)]*)\) VALUES \(([^)]*)\)( RETURNING \*)?$`)
	reUpdate = regexp.MustCompile(`^UPDATE "(\w+)" SET (.+?) WHERE (.+?)( RETURNING \*)?$`)
	reSelect = regexp.MustCompile(`^SELECT (\*|"\w+") FROM "(\w+)"(?: WHERE (.+))?$`)
	reDelete = regexp.MustCompile(`^DELETE FROM "(\w+)" WHERE (.+)$`)
)

func (m *memDriver) exec(sql string, params []any) ([]axiom.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cursor := 0
	// mysql quotes identifiers with backticks; the patterns expect double quotes.
	sql = strings.ReplaceAll(sql, "`", "\"")

	if g := reInsert.FindStringSubmatch(sql); g != nil {
		table, colsRaw, valsRaw, returning := g[1], g[2], g[3], g[4] != ""
		cols := splitTopLevel(colsRaw)
		vals := splitTopLevel(valsRaw)
		row := make(axiom.Row, len(cols))
		for i, c := range cols {
			row[unquote(c)] = nextToken(vals[i], params, &cursor)
		}
		if pk := m.pkField[table]; pk != "" {
			if _, ok := row[pk]; !ok {
				m.nextPK[table]++
				row[pk] = m.nextPK[table]
			} else if n, ok := row[pk].(int64); ok && n > m.nextPK[table] {
				m.nextPK[table] = n
			}
		}
		m.rows[table] = append(m.rows[table], row)
		if returning {
			return []axiom.Row{cloneRow(row)}, nil
		}
		return []axiom.Row{cloneRow(row)}, nil
	}

	if g := reUpdate.FindStringSubmatch(sql); g != nil {
		table, setRaw, whereRaw, returning := g[1], g[2], g[3], g[4] != ""
		assignments := splitTopLevel(setRaw)
		type pendingSet struct {
			col       string
			expr      string
			paramVals []any
		}
		var sets []pendingSet
		for _, a := range assignments {
			parts := strings.SplitN(a, " = ", 2)
			col := unquote(strings.TrimSpace(parts[0]))
			expr := strings.TrimSpace(parts[1])
			if strings.HasPrefix(expr, "$") {
				// postgres numbered placeholder: resolve it to its param directly.
				sets = append(sets, pendingSet{col: col, expr: "?", paramVals: []any{nextToken(expr, params, &cursor)}})
				continue
			}
			n := strings.Count(expr, "?")
			vals := make([]any, n)
			for i := 0; i < n; i++ {
				vals[i] = params[cursor]
				cursor++
			}
			sets = append(sets, pendingSet{col: col, expr: expr, paramVals: vals})
		}
		conds := parseWhere(whereRaw, params, &cursor)
		var matched []axiom.Row
		for _, row := range m.rows[table] {
			if matchRow(row, conds) {
				for _, s := range sets {
					row[s.col] = evalAssignmentExpr(s.expr, s.paramVals, row)
				}
				matched = append(matched, row)
			}
		}
		if returning {
			out := make([]axiom.Row, len(matched))
			for i, r := range matched {
				out[i] = cloneRow(r)
			}
			return out, nil
		}
		return matched, nil
	}

	if g := reSelect.FindStringSubmatch(sql); g != nil {
		col, table, whereRaw := g[1], g[2], g[3]
		var conds []condition
		if whereRaw != "" {
			conds = parseWhere(whereRaw, params, &cursor)
		}
		var out []axiom.Row
		for _, row := range m.rows[table] {
			if matchRow(row, conds) {
				if col == "*" {
					out = append(out, cloneRow(row))
				} else {
					out = append(out, axiom.Row{unquote(col): row[unquote(col)]})
				}
			}
		}
		return out, nil
	}

	if g := reDelete.FindStringSubmatch(sql); g != nil {
		table, whereRaw := g[1], g[2]
		conds := parseWhere(whereRaw, params, &cursor)
		remaining := m.rows[table][:0]
		var deleted []axiom.Row
		for _, row := range m.rows[table] {
			if matchRow(row, conds) {
				deleted = append(deleted, row)
			} else {
				remaining = append(remaining, row)
			}
		}
		m.rows[table] = remaining
		return deleted, nil
	}

	return nil, fmt.Errorf("memDriver: unrecognised SQL: %s", sql)
}

type condition struct {
	col string
	in  []any
	eq  any
	op  string // "in", "eq", "isnull"
}

func parseWhere(whereRaw string, params []any, cursor *int) []condition {
	var conds []condition
	for _, part := range strings.Split(whereRaw, " AND ") {
		part = strings.TrimSpace(part)
		switch {
		case strings.Contains(part, " IN ("):
			idx := strings.Index(part, " IN (")
			col := unquote(strings.TrimSpace(part[:idx]))
			inner := part[idx+len(" IN (") : len(part)-1]
			toks := splitTopLevel(inner)
			vals := make([]any, len(toks))
			for i, tok := range toks {
				vals[i] = nextToken(tok, params, cursor)
			}
			conds = append(conds, condition{col: col, in: vals, op: "in"})
		case strings.HasSuffix(part, " IS NULL"):
			col := unquote(strings.TrimSuffix(part, " IS NULL"))
			conds = append(conds, condition{col: col, op: "isnull"})
		case strings.Contains(part, " = "):
			sp := strings.SplitN(part, " = ", 2)
			col := unquote(strings.TrimSpace(sp[0]))
			val := nextToken(strings.TrimSpace(sp[1]), params, cursor)
			conds = append(conds, condition{col: col, eq: val, op: "eq"})
		}
	}
	return conds
}

func matchRow(row axiom.Row, conds []condition) bool {
	for _, c := range conds {
		switch c.op {
		case "in":
			found := false
			for _, v := range c.in {
				if valuesEqual(row[c.col], v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "eq":
			if !valuesEqual(row[c.col], c.eq) {
				return false
			}
		case "isnull":
			if row[c.col] != nil {
				return false
			}
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return ai == bi
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// splitTopLevel splits s on commas that are not inside parentheses.
func splitTopLevel(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, `"`)
}

// nextToken resolves one rendered value token: "?" consumes the next
// positional param, a recognised builtin keyword resolves to a concrete
// value, anything else is returned as a literal identifier/keyword string.
func nextToken(tok string, params []any, cursor *int) any {
	tok = strings.TrimSpace(tok)
	if tok == "?" {
		v := params[*cursor]
		*cursor++
		return v
	}
	if strings.HasPrefix(tok, "$") {
		if n, err := strconv.Atoi(tok[1:]); err == nil && params != nil && n-1 < len(params) {
			return params[n-1]
		}
	}
	switch tok {
	case "CURRENT_TIMESTAMP":
		return time.Now().UTC().Format("2006-01-02 15:04:05.000")
	case "CURRENT_DATE":
		return time.Now().UTC().Format("2006-01-02")
	default:
		return tok
	}
}

// evalAssignmentExpr resolves a SET assignment's right-hand side: a bare
// "?" placeholder, a builtin keyword, or a simple "<column> (+|-) ?"
// arithmetic expression referencing the row being updated.
func evalAssignmentExpr(expr string, paramVals []any, row axiom.Row) any {
	if expr == "?" {
		return paramVals[0]
	}
	switch expr {
	case "CURRENT_TIMESTAMP":
		return time.Now().UTC().Format("2006-01-02 15:04:05.000")
	case "CURRENT_DATE":
		return time.Now().UTC().Format("2006-01-02")
	}
	tokens := strings.Fields(expr)
	if len(tokens) == 3 && (tokens[1] == "+" || tokens[1] == "-") {
		leftVal, _ := toInt64(row[tokens[0]])
		var rightVal int64
		if tokens[2] == "?" {
			rightVal, _ = toInt64(paramVals[0])
		} else if n, err := strconv.ParseInt(tokens[2], 10, 64); err == nil {
			rightVal = n
		}
		if tokens[1] == "+" {
			return leftVal + rightVal
		}
		return leftVal - rightVal
	}
	return expr
}

func cloneRow(r axiom.Row) axiom.Row {
	out := make(axiom.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Package sqldriver is the database/sql-backed implementation of
// axiom.Driver, with dialect-specific support for the Migration Controller
// and Ensure Engine layered on top.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/axiomdb/axiom"
	"github.com/axiomdb/axiom/dialect"
)

// validIdentifierRe matches a bare SQL identifier, optionally schema-qualified.
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue escapes a session-variable value for inline use in a
// SET statement: backslashes first, then single quotes.
func escapeStringValue(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

// Driver adapts a *sql.DB to axiom.Driver for one of sqlite/postgres/mysql.
type Driver struct {
	db      *sql.DB
	dialect string
}

// Open opens driverName/source via database/sql and wraps it.
func Open(driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(driverName, db), nil
}

// OpenDB wraps an already-open *sql.DB.
func OpenDB(dialectName string, db *sql.DB) *Driver {
	return &Driver{db: db, dialect: dialectName}
}

// DB returns the underlying *sql.DB, for callers that need pool tuning
// (SetMaxOpenConns and friends) the axiom.Driver interface does not expose.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect normalises a driver name carrying a version/telemetry suffix
// (e.g. "postgres-telemetry") down to the bare dialect constant.
func (d *Driver) Dialect() string {
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

func (d *Driver) SupportsReturning() bool {
	p, _ := dialect.PolicyFor(d.Dialect())
	return p.SupportsReturning
}

func (d *Driver) Close() error { return d.db.Close() }

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (d *Driver) All(ctx context.Context, tpl axiom.Template) ([]axiom.Row, error) {
	sqlText, params, err := axiom.Render(tpl, d.Dialect())
	if err != nil {
		return nil, err
	}
	rows, cleanup, err := d.queryContext(ctx, d.db, sqlText, params)
	if err != nil {
		return nil, fmt.Errorf("axiom/sqldriver: query: %w", err)
	}
	out, err := scanRows(rows)
	rows.Close()
	if cleanup != nil {
		err = errors.Join(err, cleanup())
	}
	return out, err
}

func (d *Driver) Get(ctx context.Context, tpl axiom.Template) (axiom.Row, error) {
	rows, err := d.All(ctx, tpl)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (d *Driver) Run(ctx context.Context, tpl axiom.Template) (int64, error) {
	sqlText, params, err := axiom.Render(tpl, d.Dialect())
	if err != nil {
		return 0, err
	}
	res, err := d.execContext(ctx, d.db, sqlText, params)
	if err != nil {
		return 0, fmt.Errorf("axiom/sqldriver: exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers (notably sqlite on a CREATE/DDL statement) do not
		// support RowsAffected; that is not itself a failure.
		return 0, nil
	}
	return n, nil
}

func (d *Driver) Val(ctx context.Context, tpl axiom.Template) (any, error) {
	row, err := d.Get(ctx, tpl)
	if err != nil || row == nil {
		return nil, err
	}
	for _, v := range row {
		return v, nil
	}
	return nil, nil
}

func (d *Driver) Transaction(ctx context.Context, fn func(ctx context.Context, tx axiom.Driver) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("axiom/sqldriver: begin: %w", err)
	}
	txDriver := &Driver{dialect: d.dialect}
	wrapped := &txWrapper{Driver: txDriver, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// txWrapper runs every All/Get/Run/Val call against an *sql.Tx instead of
// the pooled *sql.DB. Nested Transaction calls run fn directly against the
// same tx: database/sql has no true nested-transaction primitive.
type txWrapper struct {
	*Driver
	tx *sql.Tx
}

func (w *txWrapper) All(ctx context.Context, tpl axiom.Template) ([]axiom.Row, error) {
	sqlText, params, err := axiom.Render(tpl, w.Dialect())
	if err != nil {
		return nil, err
	}
	rows, _, err := w.Driver.queryContext(ctx, w.tx, sqlText, params)
	if err != nil {
		return nil, fmt.Errorf("axiom/sqldriver: query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (w *txWrapper) Get(ctx context.Context, tpl axiom.Template) (axiom.Row, error) {
	rows, err := w.All(ctx, tpl)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (w *txWrapper) Val(ctx context.Context, tpl axiom.Template) (any, error) {
	row, err := w.Get(ctx, tpl)
	if err != nil || row == nil {
		return nil, err
	}
	for _, v := range row {
		return v, nil
	}
	return nil, nil
}

func (w *txWrapper) Run(ctx context.Context, tpl axiom.Template) (int64, error) {
	sqlText, params, err := axiom.Render(tpl, w.Dialect())
	if err != nil {
		return 0, err
	}
	res, err := w.Driver.execContext(ctx, w.tx, sqlText, params)
	if err != nil {
		return 0, fmt.Errorf("axiom/sqldriver: exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (w *txWrapper) Transaction(ctx context.Context, fn func(ctx context.Context, tx axiom.Driver) error) error {
	return fn(ctx, w)
}

func (w *txWrapper) Close() error { return nil }

func scanRows(rows *sql.Rows) ([]axiom.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []axiom.Row
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(axiom.Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeScanned(dest[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeScanned converts driver-returned []byte (common for TEXT/NUMERIC
// columns on sqlite and mysql) into string, leaving other types untouched.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ctxVarsKey is the context key under which pending session variables are
// stashed between WithVar and the next statement that consults them.
type ctxVarsKey struct{}

type sessionVar struct{ k, v string }

type sessionVars struct {
	vars []sessionVar
}

// WithVar returns a context carrying a session variable (e.g. a row-level
// security predicate such as "app.user_id") to be set via SET before the
// next statement issued with this context, and reset afterward.
func WithVar(ctx context.Context, name, value string) context.Context {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	sv.vars = append(sv.vars, sessionVar{k: name, v: value})
	return context.WithValue(ctx, ctxVarsKey{}, sv)
}

// WithIntVar is WithVar with an integer value.
func WithIntVar(ctx context.Context, name string, value int) context.Context {
	return WithVar(ctx, name, strconv.Itoa(value))
}

// VarFromContext returns the pending value set for name, if any.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	for _, s := range sv.vars {
		if s.k == name {
			return s.v, true
		}
	}
	return "", false
}

// queryContext and execContext run the statement through maySetVars so any
// session variables attached to ctx are applied first, whatever the
// dialect; on an *sql.Tx the variables
// simply live for the remainder of the transaction.
func (d *Driver) queryContext(ctx context.Context, eq execQuerier, query string, args []any) (*sql.Rows, func() error, error) {
	ex, cleanup, err := d.maySetVars(ctx, eq)
	if err != nil {
		return nil, nil, err
	}
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		if cleanup != nil {
			err = errors.Join(err, cleanup())
		}
		return nil, nil, err
	}
	return rows, cleanup, nil
}

func (d *Driver) execContext(ctx context.Context, eq execQuerier, query string, args []any) (sql.Result, error) {
	ex, cleanup, err := d.maySetVars(ctx, eq)
	if err != nil {
		return nil, err
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if cleanup != nil {
		err = errors.Join(err, cleanup())
	}
	return res, err
}

// maySetVars applies every pending session variable via SET before the
// caller's statement runs. On a *sql.DB it checks out a dedicated
// connection (so the variable and the statement share one physical
// connection) and queues a reset on release; on a *sql.Tx the variables
// are simply set once and left for the rest of the transaction.
func (d *Driver) maySetVars(ctx context.Context, eq execQuerier) (execQuerier, func() error, error) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	if len(sv.vars) == 0 {
		return eq, nil, nil
	}

	var (
		ex    execQuerier
		conn  *sql.Conn
		reset []string
		seen  = make(map[string]struct{}, len(sv.vars))
	)
	switch v := eq.(type) {
	case *sql.Tx:
		ex = v
	case *sql.DB:
		c, err := v.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		conn, ex = c, c
	default:
		ex = eq
	}

	for _, s := range sv.vars {
		if !isValidIdentifier(s.k) {
			if conn != nil {
				_ = conn.Close()
			}
			return nil, nil, fmt.Errorf("axiom/sqldriver: invalid session variable name %q", s.k)
		}
		if _, ok := seen[s.k]; !ok {
			switch d.Dialect() {
			case dialect.Postgres:
				reset = append(reset, fmt.Sprintf("RESET %s", s.k))
			case dialect.MySQL:
				reset = append(reset, fmt.Sprintf("SET %s = NULL", s.k))
			}
			seen[s.k] = struct{}{}
		}
		stmt := fmt.Sprintf("SET %s = '%s'", s.k, escapeStringValue(s.v))
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			if conn != nil {
				err = errors.Join(err, conn.Close())
			}
			return nil, nil, err
		}
	}

	if conn == nil {
		return ex, nil, nil
	}
	cleanup := func() error {
		if len(reset) > 0 {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, q := range reset {
				if _, err := conn.ExecContext(cleanupCtx, q); err != nil {
					return errors.Join(err, conn.Close())
				}
			}
		}
		return conn.Close()
	}
	return ex, cleanup, nil
}

var _ axiom.Driver = (*Driver)(nil)

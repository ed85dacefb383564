package axiom

import "context"

// DeclaredType is the domain of field types the core and its drivers agree
// on for default encode/decode behaviour.
type DeclaredType string

const (
	TypeText     DeclaredType = "text"
	TypeInteger  DeclaredType = "integer"
	TypeReal     DeclaredType = "real"
	TypeBoolean  DeclaredType = "boolean"
	TypeDatetime DeclaredType = "datetime"
	TypeJSON     DeclaredType = "json"
	TypeUUID     DeclaredType = "uuid"
)

// Row is one returned row, keyed by column name (or by canonical column key
// "table.field" for query-engine column lists).
type Row map[string]any

// Driver is the interface the core requires of a database backend.
// A concrete implementation lives in axiom/dialect/sqldriver, built on
// database/sql; tests commonly use an in-memory fake.
type Driver interface {
	// Dialect returns one of dialect.SQLite, dialect.Postgres, dialect.MySQL.
	Dialect() string

	// All runs tpl and returns every resulting row.
	All(ctx context.Context, tpl Template) ([]Row, error)
	// Get runs tpl and returns the first row, or (nil, nil) if there were none.
	Get(ctx context.Context, tpl Template) (Row, error)
	// Run executes tpl and returns the number of affected rows.
	Run(ctx context.Context, tpl Template) (int64, error)
	// Val runs tpl and returns the first column of the first row, or
	// (nil, nil) if there were no rows.
	Val(ctx context.Context, tpl Template) (any, error)

	// Transaction runs fn against a connection-bound Driver, committing on
	// normal return and rolling back if fn returns an error.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Driver) error) error

	// Close releases the underlying connection(s).
	Close() error

	// SupportsReturning reports whether the dialect can append RETURNING to
	// mutations, per the per-dialect policy table.
	SupportsReturning() bool
}

// ValueEncoder is an optional driver capability: dialect-specific encoding
// for a field's inferred type, consulted as priority 2 in the encode
// order.
type ValueEncoder interface {
	EncodeValue(v any, declared DeclaredType) (any, error, bool)
}

// ValueDecoder is an optional driver capability mirroring ValueEncoder for
// decode's priority order.
type ValueDecoder interface {
	DecodeValue(v any, declared DeclaredType) (any, error, bool)
}

// MigrationLocker is an optional driver capability providing an exclusive
// lock for the duration of fn (advisory lock on postgres, application lock
// on mysql, BEGIN EXCLUSIVE on sqlite). If a Driver does not implement this,
// the Migration Controller falls back to wrapping the migration sequence in
// a transaction.
type MigrationLocker interface {
	WithMigrationLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// Ensurer is the optional driver capability backing the Ensure Engine
// A Driver that does not implement Ensurer causes
// Ensure*/CopyColumn calls to fail with DialectUnsupportedError.
type Ensurer interface {
	// EnsureTable creates tbl (with its indexes) if it does not exist, or
	// adds any declared column missing from it if it does. A declared index
	// missing from an existing table is not added.
	EnsureTable(ctx context.Context, tbl Table) error
	// EnsureConstraints creates any declared unique constraint or foreign
	// key absent from the live table, after a preflight probe.
	EnsureConstraints(ctx context.Context, tbl Table) error
	// EnsureView creates or replaces a view from its declared template.
	EnsureView(ctx context.Context, tbl Table) error
	// CopyColumn runs UPDATE tbl SET to = from WHERE to IS NULL.
	CopyColumn(ctx context.Context, tbl Table, from, to string) error
	// ListColumns introspects the live table's column names.
	ListColumns(ctx context.Context, tableName string) ([]string, error)
	// TableExists reports whether tableName exists in the live database.
	TableExists(ctx context.Context, tableName string) (bool, error)
	// HasConstraint reports whether the live table already carries the
	// named unique constraint or foreign key.
	HasConstraint(ctx context.Context, tableName, constraintName string) (bool, error)
}

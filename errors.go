package axiom

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common outcomes.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("axiom: entity not found")

	// ErrMigrationAlreadyOpen is returned when Open is called twice on the
	// same Migrator instance.
	ErrMigrationAlreadyOpen = errors.New("axiom: migration already opened")

	// ErrMigrationLockBusy is the sentinel a MigrationLocker implementation
	// wraps its error with when the lock is currently held elsewhere. The
	// Migrator retries acquisition with backoff on this error.
	ErrMigrationLockBusy = errors.New("axiom: migration lock busy")
)

// ValidationError reports that an input record failed the declared schema.
// It carries the field path so callers can point the user at the offending
// input.
type ValidationError struct {
	Table  string
	Field  string // dotted field path, e.g. "address.zip"
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("axiom: validation failed for table %q: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("axiom: validation failed for %s.%s: %s", e.Table, e.Field, e.Reason)
}

// NewValidationError returns a new ValidationError.
func NewValidationError(table, field, reason string) *ValidationError {
	return &ValidationError{Table: table, Field: field, Reason: reason}
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// ConfigurationError reports a caller/schema misconfiguration: a mutation
// against a read-only view, a missing primary key, a missing soft-delete
// field, an empty update set, an encode/decode hook paired with a
// DBExpression or Builtin value, or a reference/reverse-role name collision.
type ConfigurationError struct {
	Table string
	Op    string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("axiom: configuration error on table %q: %s", e.Table, e.Msg)
	}
	return fmt.Sprintf("axiom: configuration error: %s on table %q: %s", e.Op, e.Table, e.Msg)
}

// NewConfigurationError returns a new ConfigurationError.
func NewConfigurationError(table, op, msg string) *ConfigurationError {
	return &ConfigurationError{Table: table, Op: op, Msg: msg}
}

// IsConfigurationError reports whether err is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// DialectUnsupportedError reports that an optional driver capability is
// absent when the core needed it (e.g. ensure without an Ensurer driver).
type DialectUnsupportedError struct {
	Dialect    string
	Capability string
}

func (e *DialectUnsupportedError) Error() string {
	return fmt.Sprintf("axiom: dialect %q does not support %s", e.Dialect, e.Capability)
}

// NewDialectUnsupportedError returns a new DialectUnsupportedError.
func NewDialectUnsupportedError(dialect, capability string) *DialectUnsupportedError {
	return &DialectUnsupportedError{Dialect: dialect, Capability: capability}
}

// IsDialectUnsupportedError reports whether err is a *DialectUnsupportedError.
func IsDialectUnsupportedError(err error) bool {
	var e *DialectUnsupportedError
	return errors.As(err, &e)
}

// ConstraintKind enumerates the database-level constraint kinds the core
// recognises when classifying a driver error.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// ConstraintViolationError wraps a constraint violation propagated from the
// database during a mutation.
type ConstraintViolationError struct {
	Kind       ConstraintKind
	Table      string
	Column     string
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	parts := []string{fmt.Sprintf("axiom: %s constraint violated", e.Kind)}
	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table=%s", e.Table))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column=%s", e.Column))
	}
	if e.Constraint != "" {
		parts = append(parts, fmt.Sprintf("constraint=%s", e.Constraint))
	}
	msg := strings.Join(parts, " ")
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying driver error.
func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// IsConstraintViolationError reports whether err is a *ConstraintViolationError.
func IsConstraintViolationError(err error) bool {
	var e *ConstraintViolationError
	return errors.As(err, &e)
}

// ConstraintPreflightError is raised by the Ensure Engine before attempting
// to add a constraint that a preflight probe found would fail.
type ConstraintPreflightError struct {
	Table          string
	Constraint     string
	Query          string
	ViolationCount int
}

func (e *ConstraintPreflightError) Error() string {
	return fmt.Sprintf("axiom: preflight failed for constraint %q on table %q: %d violation(s) found (probe: %s)",
		e.Constraint, e.Table, e.ViolationCount, e.Query)
}

// NewConstraintPreflightError returns a new ConstraintPreflightError.
func NewConstraintPreflightError(table, constraint, query string, count int) *ConstraintPreflightError {
	return &ConstraintPreflightError{Table: table, Constraint: constraint, Query: query, ViolationCount: count}
}

// IsConstraintPreflightError reports whether err is a *ConstraintPreflightError.
func IsConstraintPreflightError(err error) bool {
	var e *ConstraintPreflightError
	return errors.As(err, &e)
}

// SchemaDriftError reports that EnsureTable found an existing table missing
// one or more declared constraints.
type SchemaDriftError struct {
	Table       string
	Description string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("axiom: schema drift on table %q: %s (call EnsureConstraints to remediate)", e.Table, e.Description)
}

// NewSchemaDriftError returns a new SchemaDriftError.
func NewSchemaDriftError(table, description string) *SchemaDriftError {
	return &SchemaDriftError{Table: table, Description: description}
}

// IsSchemaDriftError reports whether err is a *SchemaDriftError.
func IsSchemaDriftError(err error) bool {
	var e *SchemaDriftError
	return errors.As(err, &e)
}

// EnsureError reports a DDL step failure encountered while ensuring a table,
// view, or constraint.
type EnsureError struct {
	Op    string
	Table string
	Step  int
	Err   error
}

func (e *EnsureError) Error() string {
	return fmt.Sprintf("axiom: ensure %s on table %q failed at step %d: %v", e.Op, e.Table, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *EnsureError) Unwrap() error { return e.Err }

// NewEnsureError returns a new EnsureError.
func NewEnsureError(op, table string, step int, err error) *EnsureError {
	return &EnsureError{Op: op, Table: table, Step: step, Err: err}
}

// IsEnsureError reports whether err is an *EnsureError.
func IsEnsureError(err error) bool {
	var e *EnsureError
	return errors.As(err, &e)
}

// NormalisationError reports that a raw row-set contains columns for tables
// not registered in the query set passed to the normaliser.
type NormalisationError struct {
	UnexpectedTables []string
}

func (e *NormalisationError) Error() string {
	return fmt.Sprintf("axiom: normalisation failed: unexpected table(s) in result set: %s", strings.Join(e.UnexpectedTables, ", "))
}

// NewNormalisationError returns a new NormalisationError.
func NewNormalisationError(tables []string) *NormalisationError {
	return &NormalisationError{UnexpectedTables: tables}
}

// IsNormalisationError reports whether err is a *NormalisationError.
func IsNormalisationError(err error) bool {
	var e *NormalisationError
	return errors.As(err, &e)
}

// DecodingError reports a JSON-parse failure or invalid date encountered
// while decoding a database value into its declared Go type.
type DecodingError struct {
	Field   string
	Input   string // truncated input, for diagnostics
	Reason  string
	Wrapped error
}

const decodingErrorInputLimit = 80

func (e *DecodingError) Error() string {
	in := e.Input
	if len(in) > decodingErrorInputLimit {
		in = in[:decodingErrorInputLimit] + "…"
	}
	return fmt.Sprintf("axiom: decoding field %q failed (%s): input=%q", e.Field, e.Reason, in)
}

// Unwrap returns the underlying error, if any.
func (e *DecodingError) Unwrap() error { return e.Wrapped }

// NewDecodingError returns a new DecodingError with the input truncated for
// safe logging.
func NewDecodingError(field, input, reason string, wrapped error) *DecodingError {
	return &DecodingError{Field: field, Input: input, Reason: reason, Wrapped: wrapped}
}

// IsDecodingError reports whether err is a *DecodingError.
func IsDecodingError(err error) bool {
	var e *DecodingError
	return errors.As(err, &e)
}

// MigrationAlreadyOpenError is returned when Migrator.Open is called a
// second time on the same instance.
type MigrationAlreadyOpenError struct{}

func (e *MigrationAlreadyOpenError) Error() string { return ErrMigrationAlreadyOpen.Error() }

// Is reports whether target is ErrMigrationAlreadyOpen, so that
// errors.Is(err, ErrMigrationAlreadyOpen) works for this type too.
func (e *MigrationAlreadyOpenError) Is(target error) bool { return target == ErrMigrationAlreadyOpen }

// IsMigrationAlreadyOpen reports whether err indicates a second Open call.
func IsMigrationAlreadyOpen(err error) bool {
	return errors.Is(err, ErrMigrationAlreadyOpen)
}

// IsMigrationLockBusy reports whether err indicates the migration lock is
// currently held by another process.
func IsMigrationLockBusy(err error) bool {
	return errors.Is(err, ErrMigrationLockBusy)
}

// MigrationLockTimeoutError is returned when the Migrator's backoff budget
// for acquiring the migration lock is exhausted.
type MigrationLockTimeoutError struct {
	Err error
}

func (e *MigrationLockTimeoutError) Error() string {
	return fmt.Sprintf("axiom: migration lock acquisition timed out: %v", e.Err)
}

// Unwrap returns the last lock-busy error observed before timing out.
func (e *MigrationLockTimeoutError) Unwrap() error { return e.Err }

// IsMigrationLockTimeoutError reports whether err is a *MigrationLockTimeoutError.
func IsMigrationLockTimeoutError(err error) bool {
	var e *MigrationLockTimeoutError
	return errors.As(err, &e)
}

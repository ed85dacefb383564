package axiom

import "github.com/axiomdb/axiom/dialect/sqlgraph"

// classifyConstraintKind inspects a raw driver error and reports which
// ConstraintKind it represents, if any.
func classifyConstraintKind(err error) (ConstraintKind, bool) {
	switch {
	case sqlgraph.IsUniqueConstraintError(err):
		return ConstraintUnique, true
	case sqlgraph.IsForeignKeyConstraintError(err):
		return ConstraintForeignKey, true
	case sqlgraph.IsNotNullConstraintError(err):
		return ConstraintNotNull, true
	default:
		return "", false
	}
}

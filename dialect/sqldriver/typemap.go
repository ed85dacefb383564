package sqldriver

import "github.com/axiomdb/axiom"

// columnType resolves a declared field type to the dialect's native column
// type, for CREATE TABLE / ALTER TABLE ADD COLUMN DDL.
func columnType(dialectName string, t axiom.DeclaredType) string {
	switch dialectName {
	case "postgres":
		switch t {
		case axiom.TypeText:
			return "TEXT"
		case axiom.TypeInteger:
			return "BIGINT"
		case axiom.TypeReal:
			return "DOUBLE PRECISION"
		case axiom.TypeBoolean:
			return "BOOLEAN"
		case axiom.TypeDatetime:
			return "TIMESTAMPTZ"
		case axiom.TypeJSON:
			return "JSONB"
		case axiom.TypeUUID:
			return "UUID"
		}
	case "mysql":
		switch t {
		case axiom.TypeText:
			return "TEXT"
		case axiom.TypeInteger:
			return "BIGINT"
		case axiom.TypeReal:
			return "DOUBLE"
		case axiom.TypeBoolean:
			return "TINYINT(1)"
		case axiom.TypeDatetime:
			return "DATETIME"
		case axiom.TypeJSON:
			return "JSON"
		case axiom.TypeUUID:
			return "CHAR(36)"
		}
	default: // sqlite
		switch t {
		case axiom.TypeText:
			return "TEXT"
		case axiom.TypeInteger:
			return "INTEGER"
		case axiom.TypeReal:
			return "REAL"
		case axiom.TypeBoolean:
			return "INTEGER"
		case axiom.TypeDatetime:
			return "TEXT"
		case axiom.TypeJSON:
			return "TEXT"
		case axiom.TypeUUID:
			return "TEXT"
		}
	}
	return "TEXT"
}

// autoIncrementClause returns the dialect-specific suffix for a field
// declared both Primary and AutoIncrement, or "" if the dialect expresses
// that differently (sqlite's INTEGER PRIMARY KEY is already auto-
// incrementing by rowid aliasing, with no extra keyword required).
func autoIncrementClause(dialectName string) string {
	switch dialectName {
	case "postgres":
		return " GENERATED BY DEFAULT AS IDENTITY"
	case "mysql":
		return " AUTO_INCREMENT"
	default:
		return ""
	}
}

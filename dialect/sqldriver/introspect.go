package sqldriver

import (
	"context"
	"fmt"

	"github.com/axiomdb/axiom"
)

// TableExists reports whether tableName exists in the live database, via
// each dialect's own catalog.
func (d *Driver) TableExists(ctx context.Context, tableName string) (bool, error) {
	var tpl axiom.Template
	switch d.Dialect() {
	case "postgres":
		tpl = axiom.NewDraft().AppendLiteral(
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ").Lit(tableName).Seal()
	case "mysql":
		tpl = axiom.NewDraft().AppendLiteral(
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ").Lit(tableName).Seal()
	default: // sqlite
		tpl = axiom.NewDraft().AppendLiteral(
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ").Lit(tableName).Seal()
	}
	v, err := d.Val(ctx, tpl)
	if err != nil {
		return false, err
	}
	n, _ := asInt64(v)
	return n > 0, nil
}

// ListColumns introspects the live table's column names.
func (d *Driver) ListColumns(ctx context.Context, tableName string) ([]string, error) {
	switch d.Dialect() {
	case "postgres":
		tpl := axiom.NewDraft().AppendLiteral(
			"SELECT column_name FROM information_schema.columns WHERE table_name = ").Lit(tableName).Seal()
		return d.columnNames(ctx, tpl, "column_name")
	case "mysql":
		tpl := axiom.NewDraft().AppendLiteral(
			"SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ").Lit(tableName).Seal()
		return d.columnNames(ctx, tpl, "column_name")
	default: // sqlite has no placeholder support inside PRAGMA; the table
		// name is validated by the caller's declared schema, never raw
		// user input, so inlining it here is safe.
		tpl := axiom.Raw(fmt.Sprintf("PRAGMA table_info(%s)", d.quote(tableName)))
		return d.columnNames(ctx, tpl, "name")
	}
}

func (d *Driver) columnNames(ctx context.Context, tpl axiom.Template, key string) ([]string, error) {
	rows, err := d.All(ctx, tpl)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[key]; ok {
			if s, ok := v.(string); ok {
				cols = append(cols, s)
			}
		}
	}
	return cols, nil
}

// HasConstraint reports whether the live table already carries the named
// unique constraint or foreign key. On postgres/mysql this is a catalog
// lookup by the exact constraint name this module assigned when it created
// the constraint (see axiom's uniqueConstraintName/foreignKeyConstraintName).
// sqlite has no notion of a named foreign key, so an FK lookup there
// (constraintName starting with "fk_") instead checks pragma foreign_key_list
// for any FK on the same source column.
func (d *Driver) HasConstraint(ctx context.Context, tableName, constraintName string) (bool, error) {
	switch d.Dialect() {
	case "postgres":
		tpl := axiom.NewDraft().AppendLiteral(
			"SELECT COUNT(*) FROM information_schema.table_constraints WHERE table_name = ").Lit(tableName).
			AppendLiteral(" AND constraint_name = ").Lit(constraintName).Seal()
		return d.countGreaterThanZero(ctx, tpl)
	case "mysql":
		tpl := axiom.NewDraft().AppendLiteral(
			"SELECT COUNT(*) FROM information_schema.table_constraints WHERE table_schema = DATABASE() AND table_name = ").Lit(tableName).
			AppendLiteral(" AND constraint_name = ").Lit(constraintName).Seal()
		return d.countGreaterThanZero(ctx, tpl)
	default: // sqlite
		return d.sqliteHasConstraint(ctx, tableName, constraintName)
	}
}

func (d *Driver) countGreaterThanZero(ctx context.Context, tpl axiom.Template) (bool, error) {
	v, err := d.Val(ctx, tpl)
	if err != nil {
		return false, err
	}
	n, _ := asInt64(v)
	return n > 0, nil
}

func (d *Driver) sqliteHasConstraint(ctx context.Context, tableName, constraintName string) (bool, error) {
	indexList, err := d.All(ctx, axiom.Raw(fmt.Sprintf("PRAGMA index_list(%s)", d.quote(tableName))))
	if err != nil {
		return false, err
	}
	for _, row := range indexList {
		if name, ok := row["name"].(string); ok && name == constraintName {
			return true, nil
		}
	}

	fkList, err := d.All(ctx, axiom.Raw(fmt.Sprintf("PRAGMA foreign_key_list(%s)", d.quote(tableName))))
	if err != nil {
		return false, err
	}
	wantCol := trimConstraintPrefix(constraintName, "fk_"+tableName+"_")
	for _, row := range fkList {
		if from, ok := row["from"].(string); ok && from == wantCol {
			return true, nil
		}
	}
	return false, nil
}

func trimConstraintPrefix(name, prefix string) string {
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		var parsed int64
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

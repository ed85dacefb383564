package sqldriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/axiomdb/axiom"
	"github.com/axiomdb/axiom/dialect"
)

// EnsureTable creates tbl if absent, or additively evolves it: any declared
// column missing from the live table is added via ALTER TABLE ADD COLUMN.
// tbl.Indexed indexes are created only together with a new table; an index
// missing from an existing table is not added. Declared but not-yet-present constraints are left for EnsureConstraints —
// this method never runs DDL that could lock the table under contention.
func (d *Driver) EnsureTable(ctx context.Context, tbl axiom.Table) error {
	exists, err := d.TableExists(ctx, tbl.Name)
	if err != nil {
		return err
	}
	if !exists {
		return d.createTable(ctx, tbl)
	}
	return d.addMissingColumns(ctx, tbl)
}

func (d *Driver) createTable(ctx context.Context, tbl axiom.Table) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", d.quote(tbl.Name))
	for i, f := range tbl.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.quote(f.Name))
		b.WriteByte(' ')
		b.WriteString(columnType(d.Dialect(), f.Type))
		if f.Name == tbl.Primary {
			b.WriteString(" PRIMARY KEY")
			if f.AutoIncrement {
				b.WriteString(autoIncrementClause(d.Dialect()))
			}
		} else if !f.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(")")

	if _, err := d.execDDL(ctx, b.String()); err != nil {
		return err
	}
	for _, col := range tbl.Indexed {
		if err := d.createIndex(ctx, tbl.Name, col, false, ""); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) addMissingColumns(ctx context.Context, tbl axiom.Table) error {
	live, err := d.ListColumns(ctx, tbl.Name)
	if err != nil {
		return err
	}
	liveSet := make(map[string]bool, len(live))
	for _, c := range live {
		liveSet[c] = true
	}
	for _, f := range tbl.Fields {
		if liveSet[f.Name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.quote(tbl.Name), d.quote(f.Name), columnType(d.Dialect(), f.Type))
		if !f.Nullable {
			// A NOT NULL column added to a populated table needs a default
			// to satisfy existing rows; additive evolution only ever adds
			// nullable columns, per the schema-evolution contract — a
			// caller that needs NOT NULL should add nullable, backfill via
			// CopyColumn, then widen the declared schema in a later step.
			stmt += " NULL"
		}
		if _, err := d.execDDL(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) createIndex(ctx context.Context, table, col string, unique bool, name string) error {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	if name == "" {
		name = fmt.Sprintf("ix_%s_%s", table, col)
	}
	stmt := fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, d.quote(name), d.quote(table), d.quote(col))
	_, err := d.execDDL(ctx, stmt)
	return err
}

// EnsureConstraints creates every unique constraint and (where the dialect
// allows it against a live table) foreign key declared on tbl. The caller
// (axiom.Database.EnsureConstraints) has already preflighted for duplicates
// and orphans before this runs.
func (d *Driver) EnsureConstraints(ctx context.Context, tbl axiom.Table) error {
	for _, cols := range tbl.Unique {
		name := fmt.Sprintf("ux_%s_%s", tbl.Name, strings.Join(cols, "_"))
		if err := d.addUniqueConstraint(ctx, tbl.Name, cols, name); err != nil {
			return err
		}
	}
	for _, ref := range tbl.References {
		if len(ref.SourceFields) != 1 || ref.Target == nil {
			continue
		}
		name := fmt.Sprintf("fk_%s_%s", tbl.Name, ref.SourceFields[0])
		if err := d.addForeignKey(ctx, tbl.Name, ref, name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) addUniqueConstraint(ctx context.Context, table string, cols []string, name string) error {
	if d.Dialect() == "sqlite" {
		// sqlite has no ALTER TABLE ADD CONSTRAINT; a unique index is the
		// dialect-native equivalent and is what HasConstraint looks for.
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = d.quote(c)
		}
		stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", d.quote(name), d.quote(table), strings.Join(quoted, ", "))
		_, err := d.execDDL(ctx, stmt)
		return err
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.quote(c)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)", d.quote(table), d.quote(name), strings.Join(quoted, ", "))
	_, err := d.execDDL(ctx, stmt)
	return err
}

func (d *Driver) addForeignKey(ctx context.Context, table string, ref axiom.Reference, name string) error {
	if d.Dialect() == "sqlite" {
		return fmt.Errorf("axiom/sqldriver: sqlite cannot add a foreign key to an existing table %q; rebuild the table with the constraint declared at creation", table)
	}
	stmt := fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)%s",
		d.quote(table), d.quote(name), d.quote(ref.SourceFields[0]),
		d.quote(ref.Target.Name), d.quote(ref.TargetField),
		onDeleteClause(ref.OnDelete),
	)
	_, err := d.execDDL(ctx, stmt)
	return err
}

func onDeleteClause(action axiom.OnDeleteAction) string {
	switch action {
	case axiom.OnDeleteCascade:
		return " ON DELETE CASCADE"
	case axiom.OnDeleteSetNull:
		return " ON DELETE SET NULL"
	case axiom.OnDeleteRestrict:
		return " ON DELETE RESTRICT"
	default:
		return ""
	}
}

// EnsureView (re)creates tbl, which must be a KindView capability, as
// DROP VIEW IF EXISTS followed by CREATE VIEW — uniform across all three
// dialects rather than relying on postgres/mysql's CREATE OR REPLACE VIEW,
// which sqlite lacks entirely.
func (d *Driver) EnsureView(ctx context.Context, tbl axiom.Table) error {
	if _, err := d.execDDL(ctx, fmt.Sprintf("DROP VIEW IF EXISTS %s", d.quote(tbl.Name))); err != nil {
		return err
	}
	whereSQL := ""
	var params []any
	if tbl.ViewWhere != nil {
		sqlText, p, err := axiom.Render(*tbl.ViewWhere, d.Dialect())
		if err != nil {
			return err
		}
		whereSQL, params = " WHERE "+sqlText, p
	}
	stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s%s", d.quote(tbl.Name), d.quote(tbl.OriginalName), whereSQL)
	_, err := d.execRawWithParams(ctx, stmt, params)
	return err
}

// CopyColumn runs UPDATE tbl SET to = from WHERE to IS NULL.
func (d *Driver) CopyColumn(ctx context.Context, tbl axiom.Table, from, to string) error {
	stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL", d.quote(tbl.Name), d.quote(to), d.quote(from), d.quote(to))
	_, err := d.execDDL(ctx, stmt)
	return err
}

func (d *Driver) quote(name string) string {
	p, _ := dialect.PolicyFor(d.Dialect())
	return p.QuoteIdent(name)
}

func (d *Driver) execDDL(ctx context.Context, stmt string) (int64, error) {
	return d.execRawWithParams(ctx, stmt, nil)
}

func (d *Driver) execRawWithParams(ctx context.Context, stmt string, params []any) (int64, error) {
	res, err := d.execContext(ctx, d.db, stmt, params)
	if err != nil {
		return 0, fmt.Errorf("axiom/sqldriver: ddl: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

var _ axiom.Ensurer = (*Driver)(nil)

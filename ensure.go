package axiom

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

func uniqueConstraintName(table string, cols []string) string {
	return fmt.Sprintf("ux_%s_%s", table, strings.Join(cols, "_"))
}

func foreignKeyConstraintName(table string, cols []string) string {
	return fmt.Sprintf("fk_%s_%s", table, strings.Join(cols, "_"))
}

func (d *Database) ensurer() (Ensurer, error) {
	e, ok := d.drv.(Ensurer)
	if !ok {
		return nil, NewDialectUnsupportedError(d.drv.Dialect(), "ensure")
	}
	return e, nil
}

// EnsureTable creates t (with its indexes) if it does not exist in the live
// database, or adds any declared column missing from it if it does; a
// declared index missing from an existing table is not added. It then verifies every declared unique constraint and foreign key
// is present, reporting *SchemaDriftError instructing the caller to run
// EnsureConstraints if any is missing — EnsureTable never adds a
// locking-risk constraint itself. Finally it re-ensures any view built on
// t. Runs under the migration lock.
func (d *Database) EnsureTable(ctx context.Context, t *Table) error {
	e, err := d.ensurer()
	if err != nil {
		return err
	}
	return d.withMigrationLock(ctx, func(ctx context.Context) error {
		slog.Info("axiom: ensuring table", "table", t.Name)
		if err := e.EnsureTable(ctx, *t); err != nil {
			return NewEnsureError("ensure_table", t.Name, 0, err)
		}

		missing, err := d.missingConstraints(ctx, e, t)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			slog.Warn("axiom: schema drift detected", "table", t.Name, "missing", missing)
			return NewSchemaDriftError(t.Name, "missing constraint(s) — call EnsureConstraints: "+strings.Join(missing, ", "))
		}

		for _, view := range d.viewsOf(t) {
			if err := e.EnsureView(ctx, *view); err != nil {
				return NewEnsureError("ensure_view", view.Name, 1, err)
			}
		}
		return nil
	})
}

func (d *Database) missingConstraints(ctx context.Context, e Ensurer, t *Table) ([]string, error) {
	var missing []string
	for _, cols := range t.Unique {
		name := uniqueConstraintName(t.Name, cols)
		has, err := e.HasConstraint(ctx, t.Name, name)
		if err != nil {
			return nil, err
		}
		if !has {
			missing = append(missing, name)
		}
	}
	for _, ref := range t.References {
		if len(ref.SourceFields) == 0 {
			continue
		}
		name := foreignKeyConstraintName(t.Name, ref.SourceFields)
		has, err := e.HasConstraint(ctx, t.Name, name)
		if err != nil {
			return nil, err
		}
		if !has {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func (d *Database) viewsOf(t *Table) []*Table {
	var views []*Table
	for _, candidate := range d.Tables() {
		if candidate.Kind == KindView && candidate.OriginalName == t.Name {
			views = append(views, candidate)
		}
	}
	return views
}

// EnsureConstraints creates every declared unique constraint or foreign key
// absent from t's live table. Each is preflighted before being applied: a
// unique constraint is checked with a GROUP BY/HAVING duplicate probe, a
// foreign key with a left-anti-join orphan probe. A preflight hit raises
// *ConstraintPreflightError carrying the diagnostic query and violation
// count instead of attempting (and failing) the DDL. Runs under the
// migration lock.
func (d *Database) EnsureConstraints(ctx context.Context, t *Table) error {
	e, err := d.ensurer()
	if err != nil {
		return err
	}
	return d.withMigrationLock(ctx, func(ctx context.Context) error {
		for _, cols := range t.Unique {
			name := uniqueConstraintName(t.Name, cols)
			has, err := e.HasConstraint(ctx, t.Name, name)
			if err != nil {
				return err
			}
			if has {
				continue
			}
			if err := d.preflightUnique(ctx, t, cols, name); err != nil {
				return err
			}
		}
		for _, ref := range t.References {
			if len(ref.SourceFields) != 1 || ref.Target == nil {
				continue
			}
			name := foreignKeyConstraintName(t.Name, ref.SourceFields)
			has, err := e.HasConstraint(ctx, t.Name, name)
			if err != nil {
				return err
			}
			if has {
				continue
			}
			if err := d.preflightForeignKey(ctx, t, ref, name); err != nil {
				return err
			}
		}
		if err := e.EnsureConstraints(ctx, *t); err != nil {
			return NewEnsureError("ensure_constraints", t.Name, 1, err)
		}
		slog.Info("axiom: constraints applied", "table", t.Name)
		return nil
	})
}

func (d *Database) preflightUnique(ctx context.Context, t *Table, cols []string, constraintName string) error {
	draft := NewDraft().AppendLiteral("SELECT COUNT(*) FROM (SELECT 1 FROM ").Ident(t.Name).AppendLiteral(" GROUP BY ")
	for i, c := range cols {
		if i > 0 {
			draft.AppendLiteral(", ")
		}
		draft.Ident(c)
	}
	draft.AppendLiteral(" HAVING COUNT(*) > 1) AS dup_check")
	tpl := draft.Seal()

	sql, _, err := Render(tpl, d.drv.Dialect())
	if err != nil {
		return err
	}
	count, err := d.probeCount(ctx, tpl)
	if err != nil {
		return err
	}
	if count > 0 {
		return NewConstraintPreflightError(t.Name, constraintName, sql, int(count))
	}
	return nil
}

func (d *Database) preflightForeignKey(ctx context.Context, t *Table, ref Reference, constraintName string) error {
	fk := ref.SourceFields[0]
	target := ref.Target.Name
	targetField := ref.TargetField

	draft := NewDraft().AppendLiteral("SELECT COUNT(*) FROM (SELECT 1 FROM ").Ident(t.Name).
		AppendLiteral(" LEFT JOIN ").Ident(target).AppendLiteral(" ON ").
		Ident(t.Name).AppendLiteral(".").Ident(fk).AppendLiteral(" = ").
		Ident(target).AppendLiteral(".").Ident(targetField).
		AppendLiteral(" WHERE ").Ident(target).AppendLiteral(".").Ident(targetField).
		AppendLiteral(" IS NULL AND ").Ident(t.Name).AppendLiteral(".").Ident(fk).
		AppendLiteral(" IS NOT NULL) AS orphan_check")
	tpl := draft.Seal()

	sql, _, err := Render(tpl, d.drv.Dialect())
	if err != nil {
		return err
	}
	count, err := d.probeCount(ctx, tpl)
	if err != nil {
		return err
	}
	if count > 0 {
		return NewConstraintPreflightError(t.Name, constraintName, sql, int(count))
	}
	return nil
}

func (d *Database) probeCount(ctx context.Context, tpl Template) (int64, error) {
	v, err := d.drv.Val(ctx, tpl)
	if err != nil {
		return 0, err
	}
	n, _ := asInt64(v)
	return n, nil
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
	default:
		return 0, false
	}
}

// EnsureView creates or replaces a view from its declared template. t.Kind
// must be KindView. Runs under the migration lock.
func (d *Database) EnsureView(ctx context.Context, t *Table) error {
	if t.Kind != KindView {
		return NewConfigurationError(t.Name, "ensure_view", "table is not a view")
	}
	e, err := d.ensurer()
	if err != nil {
		return err
	}
	return d.withMigrationLock(ctx, func(ctx context.Context) error {
		if err := e.EnsureView(ctx, *t); err != nil {
			return NewEnsureError("ensure_view", t.Name, 0, err)
		}
		return nil
	})
}

// CopyColumn runs UPDATE t SET to = from WHERE to IS NULL against the live
// table. to must be in t's declared schema; from must exist in the live
// table (checked via the driver's column-listing introspection). The
// operation is idempotent: once to is fully populated, a repeat call copies
// zero rows. Runs under the migration lock.
func (d *Database) CopyColumn(ctx context.Context, t *Table, from, to string) error {
	if _, ok := t.FieldByName(to); !ok {
		return NewConfigurationError(t.Name, "copy_column", fmt.Sprintf("column %q is not in the declared schema", to))
	}
	e, err := d.ensurer()
	if err != nil {
		return err
	}
	return d.withMigrationLock(ctx, func(ctx context.Context) error {
		cols, err := e.ListColumns(ctx, t.Name)
		if err != nil {
			return err
		}
		if !containsString(cols, from) {
			return NewConfigurationError(t.Name, "copy_column", fmt.Sprintf("source column %q does not exist in the live table", from))
		}
		if err := e.CopyColumn(ctx, *t, from, to); err != nil {
			return NewEnsureError("copy_column", t.Name, 0, err)
		}
		slog.Info("axiom: column copied", "table", t.Name, "from", from, "to", to)
		return nil
	})
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

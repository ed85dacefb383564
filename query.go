package axiom

import (
	"context"
	"encoding/json"
)

// buildColumnList implements the column-list generation: every
// non-derived field of every table as "table"."field" AS "table.field", plus
// every derived column that declares a SQL Template as
// (expr) AS "table.derived". Derived columns without a Template are
// Go-side-only and contribute no SELECT column.
func buildColumnList(tables []*Table) Template {
	d := NewDraft()
	first := true
	emitSep := func() {
		if !first {
			d.AppendLiteral(",")
		}
		first = false
	}
	for _, t := range tables {
		for _, f := range t.Fields {
			emitSep()
			d.Ident(t.Name).AppendLiteral(".").Ident(f.Name).AppendLiteral(" AS ").Ident(t.Name + "." + f.Name)
		}
		for _, dc := range t.DerivedColumns {
			if len(dc.Template.Literals) == 0 {
				continue
			}
			emitSep()
			d.AppendLiteral("(").SpliceFragment(dc.Template).AppendLiteral(")").AppendLiteral(" AS ").Ident(t.Name + "." + dc.Name)
		}
	}
	return d.Seal()
}

// decodeCanonicalRow decodes every column of a canonical-keyed row
// ("table.field") using the owning table's field (or derived column) type.
func decodeCanonicalRow(tables []*Table, row Row, drv Driver) (Row, error) {
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	out := make(Row, len(row))
	for key, v := range row {
		table, field, ok := splitCanonicalKey(key)
		if !ok {
			out[key] = v
			continue
		}
		t, ok := byName[table]
		if !ok {
			out[key] = v
			continue
		}
		if f, ok := t.FieldByName(field); ok {
			dv, err := Decode(f, v, drv)
			if err != nil {
				return nil, err
			}
			out[key] = dv
			continue
		}
		out[key] = v
	}
	return out, nil
}

// All runs a joined query across tables, decodes and normalises the result
// tail is spliced in raw immediately after
// `FROM "tables[0].Name"` — the caller builds any JOIN/WHERE/ORDER clauses
// as a Template; the engine never generates joins itself.
func (d *Database) All(ctx context.Context, tables []*Table, tail Template) ([]*Entity, error) {
	if len(tables) == 0 {
		return nil, NewConfigurationError("", "query", "All requires at least one table")
	}
	tpl := NewDraft().
		AppendLiteral("SELECT ").SpliceFragment(buildColumnList(tables)).
		AppendLiteral(" FROM ").Ident(tables[0].Name).AppendLiteral(" ").SpliceFragment(tail).
		Seal()

	var cacheKeyStr string
	var decoded []Row
	if d.cache != nil {
		sql, params, err := Render(tpl, d.drv.Dialect())
		if err != nil {
			return nil, err
		}
		cacheKeyStr = CacheKey{Dialect: d.drv.Dialect(), SQL: sql, Params: params}.String()
		if cached, err := d.cache.Get(ctx, cacheKeyStr); err == nil && cached != nil {
			var rows []Row
			if jsonErr := json.Unmarshal(cached, &rows); jsonErr == nil {
				decoded = rows
			}
		}
	}

	if decoded == nil {
		rawRows, err := d.drv.All(ctx, tpl)
		if err != nil {
			return nil, err
		}
		decoded = make([]Row, len(rawRows))
		for i, r := range rawRows {
			dr, err := decodeCanonicalRow(tables, r, d.drv)
			if err != nil {
				return nil, err
			}
			decoded[i] = dr
		}
		if d.cache != nil {
			if blob, err := json.Marshal(decoded); err == nil {
				d.cache.Set(ctx, cacheKeyStr, blob, d.cacheTTL)
			}
		}
	}

	entities, err := Normalize(tables, decoded)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// Get returns the single entity of table with the given primary key, or nil
// if none exists.
func (d *Database) Get(ctx context.Context, t *Table, id any) (*Entity, error) {
	if t.Primary == "" {
		return nil, NewConfigurationError(t.Name, "query", "table has no primary key defined")
	}
	tail := NewDraft().AppendLiteral("WHERE ").Ident(t.Primary).AppendLiteral(" = ").Lit(id).Seal()
	entities, err := d.All(ctx, []*Table{t}, tail)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// GetWhere returns the first entity of tables[0] matching tail (a
// WHERE/JOIN tail fragment, as in All), or nil if none matched.
func (d *Database) GetWhere(ctx context.Context, tables []*Table, tail Template) (*Entity, error) {
	entities, err := d.All(ctx, tables, tail)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// Query is the raw escape hatch: it skips column-list generation and
// normalisation entirely and returns driver rows as-is.
func (d *Database) Query(ctx context.Context, tpl Template) ([]Row, error) {
	return d.drv.All(ctx, tpl)
}

// Exec runs tpl and returns the number of affected rows, skipping
// normalisation.
func (d *Database) Exec(ctx context.Context, tpl Template) (int64, error) {
	return d.drv.Run(ctx, tpl)
}

// Value runs tpl and returns the first column of the first row, or nil if
// there were no rows.
func (d *Database) Value(ctx context.Context, tpl Template) (any, error) {
	return d.drv.Val(ctx, tpl)
}

package axiom

import (
	"context"
	"fmt"
)

// mutationOp identifies which half of the marker table a
// pipeline invocation resolves against.
type mutationOp int

const (
	opInsert mutationOp = iota
	opUpdate
	opSoftDelete
)

func (op mutationOp) String() string {
	switch op {
	case opInsert:
		return "insert"
	case opSoftDelete:
		return "soft_delete"
	default:
		return "update"
	}
}

func markerPair(op mutationOp) (primary, fallback Marker) {
	if op == opInsert {
		return MarkerInserted, MarkerUpserted
	}
	return MarkerUpdated, MarkerUpserted
}

// splitValues partitions data into the three kinds mutation step 3
// distinguishes: plain app values, DBExpressions, and Builtin symbols.
func splitValues(data map[string]any) (regular map[string]any, expressions map[string]DBExpr, symbols map[string]Builtin) {
	regular = make(map[string]any, len(data))
	expressions = make(map[string]DBExpr)
	symbols = make(map[string]Builtin)
	for k, v := range data {
		switch val := v.(type) {
		case DBExpr:
			expressions[k] = val
		case Builtin:
			symbols[k] = val
		default:
			regular[k] = v
		}
	}
	return
}

// injectMarkers fills in, for every field absent from data and not auto-
// increment, the marker value resolved for op. Caller-
// provided values always win because this only looks at fields absent from
// data.
func injectMarkers(t *Table, data map[string]any, op mutationOp) error {
	primary, fallback := markerPair(op)
	for _, f := range t.Fields {
		if f.AutoIncrement {
			continue
		}
		if _, present := data[f.Name]; present {
			continue
		}
		mv, ok := f.Markers[primary]
		if !ok {
			mv, ok = f.Markers[fallback]
		}
		if !ok || !mv.isSet() {
			continue
		}
		switch {
		case mv.Func != nil:
			v, err := mv.Func()
			if err != nil {
				return fmt.Errorf("axiom: marker function for %s.%s: %w", t.Name, f.Name, err)
			}
			data[f.Name] = v
		case mv.Expr != nil:
			data[f.Name] = *mv.Expr
		case mv.hasSymbol():
			data[f.Name] = Builtin{Symbol: mv.Symbol}
		}
	}
	return nil
}

// validateRegular runs field validators against the regular submap,
// relaxing fields already filled by an expression/symbol/marker to
// optional, and reports the first violation encountered.
func validateRegular(t *Table, regular map[string]any, expressions map[string]DBExpr, symbols map[string]Builtin, op mutationOp) error {
	for _, f := range t.Fields {
		_, hasExpr := expressions[f.Name]
		_, hasSymbol := symbols[f.Name]
		if hasExpr || hasSymbol {
			continue
		}
		v, present := regular[f.Name]
		if !present {
			if op == opInsert && !f.Nullable && !f.AutoIncrement {
				return NewValidationError(t.Name, f.Name, "required field missing")
			}
			continue
		}
		if f.Validate != nil {
			if err := f.Validate(v); err != nil {
				return NewValidationError(t.Name, f.Name, err.Error())
			}
		}
	}
	return nil
}

// checkCustomCodecConflict enforces the rule that a field with any custom
// encode/decode hook must not receive a DBExpression or Builtin value.
func checkCustomCodecConflict(t *Table, expressions map[string]DBExpr, symbols map[string]Builtin) error {
	for name := range expressions {
		if f, ok := t.FieldByName(name); ok && f.HasCustomCodec() {
			return NewConfigurationError(t.Name, "encode", fmt.Sprintf("field %q has a custom encode/decode hook and cannot accept a DBExpression", name))
		}
	}
	for name := range symbols {
		if f, ok := t.FieldByName(name); ok && f.HasCustomCodec() {
			return NewConfigurationError(t.Name, "encode", fmt.Sprintf("field %q has a custom encode/decode hook and cannot accept a Builtin", name))
		}
	}
	return nil
}

// encodeRegular applies Encode to every value in regular and returns the
// encoded values in a new map; regular itself is left unchanged.
func encodeRegular(t *Table, regular map[string]any, drv Driver) (map[string]any, error) {
	out := make(map[string]any, len(regular))
	for k, v := range regular {
		f, ok := t.FieldByName(k)
		if !ok {
			out[k] = v
			continue
		}
		encoded, err := Encode(f, v, drv)
		if err != nil {
			return nil, err
		}
		out[k] = encoded
	}
	return out, nil
}

// orderedColumns returns, in the table's declared field order, the columns
// present in regular, then the columns present in symbols, then the columns
// present in expressions, per the column ordering rule. values[i]
// corresponds to columns[i].
func orderedColumns(t *Table, regular map[string]any, symbols map[string]Builtin, expressions map[string]DBExpr) (columns []string, values []Value) {
	for _, f := range t.Fields {
		if v, ok := regular[f.Name]; ok {
			columns = append(columns, f.Name)
			values = append(values, L(v))
		}
	}
	for _, f := range t.Fields {
		if b, ok := symbols[f.Name]; ok {
			columns = append(columns, f.Name)
			values = append(values, b)
		}
	}
	for _, f := range t.Fields {
		if e, ok := expressions[f.Name]; ok {
			columns = append(columns, f.Name)
			values = append(values, e)
		}
	}
	return
}

// preparedMutation is the shared product of steps 1-5 (reject-read-only
// through encoding), common to every mutation call shape.
type preparedMutation struct {
	columns     []string
	values      []Value
	regular     map[string]any
	symbols     map[string]Builtin
	expressions map[string]DBExpr
}

func prepareMutation(t *Table, data map[string]any, op mutationOp, drv Driver) (*preparedMutation, error) {
	if !t.Kind.Mutable() {
		return nil, NewConfigurationError(t.Name, op.String(), fmt.Sprintf("table is a %s view; mutations are forbidden on %q", t.Kind, firstNonEmpty(t.OriginalName, t.Name)))
	}

	merged := make(map[string]any, len(data))
	for k, v := range data {
		merged[k] = v
	}
	if err := injectMarkers(t, merged, op); err != nil {
		return nil, err
	}

	regular, expressions, symbols := splitValues(merged)

	if err := checkCustomCodecConflict(t, expressions, symbols); err != nil {
		return nil, err
	}
	if err := validateRegular(t, regular, expressions, symbols, op); err != nil {
		return nil, err
	}
	encoded, err := encodeRegular(t, regular, drv)
	if err != nil {
		return nil, err
	}
	regular = encoded

	cols, vals := orderedColumns(t, regular, symbols, expressions)
	if (op == opUpdate || op == opSoftDelete) && len(cols) == 0 {
		return nil, NewConfigurationError(t.Name, op.String(), "no fields to update")
	}
	return &preparedMutation{columns: cols, values: vals, regular: regular, symbols: symbols, expressions: expressions}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// decodeRows applies Decode to every column of every row for table t.
func decodeRows(t *Table, rows []Row, drv Driver) ([]Row, error) {
	out := make([]Row, len(rows))
	for i, row := range rows {
		if row == nil {
			continue
		}
		decoded := make(Row, len(row))
		for k, v := range row {
			f, ok := t.FieldByName(k)
			if !ok {
				decoded[k] = v
				continue
			}
			dv, err := Decode(f, v, drv)
			if err != nil {
				return nil, err
			}
			decoded[k] = dv
		}
		out[i] = decoded
	}
	return out, nil
}

// InsertResult is Insert's return value. BestEffort is true when the driver
// lacks RETURNING and the caller supplied no primary key, so Row is the
// validated-encoded input rather than a value read back from the database
// (open question: "best effort; may not reflect DB-applied
// defaults").
type InsertResult struct {
	Row        Row
	BestEffort bool
}

// Insert runs the INSERT pipeline for one record.
func (d *Database) Insert(ctx context.Context, t *Table, data map[string]any) (*InsertResult, error) {
	results, err := d.InsertMany(ctx, t, []map[string]any{data})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// InsertMany runs the INSERT pipeline once per record, preserving
// input order in the result.
func (d *Database) InsertMany(ctx context.Context, t *Table, dataList []map[string]any) ([]*InsertResult, error) {
	out := make([]*InsertResult, len(dataList))
	for i, data := range dataList {
		prepared, err := prepareMutation(t, data, opInsert, d.drv)
		if err != nil {
			return nil, err
		}
		if len(prepared.columns) == 0 {
			return nil, NewConfigurationError(t.Name, "insert", "no fields to insert")
		}

		draft := NewDraft().AppendLiteral("INSERT INTO ").Ident(t.Name).AppendLiteral(" (")
		for j, c := range prepared.columns {
			if j > 0 {
				draft.AppendLiteral(",")
			}
			draft.Ident(c)
		}
		draft.AppendLiteral(") VALUES (")
		for j, v := range prepared.values {
			if j > 0 {
				draft.AppendLiteral(",")
			}
			draft.PushValue(v)
		}
		draft.AppendLiteral(")")

		supportsReturning := d.drv.SupportsReturning()
		if supportsReturning {
			draft.AppendLiteral(" RETURNING *")
		}
		tpl := draft.Seal()

		if supportsReturning {
			row, err := d.drv.Get(ctx, tpl)
			if err != nil {
				return nil, classifyConstraintErr(t, err)
			}
			decoded, err := decodeRows(t, []Row{row}, d.drv)
			if err != nil {
				return nil, err
			}
			out[i] = &InsertResult{Row: decoded[0]}
			continue
		}

		if _, err := d.drv.Run(ctx, tpl); err != nil {
			return nil, classifyConstraintErr(t, err)
		}

		pk, hasPK := prepared.regular[t.Primary]
		if t.Primary != "" && hasPK {
			row, err := d.getByID(ctx, t, pk)
			if err != nil {
				return nil, err
			}
			out[i] = &InsertResult{Row: row}
			continue
		}

		// No RETURNING and no caller-supplied
		// primary key — return the validated-encoded input as a best
		// effort, tagging it so callers can detect this path.
		bestEffort := make(Row, len(prepared.regular)+len(prepared.symbols)+len(prepared.expressions))
		for k, v := range prepared.regular {
			bestEffort[k] = v
		}
		out[i] = &InsertResult{Row: bestEffort, BestEffort: true}
	}
	return out, nil
}

// UpdateByID runs the UPDATE pipeline, returning the updated row or
// nil if no row matched the primary key.
func (d *Database) UpdateByID(ctx context.Context, t *Table, data map[string]any, id any) (Row, error) {
	if t.Primary == "" {
		return nil, NewConfigurationError(t.Name, "update", "table has no primary key defined")
	}
	rows, err := d.updateByIDs(ctx, t, data, []any{id}, opUpdate)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// UpdateByIDs runs the UPDATE pipeline, returning rows aligned to
// ids (nil entry where a given id had no row).
func (d *Database) UpdateByIDs(ctx context.Context, t *Table, data map[string]any, ids []any) ([]Row, error) {
	if t.Primary == "" {
		return nil, NewConfigurationError(t.Name, "update", "table has no primary key defined")
	}
	return d.updateByIDs(ctx, t, data, ids, opUpdate)
}

func (d *Database) updateByIDs(ctx context.Context, t *Table, data map[string]any, ids []any, op mutationOp) ([]Row, error) {
	prepared, err := prepareMutation(t, data, op, d.drv)
	if err != nil {
		return nil, err
	}

	set := NewDraft()
	for i, c := range prepared.columns {
		if i > 0 {
			set.AppendLiteral(",")
		}
		set.Ident(c).AppendLiteral(" = ").PushValue(prepared.values[i])
	}

	idValues := make([]Value, len(ids))
	for i, id := range ids {
		idValues[i] = L(id)
	}
	inList := NewDraft()
	for i, v := range idValues {
		if i > 0 {
			inList.AppendLiteral(",")
		}
		inList.PushValue(v)
	}

	draft := NewDraft().
		AppendLiteral("UPDATE ").Ident(t.Name).AppendLiteral(" SET ").SpliceFragment(set.Seal()).
		AppendLiteral(" WHERE ").Ident(t.Primary).AppendLiteral(" IN (").SpliceFragment(inList.Seal()).AppendLiteral(")")

	if d.drv.SupportsReturning() {
		draft.AppendLiteral(" RETURNING *")
		tpl := draft.Seal()
		rows, err := d.drv.All(ctx, tpl)
		if err != nil {
			return nil, classifyConstraintErr(t, err)
		}
		return alignRowsByID(t, rows, ids, d.drv)
	}

	tpl := draft.Seal()
	if _, err := d.drv.Run(ctx, tpl); err != nil {
		return nil, classifyConstraintErr(t, err)
	}
	rows, err := d.getByIDs(ctx, t, ids)
	if err != nil {
		return nil, err
	}
	return decodeRows(t, rows, d.drv)
}

// alignRowsByID reorders rows (keyed by raw, undecoded primary-key values)
// to align with ids, decoding along the way.
func alignRowsByID(t *Table, rows []Row, ids []any, drv Driver) ([]Row, error) {
	byID := make(map[any]Row, len(rows))
	for _, r := range rows {
		byID[r[t.Primary]] = r
	}
	out := make([]Row, len(ids))
	for i, id := range ids {
		if r, ok := byID[id]; ok {
			out[i] = r
		}
	}
	return decodeRows(t, out, drv)
}

// UpdateWhere runs the UPDATE pipeline against a caller-supplied
// WHERE fragment.
func (d *Database) UpdateWhere(ctx context.Context, t *Table, data map[string]any, where Template) ([]Row, error) {
	prepared, err := prepareMutation(t, data, opUpdate, d.drv)
	if err != nil {
		return nil, err
	}

	set := NewDraft()
	for i, c := range prepared.columns {
		if i > 0 {
			set.AppendLiteral(",")
		}
		set.Ident(c).AppendLiteral(" = ").PushValue(prepared.values[i])
	}

	if d.drv.SupportsReturning() {
		tpl := NewDraft().
			AppendLiteral("UPDATE ").Ident(t.Name).AppendLiteral(" SET ").SpliceFragment(set.Seal()).
			AppendLiteral(" WHERE ").SpliceFragment(where).
			AppendLiteral(" RETURNING *").Seal()
		rows, err := d.drv.All(ctx, tpl)
		if err != nil {
			return nil, classifyConstraintErr(t, err)
		}
		return decodeRows(t, rows, d.drv)
	}

	if t.Primary == "" {
		return nil, NewConfigurationError(t.Name, "update", "table has no primary key defined; cannot select-then-update without RETURNING")
	}
	selectPKs := NewDraft().
		AppendLiteral("SELECT ").Ident(t.Primary).AppendLiteral(" FROM ").Ident(t.Name).
		AppendLiteral(" WHERE ").SpliceFragment(where).Seal()
	pkRows, err := d.drv.All(ctx, selectPKs)
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(pkRows))
	for i, r := range pkRows {
		ids[i] = r[t.Primary]
	}

	updateTpl := NewDraft().
		AppendLiteral("UPDATE ").Ident(t.Name).AppendLiteral(" SET ").SpliceFragment(set.Seal()).
		AppendLiteral(" WHERE ").SpliceFragment(where).Seal()
	if _, err := d.drv.Run(ctx, updateTpl); err != nil {
		return nil, classifyConstraintErr(t, err)
	}
	rows, err := d.getByIDs(ctx, t, ids)
	if err != nil {
		return nil, err
	}
	return decodeRows(t, rows, d.drv)
}

// SoftDeleteByID sets t's soft-delete field to the current-timestamp
// Builtin for the row with the given primary key, runs any registered
// cascade, and returns the updated row.
func (d *Database) SoftDeleteByID(ctx context.Context, t *Table, extra map[string]any, id any) (Row, error) {
	rows, err := d.SoftDeleteByIDs(ctx, t, extra, []any{id})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// SoftDeleteByIDs is SoftDeleteByID for a set of primary keys.
func (d *Database) SoftDeleteByIDs(ctx context.Context, t *Table, extra map[string]any, ids []any) ([]Row, error) {
	if !t.HasSoftDelete() {
		return nil, NewConfigurationError(t.Name, "soft_delete", "table has no soft-delete field declared")
	}
	data := softDeleteData(extra, t.SoftDeleteField)
	rows, err := d.updateByIDs(ctx, t, data, ids, opSoftDelete)
	if err != nil {
		return nil, err
	}
	if err := d.cascadeSoftDelete(ctx, t, ids); err != nil {
		return nil, err
	}
	return rows, nil
}

// SoftDeleteWhere is SoftDeleteByID for every row matching where.
func (d *Database) SoftDeleteWhere(ctx context.Context, t *Table, extra map[string]any, where Template) ([]Row, error) {
	if !t.HasSoftDelete() {
		return nil, NewConfigurationError(t.Name, "soft_delete", "table has no soft-delete field declared")
	}
	if t.Primary == "" {
		return nil, NewConfigurationError(t.Name, "soft_delete", "table has no primary key defined")
	}
	selectPKs := NewDraft().
		AppendLiteral("SELECT ").Ident(t.Primary).AppendLiteral(" FROM ").Ident(t.Name).
		AppendLiteral(" WHERE ").SpliceFragment(where).Seal()
	pkRows, err := d.drv.All(ctx, selectPKs)
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(pkRows))
	for i, r := range pkRows {
		ids[i] = r[t.Primary]
	}

	data := softDeleteData(extra, t.SoftDeleteField)
	rows, err := d.UpdateWhere(ctx, t, data, where)
	if err != nil {
		return nil, err
	}
	if err := d.cascadeSoftDelete(ctx, t, ids); err != nil {
		return nil, err
	}
	return rows, nil
}

// softDeleteData builds the data map passed through the update pipeline: the
// soft-delete field always gets the current-timestamp Builtin, taking
// priority over anything the caller put there, and extra carries any
// additional fields to update in the same statement.
func softDeleteData(extra map[string]any, softDeleteField string) map[string]any {
	data := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		data[k] = v
	}
	data[softDeleteField] = B(BuiltinNow)
	return data
}

// DeleteByID deletes the row with the given primary key, returning the
// affected row count (0 or 1).
func (d *Database) DeleteByID(ctx context.Context, t *Table, id any) (int64, error) {
	return d.DeleteByIDs(ctx, t, []any{id})
}

// DeleteByIDs deletes the rows with the given primary keys, returning the
// affected row count.
func (d *Database) DeleteByIDs(ctx context.Context, t *Table, ids []any) (int64, error) {
	if !t.Kind.Mutable() {
		return 0, NewConfigurationError(t.Name, "delete", fmt.Sprintf("table is a %s view; mutations are forbidden", t.Kind))
	}
	if t.Primary == "" {
		return 0, NewConfigurationError(t.Name, "delete", "table has no primary key defined")
	}
	inList := NewDraft()
	for i, id := range ids {
		if i > 0 {
			inList.AppendLiteral(",")
		}
		inList.Lit(id)
	}
	tpl := NewDraft().
		AppendLiteral("DELETE FROM ").Ident(t.Name).
		AppendLiteral(" WHERE ").Ident(t.Primary).AppendLiteral(" IN (").SpliceFragment(inList.Seal()).AppendLiteral(")").
		Seal()
	n, err := d.drv.Run(ctx, tpl)
	if err != nil {
		return 0, classifyConstraintErr(t, err)
	}
	return n, nil
}

// DeleteWhere deletes rows matching where, returning the affected row count.
func (d *Database) DeleteWhere(ctx context.Context, t *Table, where Template) (int64, error) {
	if !t.Kind.Mutable() {
		return 0, NewConfigurationError(t.Name, "delete", fmt.Sprintf("table is a %s view; mutations are forbidden", t.Kind))
	}
	tpl := NewDraft().
		AppendLiteral("DELETE FROM ").Ident(t.Name).AppendLiteral(" WHERE ").SpliceFragment(where).
		Seal()
	n, err := d.drv.Run(ctx, tpl)
	if err != nil {
		return 0, classifyConstraintErr(t, err)
	}
	return n, nil
}

func (d *Database) getByID(ctx context.Context, t *Table, id any) (Row, error) {
	tpl := NewDraft().
		AppendLiteral("SELECT * FROM ").Ident(t.Name).AppendLiteral(" WHERE ").Ident(t.Primary).AppendLiteral(" = ").Lit(id).
		Seal()
	return d.drv.Get(ctx, tpl)
}

func (d *Database) getByIDs(ctx context.Context, t *Table, ids []any) ([]Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	inList := NewDraft()
	for i, id := range ids {
		if i > 0 {
			inList.AppendLiteral(",")
		}
		inList.Lit(id)
	}
	tpl := NewDraft().
		AppendLiteral("SELECT * FROM ").Ident(t.Name).AppendLiteral(" WHERE ").Ident(t.Primary).AppendLiteral(" IN (").SpliceFragment(inList.Seal()).AppendLiteral(")").
		Seal()
	rows, err := d.drv.All(ctx, tpl)
	if err != nil {
		return nil, err
	}
	byID := make(map[any]Row, len(rows))
	for _, r := range rows {
		byID[r[t.Primary]] = r
	}
	out := make([]Row, len(ids))
	for i, id := range ids {
		if r, ok := byID[id]; ok {
			out[i] = r
		}
	}
	return out, nil
}

// classifyConstraintErr wraps a driver error returned from a mutation as a
// *ConstraintViolationError when it can be identified as one.
func classifyConstraintErr(t *Table, err error) error {
	if err == nil {
		return nil
	}
	kind, ok := classifyConstraintKind(err)
	if !ok {
		return err
	}
	return &ConstraintViolationError{Kind: kind, Table: t.Name, Err: err}
}

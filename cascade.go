package axiom

import "context"

// cascadeSoftDelete: after soft-deleting deletedIDs in
// table t, walk every registered table R with a cascade reference back to
// t, soft-delete the not-yet-soft-deleted rows in R whose foreign key
// points at one of deletedIDs, and recurse into R's own cascades.
//
// Termination: each recursive call only selects rows whose soft-delete
// field is still null, so a table can be swept at most once per row; the
// registered-table set is finite, so the whole traversal halts.
func (d *Database) cascadeSoftDelete(ctx context.Context, t *Table, deletedIDs []any) error {
	if len(deletedIDs) == 0 {
		return nil
	}
	for _, r := range d.Tables() {
		if !r.HasSoftDelete() {
			continue
		}
		for _, ref := range r.References {
			if ref.OnDelete != OnDeleteCascade || ref.Target != t {
				continue
			}
			if len(ref.SourceFields) != 1 {
				continue
			}
			fkColumn := ref.SourceFields[0]

			idList := NewDraft()
			for i, id := range deletedIDs {
				if i > 0 {
					idList.AppendLiteral(",")
				}
				idList.Lit(id)
			}
			where := NewDraft().
				Ident(fkColumn).AppendLiteral(" IN (").SpliceFragment(idList.Seal()).AppendLiteral(")").
				AppendLiteral(" AND ").Ident(r.SoftDeleteField).AppendLiteral(" IS NULL").
				Seal()

			if r.Primary == "" {
				continue
			}
			selectPKs := NewDraft().
				AppendLiteral("SELECT ").Ident(r.Primary).AppendLiteral(" FROM ").Ident(r.Name).
				AppendLiteral(" WHERE ").SpliceFragment(where).Seal()
			pkRows, err := d.drv.All(ctx, selectPKs)
			if err != nil {
				return err
			}
			if len(pkRows) == 0 {
				continue
			}
			childIDs := make([]any, len(pkRows))
			for i, row := range pkRows {
				childIDs[i] = row[r.Primary]
			}
			if _, err := d.SoftDeleteByIDs(ctx, r, nil, childIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

package axiom

import "strings"

// identityKey is the normaliser's entity-identity map key.
type identityKey struct {
	table string
	pk    any
}

// Normalize runs the normalisation algorithm over raw canonical-keyed rows ("table.field"
// column names) and returns the primary table's (tables[0]) entities, in the
// order each first appeared in rows. Every reference between tables named in
// tables is resolved; a column key naming a table outside tables fails with
// *NormalisationError.
func Normalize(tables []*Table, rows []Row) ([]*Entity, error) {
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	identities := make(map[identityKey]*Entity)
	var ordered []*Entity
	seenPrimary := make(map[any]bool)
	primary := tables[0]

	for _, row := range rows {
		perTable, unexpected := splitCanonicalRow(row, byName)
		if len(unexpected) > 0 {
			return nil, NewNormalisationError(unexpected)
		}
		for _, t := range tables {
			sub, ok := perTable[t.Name]
			if !ok || allNil(sub) {
				continue
			}
			pk := sub[t.Primary]
			key := identityKey{table: t.Name, pk: pk}
			entity, exists := identities[key]
			if !exists {
				entity = newEntity(t.Name, pk)
				entity.derived = make(map[string]DerivedColumn, len(t.DerivedColumns))
				for _, dc := range t.DerivedColumns {
					entity.derived[dc.Name] = dc
				}
				for k, v := range sub {
					entity.Fields[k] = v
				}
				identities[key] = entity
			}
			if t == primary && !seenPrimary[pk] {
				seenPrimary[pk] = true
				ordered = append(ordered, entity)
			}
		}
	}

	resolveReferences(tables, identities)
	return ordered, nil
}

// splitCanonicalRow demultiplexes one raw row's "table.field" keys into a
// per-table subrecord, reporting any table name not present in byName.
func splitCanonicalRow(row Row, byName map[string]*Table) (map[string]Row, []string) {
	perTable := make(map[string]Row)
	unexpectedSet := make(map[string]bool)
	for key, v := range row {
		table, field, ok := splitCanonicalKey(key)
		if !ok {
			continue
		}
		if _, known := byName[table]; !known {
			unexpectedSet[table] = true
			continue
		}
		sub, ok := perTable[table]
		if !ok {
			sub = make(Row)
			perTable[table] = sub
		}
		sub[field] = v
	}
	if len(unexpectedSet) == 0 {
		return perTable, nil
	}
	unexpected := make([]string, 0, len(unexpectedSet))
	for t := range unexpectedSet {
		unexpected = append(unexpected, t)
	}
	return perTable, unexpected
}

func splitCanonicalKey(key string) (table, field string, ok bool) {
	idx := strings.Index(key, ".")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

func allNil(sub Row) bool {
	for _, v := range sub {
		if v != nil {
			return false
		}
	}
	return true
}

// resolveReferences resolves forward and reverse references over every entity already
// ingested into identities.
func resolveReferences(tables []*Table, identities map[identityKey]*Entity) {
	for _, t := range tables {
		for key, entity := range identities {
			if key.table != t.Name {
				continue
			}
			for _, ref := range t.References {
				if len(ref.SourceFields) != 1 {
					continue
				}
				fk := entity.Fields[ref.SourceFields[0]]
				if fk == nil {
					if ref.ForwardRole != "" {
						entity.Forward[ref.ForwardRole] = nil
					}
					continue
				}
				if ref.Target == nil {
					continue
				}
				target, ok := identities[identityKey{table: ref.Target.Name, pk: fk}]
				if ref.ForwardRole != "" {
					if ok {
						entity.Forward[ref.ForwardRole] = target
					} else {
						entity.Forward[ref.ForwardRole] = fk
					}
				}
				if ref.ReverseRole != "" && ok {
					target.reverse[ref.ReverseRole] = append(target.reverse[ref.ReverseRole], entity)
				}
			}
		}
	}
}

package axiom

import (
	"encoding/json"
	"fmt"
)

// Entity is one normalised row out of the Normaliser: the decoded
// fields of a single (table, primary key) identity, plus its resolved
// forward references. Two Entity pointers for the same (table, pk) are
// always the same pointer within one Normalize call, giving reference
// equality across duplicate joined rows.
//
// Reverse references and derived-column accessors are deliberately kept in
// unexported fields reached only through methods: Go's encoding/json only
// walks exported fields, so MarshalJSON (which flattens Fields and Forward)
// is the only view a caller's serializer sees, mirroring the "non-writable,
// non-enumerable" contract those two kinds of attachment carry.
type Entity struct {
	Table string
	PK    any
	// Fields holds every decoded column value keyed by field/derived-column
	// name, not canonical "table.field" key.
	Fields Row
	// Forward holds, per ForwardRole, either the resolved *Entity or the
	// raw foreign-key value if the target was not found in the row-set.
	Forward map[string]any

	reverse  map[string][]*Entity
	derived  map[string]DerivedColumn
	computed map[string]any
}

func newEntity(table string, pk any) *Entity {
	return &Entity{
		Table:   table,
		PK:      pk,
		Fields:  make(Row),
		Forward: make(map[string]any),
		reverse: make(map[string][]*Entity),
	}
}

// Reverse returns the entities that reference this one via role, or nil if
// none do. Reverse references are never present in MarshalJSON's output.
func (e *Entity) Reverse(role string) []*Entity { return e.reverse[role] }

// Derived computes (and caches) the named derived column's value from the
// entity's own fields. If the column already has a SQL-rendered value in
// Fields (because its Table declared a Template), that value is returned
// directly; otherwise Compute runs against Fields.
func (e *Entity) Derived(name string) (any, error) {
	if v, ok := e.Fields[name]; ok {
		return v, nil
	}
	if v, ok := e.computed[name]; ok {
		return v, nil
	}
	dc, ok := e.derived[name]
	if !ok || dc.Compute == nil {
		return nil, fmt.Errorf("axiom: entity %s has no derived column %q", e.Table, name)
	}
	v, err := dc.Compute(e.Fields)
	if err != nil {
		return nil, err
	}
	if e.computed == nil {
		e.computed = make(map[string]any)
	}
	e.computed[name] = v
	return v, nil
}

// MarshalJSON flattens Fields and resolved Forward references into one
// object, mirroring how a joined row's own-properties would serialise:
// reverse references and unresolved derived accessors are never included.
func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+len(e.Forward))
	for k, v := range e.Fields {
		out[k] = v
	}
	for k, v := range e.Forward {
		out[k] = v
	}
	return json.Marshal(out)
}

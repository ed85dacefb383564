package axiom

// TableKind distinguishes the four flavours of table capability view a
// caller can hold.
type TableKind int

const (
	// KindFull allows mutations.
	KindFull TableKind = iota
	// KindPartial is a projection of a full table; mutations are forbidden.
	KindPartial
	// KindDerived includes synthesised expression columns; mutations are
	// forbidden.
	KindDerived
	// KindView is created from a full table with an additional WHERE
	// clause; mutations are forbidden and it must be ensured separately.
	KindView
)

func (k TableKind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindPartial:
		return "partial"
	case KindDerived:
		return "derived"
	case KindView:
		return "view"
	default:
		return "unknown"
	}
}

// Mutable reports whether the mutation engine may operate on a table of
// this kind.
func (k TableKind) Mutable() bool { return k == KindFull }

// Marker enumerates the schema-marker operations a field may declare
//
type Marker int

const (
	MarkerInserted Marker = iota
	MarkerUpdated
	MarkerUpserted
)

// MarkerValue is what a schema marker resolves to: a raw DBExpression, a
// named Builtin, or a call to a caller-provided function. Exactly one of
// Expr, Symbol, or Func should be set.
type MarkerValue struct {
	Expr   *DBExpr
	Symbol BuiltinSymbol
	Func   func() (any, error)
}

func (m MarkerValue) isSet() bool {
	return m.Expr != nil || m.Symbol != "" || m.Func != nil
}

// hasSymbol reports whether Symbol was explicitly set (as opposed to the
// zero value meaning "unset").
func (m MarkerValue) hasSymbol() bool { return m.Symbol != "" && m.Expr == nil && m.Func == nil }

// EncodeHook customises app-value -> DB-value conversion for one field,
// taking priority over any dialect or default encoding.
type EncodeHook func(v any) (any, error)

// DecodeHook customises DB-value -> app-value conversion for one field,
// mirroring EncodeHook.
type DecodeHook func(v any) (any, error)

// Field is the read-only metadata view the core consumes for one column of
// a Table.
type Field struct {
	Name          string
	Type          DeclaredType
	Nullable      bool
	AutoIncrement bool
	Unique        bool
	Encode        EncodeHook
	Decode        DecodeHook
	// Markers maps a schema-marker operation to how the field auto-
	// populates when the caller's data omits it.
	Markers map[Marker]MarkerValue
	// Validate runs against the field's plain (non-marker) value during
	// A nil Validate always passes.
	Validate func(v any) error
}

// HasCustomCodec reports whether this field declares any encode or decode
// hook, which forbids it from accepting a DBExpression or Builtin value at
// mutation time.
func (f Field) HasCustomCodec() bool { return f.Encode != nil || f.Decode != nil }

// OnDeleteAction enumerates foreign-key on-delete policies a Reference may
// declare.
type OnDeleteAction int

const (
	OnDeleteNoAction OnDeleteAction = iota
	OnDeleteCascade
	OnDeleteSetNull
	OnDeleteRestrict
)

// Reference is one outgoing foreign key declared by a table.
type Reference struct {
	// SourceFields are the local columns carrying the foreign key.
	SourceFields []string
	// Target is the referenced table's capability.
	Target *Table
	// TargetField is the referenced column name (usually Target.Primary).
	TargetField string
	// ForwardRole is how the referenced entity appears on the referring
	// entity (must not collide with any field name of the referring
	// table — a schema-definition error, see ValidateSchema).
	ForwardRole string
	// ReverseRole is how the referring entity collection appears on the
	// referenced entity, or "" if there is no reverse role.
	ReverseRole string
	OnDelete    OnDeleteAction
}

// DerivedColumn is a lazily computed, non-enumerable accessor attached to
// entities of a table.
type DerivedColumn struct {
	Name     string
	Type     DeclaredType
	Template Template
	Compute  func(row Row) (any, error)
}

// Table is the read-only polymorphic view the core consumes for a table
// Application code builds a *Table once (typically from its own
// schema declaration layer, out of scope here) and passes it to the
// Database's mutation, query and ensure methods.
type Table struct {
	Name            string
	Kind            TableKind
	Fields          []Field
	Primary         string // "" if no primary key
	Indexed         []string
	Unique          [][]string // single or composite unique constraints
	References      []Reference
	SoftDeleteField string // "" if none
	DerivedColumns  []DerivedColumn

	// OriginalName is set on Partial/Derived/View tables to name the full
	// table they are a projection or view of, for error messages.
	OriginalName string
	// ViewWhere is the additional WHERE fragment for a KindView table.
	ViewWhere *Template
}

// FieldByName returns the field named name, or (Field{}, false).
func (t *Table) FieldByName(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasSoftDelete reports whether the table declares a soft-delete field.
func (t *Table) HasSoftDelete() bool { return t.SoftDeleteField != "" }

// ValidateSchema checks the role-name-collision invariant:
// a reference's forward or reverse role name must not collide with any
// field name of its host table.
func ValidateSchema(tables []*Table) error {
	for _, t := range tables {
		fieldNames := make(map[string]bool, len(t.Fields))
		for _, f := range t.Fields {
			fieldNames[f.Name] = true
		}
		for _, ref := range t.References {
			if ref.ForwardRole != "" && fieldNames[ref.ForwardRole] {
				return NewConfigurationError(t.Name, "schema", "forward role \""+ref.ForwardRole+"\" collides with a field name")
			}
			if ref.Target != nil && ref.ReverseRole != "" {
				targetFields := make(map[string]bool, len(ref.Target.Fields))
				for _, f := range ref.Target.Fields {
					targetFields[f.Name] = true
				}
				if targetFields[ref.ReverseRole] {
					return NewConfigurationError(ref.Target.Name, "schema", "reverse role \""+ref.ReverseRole+"\" collides with a field name")
				}
			}
		}
	}
	return nil
}

// Package axiom is a schema-driven SQL data access core: a template
// algebra for building dialect-safe SQL, a mutation engine, a query engine
// that normalises flat rows into an entity graph, a migration controller,
// and a schema-evolution engine, all built on one small Driver interface.
//
// # Quick Start
//
// Wrap a database/sql connection (via dialect/sqldriver) in a Database,
// describe tables as *Table values, and call the mutation/query methods
// directly — there is no code generation step:
//
//	drv, err := sqldriver.Open("postgres", dsn)
//	db := axiom.Open(drv)
//	db.RegisterTable(users)
//
//	result, err := db.Insert(ctx, users, map[string]any{"email": "ada@example.com"})
//	entity, err := db.Get(ctx, users, result.Row["id"])
//
// # Template Algebra
//
// Every piece of SQL this package emits is built through Draft/Template
// rather than string concatenation, so identifiers and builtins render
// per-dialect and values always come out as placeholders:
//
//	tpl := axiom.NewDraft().
//		AppendLiteral("SELECT * FROM ").Ident("users").
//		AppendLiteral(" WHERE ").Ident("id").AppendLiteral(" = ").Lit(id).
//		Seal()
//	sql, params, err := axiom.Render(tpl, "postgres")
//
// # Mutation Engine
//
// Insert, InsertMany, UpdateByID(s), UpdateWhere, SoftDeleteByID(s),
// SoftDeleteWhere, DeleteByID(s), and DeleteWhere cover the write side.
// Schema markers (Field.Markers) auto-populate columns like created_at/
// updated_at; a soft-delete cascades to any registered table whose
// Reference declares OnDeleteCascade back to the row being deleted.
//
// # Query Engine
//
// All/Get/GetWhere walk one or more *Table values, build the column list,
// splice in the caller's JOIN/WHERE tail as given (no joins are generated
// from References), and normalise the flat driver
// rows into an *Entity graph with Reverse/Derived accessors. Query/Exec/
// Value are the raw escape hatch for callers who want driver rows as-is.
//
// # Migration Controller and Ensure Engine
//
// Database.Migrator().Open runs upgrade listeners forward to a desired
// version under a driver-level advisory lock (Driver.MigrationLocker, when
// the concrete driver implements it, else a transaction); EnsureTable/
// EnsureConstraints/EnsureView (Driver.Ensurer) additively evolve a live
// schema to match declared *Table values without a migration file, for
// use at startup.
//
// # Dialects
//
// dialect/sqldriver provides the database/sql-backed Driver for sqlite,
// postgres, and mysql; dialect.PolicyFor resolves identifier quoting and
// placeholder style per dialect for anything rendering SQL directly.
package axiom

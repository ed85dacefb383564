// Package dialect holds the small set of identifiers and rendering policies
// shared by the core and its drivers, kept free of any database/sql
// dependency so the core has no hard dependency on a concrete driver
// package.
package dialect

// Dialect name constants, matching the driver name conventions used by the
// Go SQL ecosystem (database/sql driver names and lib/pq/go-sql-driver
// registration strings).
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// PlaceholderStyle describes how a dialect numbers or spells bound-parameter
// placeholders.
type PlaceholderStyle int

const (
	// PlaceholderQuestion renders "?" for every placeholder (sqlite, mysql).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar renders "$1", "$2", ... (postgres).
	PlaceholderDollar
)

// IdentifierQuote describes the quote characters a dialect wraps
// identifiers in.
type IdentifierQuote struct {
	Open, Close byte
}

// Policy is the per-dialect rendering policy consulted by the renderer
// (axiom.Render) and by the Ensure Engine when emitting DDL.
type Policy struct {
	Name              string
	Placeholder       PlaceholderStyle
	Quote             IdentifierQuote
	SupportsReturning bool
	// BoolAsInt reports whether boolean literals must be encoded as the
	// integers 0/1 rather than passed through natively.
	BoolAsInt bool
}

var policies = map[string]Policy{
	SQLite: {
		Name:              SQLite,
		Placeholder:       PlaceholderQuestion,
		Quote:             IdentifierQuote{'"', '"'},
		SupportsReturning: true,
		BoolAsInt:         true,
	},
	Postgres: {
		Name:              Postgres,
		Placeholder:       PlaceholderDollar,
		Quote:             IdentifierQuote{'"', '"'},
		SupportsReturning: true,
		BoolAsInt:         false,
	},
	MySQL: {
		Name:              MySQL,
		Placeholder:       PlaceholderQuestion,
		Quote:             IdentifierQuote{'`', '`'},
		SupportsReturning: false,
		BoolAsInt:         true,
	},
}

// PolicyFor returns the rendering policy for name, and false if name is not
// one of the three supported dialects.
func PolicyFor(name string) (Policy, bool) {
	p, ok := policies[name]
	return p, ok
}

// QuoteIdent wraps name in the dialect's identifier quote characters, doubling
// any embedded instance of the closing quote character (the ANSI-SQL way
// to escape a quote inside a quoted identifier, honoured by sqlite,
// postgres, and mysql's ANSI_QUOTES mode).
func (p Policy) QuoteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, p.Quote.Open)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == p.Quote.Close {
			out = append(out, c)
		}
		out = append(out, c)
	}
	out = append(out, p.Quote.Close)
	return string(out)
}

// Builtin resolves a named SQL constant to dialect-specific inline SQL
// text. The symbol strings are the BuiltinSymbol values from the root
// package, duplicated here as plain strings to avoid an import cycle.
func (p Policy) Builtin(symbol string) (string, bool) {
	switch symbol {
	case "now":
		return "CURRENT_TIMESTAMP", true
	case "today":
		return "CURRENT_DATE", true
	default:
		return "", false
	}
}

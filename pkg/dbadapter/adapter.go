// Package dbadapter implements the relational database adapter (spec
// §4.2): the sole database boundary the core talks to, exposing the
// fixed table()/rpc() fluent surface declared in pkg/types.
//
// It supports PostgreSQL, MySQL, and SQLite through database/sql, the
// same three-dialect shape as hector's SQL-backed session service
// (pkg/memory/session_service_sql.go): one struct, a dialect string,
// and per-dialect placeholder/quoting helpers. Everything beyond SQL
// execution — row-level security, pooling, transactions — is this
// package's concern per spec §4.2's last line; the rest of the core
// never sees a *sql.DB.
package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// Dialect identifies the SQL variant in use.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// SQLAdapter is the types.Adapter implementation backed by database/sql.
type SQLAdapter struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens a database/sql connection for the given dialect/DSN and
// wraps it as a types.Adapter.
func Open(dialect Dialect, dsn string) (*SQLAdapter, error) {
	driver := driverName(dialect)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("dbadapter: open %s: %w", dialect, err)
	}
	return &SQLAdapter{db: db, dialect: dialect}, nil
}

// New wraps an already-open *sql.DB, for callers that manage their own
// connection pool / lifecycle.
func New(db *sql.DB, dialect Dialect) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: dialect}
}

func driverName(d Dialect) string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite3"
	default:
		return string(d)
	}
}

// Close closes the underlying connection pool.
func (a *SQLAdapter) Close() error { return a.db.Close() }

func (a *SQLAdapter) Table(name string) types.QueryBuilder {
	return &sqlBuilder{adapter: a, table: name}
}

func (a *SQLAdapter) RPC(name string, params map[string]any) types.RPCCall {
	return &sqlRPC{adapter: a, name: name, params: params}
}

// placeholder returns the dialect-correct bind placeholder for the
// i-th (1-based) parameter: "$1" for Postgres, "?" for MySQL/SQLite.
func (a *SQLAdapter) placeholder(i int) string {
	if a.dialect == Postgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// quoteIdent quotes a SQL identifier (table/column name). Identifiers
// in Alfred's call sites always come from domain config, never from
// the LLM, so this only needs to guard against accidental reserved
// words, not injection.
func quoteIdent(dialect Dialect, ident string) string {
	switch dialect {
	case MySQL:
		return "`" + ident + "`"
	default:
		return `"` + ident + `"`
	}
}

type sqlRPC struct {
	adapter *SQLAdapter
	name    string
	params  map[string]any
}

// Execute calls a stored function/procedure. Postgres functions are
// invoked positionally (`SELECT * FROM name($1, $2, ...)`) with keys
// sorted for determinism; MySQL uses `CALL name(?, ?, ...)`. SQLite has
// no stored-procedure concept, so rpc is unsupported there — domains
// targeting SQLite must express the equivalent as table() calls.
func (r *sqlRPC) Execute(ctx context.Context) (types.Result, error) {
	keys := make([]string, 0, len(r.params))
	for k := range r.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys))
	placeholders := make([]string, 0, len(keys))
	for i, k := range keys {
		args = append(args, r.params[k])
		placeholders = append(placeholders, r.adapter.placeholder(i+1))
	}

	var query string
	switch r.adapter.dialect {
	case Postgres:
		query = fmt.Sprintf("SELECT * FROM %s(%s)", r.name, joinCommas(placeholders))
	case MySQL:
		query = fmt.Sprintf("CALL %s(%s)", r.name, joinCommas(placeholders))
	default:
		return types.Result{}, fmt.Errorf("dbadapter: rpc %q not supported on dialect %s", r.name, r.adapter.dialect)
	}

	rows, err := r.adapter.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: rpc %q: %w", r.name, err)
	}
	defer rows.Close()
	data, err := scanRows(rows)
	if err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: rpc %q scan: %w", r.name, err)
	}
	return types.Result{Data: data}, nil
}

func joinCommas(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

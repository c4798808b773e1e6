package types

import "context"

// Result is what every QueryBuilder/RPC execution returns (spec §4.2).
type Result struct {
	Data []map[string]any
}

// Adapter is the ONLY database boundary the core ever talks to
// (spec §4.2). Implementations: pkg/dbadapter's SQL-backed adapter, or
// a fake in-memory adapter for tests.
type Adapter interface {
	Table(name string) QueryBuilder
	RPC(name string, params map[string]any) RPCCall
}

// RPCCall is the minimal interface returned by Adapter.RPC.
type RPCCall interface {
	Execute(ctx context.Context) (Result, error)
}

// QueryBuilder is the fixed fluent surface every adapter table() call
// must support (spec §4.2). Calls compose (each returns the same
// builder) and terminate with Execute.
type QueryBuilder interface {
	Select(cols ...string) QueryBuilder
	Insert(records []map[string]any) QueryBuilder
	Update(data map[string]any) QueryBuilder
	Delete() QueryBuilder

	Eq(field string, value any) QueryBuilder
	Neq(field string, value any) QueryBuilder
	Gt(field string, value any) QueryBuilder
	Gte(field string, value any) QueryBuilder
	Lt(field string, value any) QueryBuilder
	Lte(field string, value any) QueryBuilder
	In(field string, values []any) QueryBuilder
	Is(field string, value any) QueryBuilder // IS NULL / IS NOT NULL via nil/non-nil
	Not(field string, value any) QueryBuilder
	ILike(field string, pattern string) QueryBuilder
	Contains(field string, value any) QueryBuilder
	Or(expr string) QueryBuilder

	Order(col string, asc bool) QueryBuilder
	Limit(n int) QueryBuilder

	Execute(ctx context.Context) (Result, error)
}

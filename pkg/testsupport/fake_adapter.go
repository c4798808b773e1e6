package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// CallRecord captures one terminal Execute() call against the fake
// adapter, for assertions like S1's "exactly one db_read tool call".
type CallRecord struct {
	Table string
	Op    string // "select" | "insert" | "update" | "delete" | "rpc"
}

// FakeAdapter is an in-memory types.Adapter used by every core-package
// test and the §8 end-to-end scenarios. Rows are plain
// map[string]any; "id" is treated as the primary key.
type FakeAdapter struct {
	mu    sync.Mutex
	Rows  map[string][]map[string]any
	Calls []CallRecord
	nextID map[string]int
}

// NewFakeAdapter returns an adapter seeded with no rows.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{Rows: map[string][]map[string]any{}, nextID: map[string]int{}}
}

// Seed inserts rows directly into a table without generating a call
// record, for test fixture setup.
func (a *FakeAdapter) Seed(table string, rows ...map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Rows[table] = append(a.Rows[table], rows...)
}

// ReadCallCount returns how many select calls were issued against
// table.
func (a *FakeAdapter) ReadCallCount(table string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.Calls {
		if c.Table == table && c.Op == "select" {
			n++
		}
	}
	return n
}

func (a *FakeAdapter) Table(name string) types.QueryBuilder {
	return &fakeBuilder{adapter: a, table: name}
}

func (a *FakeAdapter) RPC(name string, params map[string]any) types.RPCCall {
	return &fakeRPC{adapter: a, name: name, params: params}
}

type fakeRPC struct {
	adapter *FakeAdapter
	name    string
	params  map[string]any
}

func (r *fakeRPC) Execute(ctx context.Context) (types.Result, error) {
	r.adapter.mu.Lock()
	r.adapter.Calls = append(r.adapter.Calls, CallRecord{Table: r.name, Op: "rpc"})
	r.adapter.mu.Unlock()
	return types.Result{}, fmt.Errorf("rpc %q not implemented by fake adapter", r.name)
}

type cond struct {
	field string
	op    string
	value any
}

type fakeBuilder struct {
	adapter *FakeAdapter
	table   string
	op      string // "select" | "insert" | "update" | "delete"
	cols    []string
	insert  []map[string]any
	update  map[string]any
	conds   []cond
	orExpr  string
	orderBy string
	orderAsc bool
	limit   int
}

func (b *fakeBuilder) Select(cols ...string) types.QueryBuilder { b.op = "select"; b.cols = cols; return b }
func (b *fakeBuilder) Insert(records []map[string]any) types.QueryBuilder {
	b.op = "insert"
	b.insert = records
	return b
}
func (b *fakeBuilder) Update(data map[string]any) types.QueryBuilder {
	b.op = "update"
	b.update = data
	return b
}
func (b *fakeBuilder) Delete() types.QueryBuilder { b.op = "delete"; return b }

func (b *fakeBuilder) Eq(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "=", value})
	return b
}
func (b *fakeBuilder) Neq(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "!=", value})
	return b
}
func (b *fakeBuilder) Gt(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, ">", value})
	return b
}
func (b *fakeBuilder) Gte(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, ">=", value})
	return b
}
func (b *fakeBuilder) Lt(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "<", value})
	return b
}
func (b *fakeBuilder) Lte(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "<=", value})
	return b
}
func (b *fakeBuilder) In(field string, values []any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "in", values})
	return b
}
func (b *fakeBuilder) Is(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "is", value})
	return b
}
func (b *fakeBuilder) Not(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "not", value})
	return b
}
func (b *fakeBuilder) ILike(field string, pattern string) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "ilike", pattern})
	return b
}
func (b *fakeBuilder) Contains(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, cond{field, "contains", value})
	return b
}
func (b *fakeBuilder) Or(expr string) types.QueryBuilder { b.orExpr = expr; return b }

func (b *fakeBuilder) Order(col string, asc bool) types.QueryBuilder {
	b.orderBy = col
	b.orderAsc = asc
	return b
}
func (b *fakeBuilder) Limit(n int) types.QueryBuilder { b.limit = n; return b }

func (b *fakeBuilder) Execute(ctx context.Context) (types.Result, error) {
	b.adapter.mu.Lock()
	defer b.adapter.mu.Unlock()
	b.adapter.Calls = append(b.adapter.Calls, CallRecord{Table: b.table, Op: b.op})

	switch b.op {
	case "select":
		rows := b.matching(b.adapter.Rows[b.table])
		if b.orderBy != "" {
			sort.SliceStable(rows, func(i, j int) bool {
				less := fmt.Sprint(rows[i][b.orderBy]) < fmt.Sprint(rows[j][b.orderBy])
				if b.orderAsc {
					return less
				}
				return !less
			})
		}
		if b.limit > 0 && len(rows) > b.limit {
			rows = rows[:b.limit]
		}
		return types.Result{Data: cloneRows(rows)}, nil

	case "insert":
		var out []map[string]any
		for _, rec := range b.insert {
			cp := cloneRow(rec)
			if _, ok := cp["id"]; !ok {
				b.adapter.nextID[b.table]++
				cp["id"] = fmt.Sprintf("%s-uuid-%04d-0000-0000-000000000000", strings.TrimSuffix(b.table, "s"), b.adapter.nextID[b.table])
			}
			b.adapter.Rows[b.table] = append(b.adapter.Rows[b.table], cp)
			out = append(out, cloneRow(cp))
		}
		return types.Result{Data: out}, nil

	case "update":
		matched := b.matching(b.adapter.Rows[b.table])
		for _, row := range matched {
			for k, v := range b.update {
				row[k] = v
			}
		}
		return types.Result{Data: cloneRows(matched)}, nil

	case "delete":
		remaining := b.adapter.Rows[b.table][:0]
		var deleted []map[string]any
		for _, row := range b.adapter.Rows[b.table] {
			if b.rowMatches(row) {
				deleted = append(deleted, row)
				continue
			}
			remaining = append(remaining, row)
		}
		b.adapter.Rows[b.table] = remaining
		return types.Result{Data: cloneRows(deleted)}, nil
	}
	return types.Result{}, fmt.Errorf("unsupported op %q", b.op)
}

func (b *fakeBuilder) matching(rows []map[string]any) []map[string]any {
	var out []map[string]any
	for _, row := range rows {
		if b.rowMatches(row) {
			out = append(out, row)
		}
	}
	return out
}

func (b *fakeBuilder) rowMatches(row map[string]any) bool {
	for _, c := range b.conds {
		v := row[c.field]
		switch c.op {
		case "=":
			if fmt.Sprint(v) != fmt.Sprint(c.value) {
				return false
			}
		case "!=":
			if fmt.Sprint(v) == fmt.Sprint(c.value) {
				return false
			}
		case "is":
			if c.value == nil && v != nil {
				return false
			}
		case "not":
			if c.value == nil && v == nil {
				return false
			}
		case "in":
			values, _ := c.value.([]any)
			found := false
			for _, item := range values {
				if fmt.Sprint(item) == fmt.Sprint(v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "ilike":
			pattern := strings.ToLower(strings.Trim(fmt.Sprint(c.value), "%"))
			if !strings.Contains(strings.ToLower(fmt.Sprint(v)), pattern) {
				return false
			}
		case "contains":
			if !strings.Contains(fmt.Sprint(v), fmt.Sprint(c.value)) {
				return false
			}
		}
	}
	return true
}

func cloneRow(r map[string]any) map[string]any {
	cp := make(map[string]any, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

func cloneRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = cloneRow(r)
	}
	return out
}

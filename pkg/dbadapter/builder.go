package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

type op string

const (
	opEq       op = "="
	opNeq      op = "!="
	opGt       op = ">"
	opGte      op = ">="
	opLt       op = "<"
	opLte      op = "<="
	opIn       op = "in"
	opIsNull   op = "is"
	opIsNotNul op = "isnot"
	opILike    op = "ilike"
	opContains op = "contains"
)

type condition struct {
	field string
	op    op
	value any
}

// sqlBuilder implements types.QueryBuilder by accumulating a statement
// description and compiling it into dialect-correct SQL on Execute.
type sqlBuilder struct {
	adapter *SQLAdapter
	table   string

	kind string // "select" | "insert" | "update" | "delete"
	cols []string

	insertRows []map[string]any
	updateData map[string]any

	conds  []condition
	orExpr string

	orderCol string
	orderAsc bool
	limit    int
}

func (b *sqlBuilder) Select(cols ...string) types.QueryBuilder {
	b.kind = "select"
	b.cols = cols
	return b
}
func (b *sqlBuilder) Insert(records []map[string]any) types.QueryBuilder {
	b.kind = "insert"
	b.insertRows = records
	return b
}
func (b *sqlBuilder) Update(data map[string]any) types.QueryBuilder {
	b.kind = "update"
	b.updateData = data
	return b
}
func (b *sqlBuilder) Delete() types.QueryBuilder { b.kind = "delete"; return b }

func (b *sqlBuilder) Eq(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opEq, value})
	return b
}
func (b *sqlBuilder) Neq(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opNeq, value})
	return b
}
func (b *sqlBuilder) Gt(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opGt, value})
	return b
}
func (b *sqlBuilder) Gte(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opGte, value})
	return b
}
func (b *sqlBuilder) Lt(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opLt, value})
	return b
}
func (b *sqlBuilder) Lte(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opLte, value})
	return b
}
func (b *sqlBuilder) In(field string, values []any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opIn, values})
	return b
}
func (b *sqlBuilder) Is(field string, value any) types.QueryBuilder {
	if value == nil {
		b.conds = append(b.conds, condition{field, opIsNull, nil})
	} else {
		b.conds = append(b.conds, condition{field, opEq, value})
	}
	return b
}
func (b *sqlBuilder) Not(field string, value any) types.QueryBuilder {
	if value == nil {
		b.conds = append(b.conds, condition{field, opIsNotNul, nil})
	} else {
		b.conds = append(b.conds, condition{field, opNeq, value})
	}
	return b
}
func (b *sqlBuilder) ILike(field string, pattern string) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opILike, pattern})
	return b
}
func (b *sqlBuilder) Contains(field string, value any) types.QueryBuilder {
	b.conds = append(b.conds, condition{field, opContains, value})
	return b
}
func (b *sqlBuilder) Or(expr string) types.QueryBuilder { b.orExpr = expr; return b }

func (b *sqlBuilder) Order(col string, asc bool) types.QueryBuilder {
	b.orderCol = col
	b.orderAsc = asc
	return b
}
func (b *sqlBuilder) Limit(n int) types.QueryBuilder { b.limit = n; return b }

func (b *sqlBuilder) Execute(ctx context.Context) (types.Result, error) {
	switch b.kind {
	case "select":
		return b.execSelect(ctx)
	case "insert":
		return b.execInsert(ctx)
	case "update":
		return b.execUpdate(ctx)
	case "delete":
		return b.execDelete(ctx)
	default:
		return types.Result{}, fmt.Errorf("dbadapter: query builder used without a terminal verb (select/insert/update/delete)")
	}
}

func (b *sqlBuilder) whereClause(startAt int) (string, []any) {
	if len(b.conds) == 0 && b.orExpr == "" {
		return "", nil
	}
	var parts []string
	var args []any
	n := startAt
	for _, c := range b.conds {
		col := quoteIdent(b.adapter.dialect, c.field)
		switch c.op {
		case opIsNull:
			parts = append(parts, col+" IS NULL")
		case opIsNotNul:
			parts = append(parts, col+" IS NOT NULL")
		case opIn:
			values, _ := c.value.([]any)
			if len(values) == 0 {
				parts = append(parts, "1=0")
				continue
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = b.adapter.placeholder(n)
				args = append(args, v)
				n++
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
		case opILike:
			parts = append(parts, fmt.Sprintf("%s ILIKE %s", col, b.adapter.placeholder(n)))
			args = append(args, c.value)
			n++
		case opContains:
			parts = append(parts, fmt.Sprintf("%s LIKE %s", col, b.adapter.placeholder(n)))
			args = append(args, fmt.Sprintf("%%%v%%", c.value))
			n++
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", col, string(c.op), b.adapter.placeholder(n)))
			args = append(args, c.value)
			n++
		}
	}
	if b.orExpr != "" {
		parts = append(parts, "("+b.orExpr+")")
	}
	return strings.Join(parts, " AND "), args
}

func (b *sqlBuilder) execSelect(ctx context.Context) (types.Result, error) {
	cols := "*"
	if len(b.cols) > 0 {
		quoted := make([]string, len(b.cols))
		for i, c := range b.cols {
			quoted[i] = quoteIdent(b.adapter.dialect, c)
		}
		cols = strings.Join(quoted, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", cols, quoteIdent(b.adapter.dialect, b.table))
	where, args := b.whereClause(1)
	if where != "" {
		query += " WHERE " + where
	}
	if b.orderCol != "" {
		dir := "ASC"
		if !b.orderAsc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", quoteIdent(b.adapter.dialect, b.orderCol), dir)
	}
	if b.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", b.limit)
	}

	rows, err := b.adapter.db.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: select on %q: %w", b.table, err)
	}
	defer rows.Close()
	data, err := scanRows(rows)
	if err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: select scan on %q: %w", b.table, err)
	}
	return types.Result{Data: data}, nil
}

func (b *sqlBuilder) execInsert(ctx context.Context) (types.Result, error) {
	var inserted []map[string]any
	for _, rec := range b.insertRows {
		cols := make([]string, 0, len(rec))
		for k := range rec {
			cols = append(cols, k)
		}
		placeholders := make([]string, len(cols))
		args := make([]any, len(cols))
		quotedCols := make([]string, len(cols))
		for i, c := range cols {
			quotedCols[i] = quoteIdent(b.adapter.dialect, c)
			placeholders[i] = b.adapter.placeholder(i + 1)
			args[i] = rec[c]
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(b.adapter.dialect, b.table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
		if b.adapter.dialect == Postgres {
			query += " RETURNING *"
			row := b.adapter.db.QueryRowContext(ctx, query, args...)
			result, err := scanRow(row, cols)
			if err != nil {
				return types.Result{}, fmt.Errorf("dbadapter: insert into %q: %w", b.table, err)
			}
			inserted = append(inserted, result)
			continue
		}
		res, err := b.adapter.db.ExecContext(ctx, query, args...)
		if err != nil {
			return types.Result{}, fmt.Errorf("dbadapter: insert into %q: %w", b.table, err)
		}
		row := make(map[string]any, len(rec))
		for k, v := range rec {
			row[k] = v
		}
		if id, err := res.LastInsertId(); err == nil {
			row["id"] = id
		}
		inserted = append(inserted, row)
	}
	return types.Result{Data: inserted}, nil
}

func (b *sqlBuilder) execUpdate(ctx context.Context) (types.Result, error) {
	cols := make([]string, 0, len(b.updateData))
	for k := range b.updateData {
		cols = append(cols, k)
	}
	setParts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		setParts[i] = fmt.Sprintf("%s = %s", quoteIdent(b.adapter.dialect, c), b.adapter.placeholder(i+1))
		args[i] = b.updateData[c]
	}
	query := fmt.Sprintf("UPDATE %s SET %s", quoteIdent(b.adapter.dialect, b.table), strings.Join(setParts, ", "))
	where, whereArgs := b.whereClause(len(cols) + 1)
	if where == "" {
		return types.Result{}, fmt.Errorf("dbadapter: refusing update on %q with no filters", b.table)
	}
	query += " WHERE " + where
	args = append(args, whereArgs...)

	if b.adapter.dialect == Postgres {
		query += " RETURNING *"
		rows, err := b.adapter.db.QueryContext(ctx, query, args...)
		if err != nil {
			return types.Result{}, fmt.Errorf("dbadapter: update %q: %w", b.table, err)
		}
		defer rows.Close()
		data, err := scanRows(rows)
		if err != nil {
			return types.Result{}, fmt.Errorf("dbadapter: update scan on %q: %w", b.table, err)
		}
		return types.Result{Data: data}, nil
	}
	if _, err := b.adapter.db.ExecContext(ctx, query, args...); err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: update %q: %w", b.table, err)
	}
	return types.Result{}, nil
}

func (b *sqlBuilder) execDelete(ctx context.Context) (types.Result, error) {
	where, args := b.whereClause(1)
	if where == "" {
		return types.Result{}, fmt.Errorf("dbadapter: refusing delete on %q with no filters", b.table)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(b.adapter.dialect, b.table), where)
	if b.adapter.dialect == Postgres {
		query += " RETURNING *"
		rows, err := b.adapter.db.QueryContext(ctx, query, args...)
		if err != nil {
			return types.Result{}, fmt.Errorf("dbadapter: delete on %q: %w", b.table, err)
		}
		defer rows.Close()
		data, err := scanRows(rows)
		if err != nil {
			return types.Result{}, fmt.Errorf("dbadapter: delete scan on %q: %w", b.table, err)
		}
		return types.Result{Data: data}, nil
	}
	selectQuery := fmt.Sprintf("SELECT * FROM %s WHERE %s", quoteIdent(b.adapter.dialect, b.table), where)
	rows, err := b.adapter.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: delete on %q: %w", b.table, err)
	}
	data, err := scanRows(rows)
	rows.Close()
	if err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: delete scan on %q: %w", b.table, err)
	}
	if _, err := b.adapter.db.ExecContext(ctx, query, args...); err != nil {
		return types.Result{}, fmt.Errorf("dbadapter: delete on %q: %w", b.table, err)
	}
	return types.Result{Data: data}, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalizeScanned(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRow(row *sql.Row, fallbackCols []string) (map[string]any, error) {
	vals := make([]any, len(fallbackCols))
	ptrs := make([]any, len(fallbackCols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fallbackCols))
	for i, c := range fallbackCols {
		out[c] = normalizeScanned(vals[i])
	}
	return out, nil
}

func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

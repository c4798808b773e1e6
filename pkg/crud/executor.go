// Package crud implements the CRUD executor (spec §4.3): the sole path
// by which Act's tool calls reach the database adapter, applying ref
// translation, middleware, row-level scoping, and FK enrichment around
// every call.
//
// Grounded on hector's tool-dispatch pattern (pkg/tools/registry.go),
// adapted from "look up a named tool and invoke it" to "run one of four
// fixed CRUD verbs through a fixed pipeline of steps" — the steps
// themselves come from spec §4.3's execution order, which has no
// analogue in the teacher.
package crud

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jv92admin/alfredagain-sub002/pkg/aerrors"
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/logger"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// Executor runs the four CRUD verbs against a domain's adapter.
type Executor struct {
	Domain domain.Domain
}

// New returns an Executor bound to d's adapter and metadata.
func New(d domain.Domain) *Executor {
	return &Executor{Domain: d}
}

// Execute decodes call.Params into the tool's typed parameter struct
// and dispatches to the matching verb. This is the entry point Act
// uses for LLM-issued tool calls (spec §4.6.3); callers that already
// hold a typed params struct (pre-processing, UI ingestion) can call
// Read/Create/Update/Delete directly.
func (e *Executor) Execute(ctx context.Context, call types.ToolCall, userID string, reg *registry.Registry) ([]map[string]any, error) {
	switch call.Tool {
	case types.ToolDBRead:
		var p types.DbReadParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return e.Read(ctx, p, userID, reg)
	case types.ToolDBCreate:
		var p types.DbCreateParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return e.Create(ctx, p, userID, reg)
	case types.ToolDBUpdate:
		var p types.DbUpdateParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return e.Update(ctx, p, userID, reg)
	case types.ToolDBDelete:
		var p types.DbDeleteParams
		if err := decodeParams(call.Params, &p); err != nil {
			return nil, err
		}
		return e.Delete(ctx, p, userID, reg)
	default:
		return nil, fmt.Errorf("crud: unknown tool %q", call.Tool)
	}
}

func decodeParams(in map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("crud: building param decoder: %w", err)
	}
	if err := decoder.Decode(in); err != nil {
		return fmt.Errorf("crud: decoding tool params: %w", err)
	}
	return nil
}

func (e *Executor) scopeColumn() string {
	col := e.Domain.GetScopeConfig().UserIDColumn
	if col == "" {
		col = "user_id"
	}
	return col
}

func (e *Executor) isUserOwned(table string) bool {
	return e.Domain.GetUserOwnedTables()[table]
}

// Read implements db_read (spec §4.3).
func (e *Executor) Read(ctx context.Context, params types.DbReadParams, userID string, reg *registry.Registry) ([]map[string]any, error) {
	// Step 1: read rerouting for pending (not-yet-created) refs.
	if data, ok := e.rerouteToGenerated(params, reg); ok {
		return data, nil
	}

	// Step 2: input translation.
	filters, err := reg.TranslateFilters(params.Filters)
	if err != nil {
		return nil, err
	}
	orFilters, err := reg.TranslateFilters(params.OrFilters)
	if err != nil {
		return nil, err
	}
	params.Filters = filters
	params.OrFilters = orFilters

	// Step 3: middleware pre_read (runs on translated, not-yet-scoped
	// params; user scoping below is forced on regardless of what the
	// middleware returns).
	var selectAdditions []string
	var preFilterIDs map[string]bool
	var orConditions []types.FilterClause
	if mw := e.Domain.GetCrudMiddleware(params.Table); mw != nil {
		pre, err := mw.PreRead(ctx, params.Table, params)
		if err != nil {
			return nil, fmt.Errorf("crud: pre_read middleware on %q: %w", params.Table, err)
		}
		if pre.ShortCircuitEmpty {
			return []map[string]any{}, nil
		}
		params = pre.Params
		selectAdditions = pre.SelectAdditions
		preFilterIDs = pre.PreFilterIDs
		orConditions = pre.OrConditions
	}
	_ = selectAdditions // not applied: only params.Columns reaches the adapter's select, so middleware select additions are dropped.

	// Step 4: user scoping.
	if e.isUserOwned(params.Table) {
		params.Filters = append(params.Filters, types.FilterClause{Field: e.scopeColumn(), Op: types.OpEq, Value: userID})
	}

	if preFilterIDs != nil {
		ids := make([]any, 0, len(preFilterIDs))
		for id := range preFilterIDs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return fmt.Sprint(ids[i]) < fmt.Sprint(ids[j]) })
		params.Filters = append(params.Filters, types.FilterClause{Field: "id", Op: types.OpIn, Value: ids})
	}
	params.OrFilters = append(params.OrFilters, orConditions...)

	// Step 6: execute.
	builder := e.Domain.GetDBAdapter().Table(params.Table)
	builder = applySelect(builder, params.Columns)
	builder, err = applyFilters(ctx, builder, params.Filters)
	if err != nil {
		return nil, err
	}
	if orExpr := buildOrExpr(params.OrFilters); orExpr != "" {
		builder = builder.Or(orExpr)
	}
	if params.OrderBy != "" {
		builder = builder.Order(params.OrderBy, !strings.EqualFold(params.OrderDir, "desc"))
	}
	if params.Limit > 0 {
		builder = builder.Limit(params.Limit)
	}
	res, err := builder.Execute(ctx)
	if err != nil {
		return nil, &aerrors.AdapterFailureError{Op: "read", Table: params.Table, Cause: err}
	}

	// Step 7: output translation + FK enrichment.
	out := reg.TranslateReadOutput(res.Data, params.Table)
	if err := e.enrichFKLabels(ctx, reg, out); err != nil {
		return nil, err
	}
	return stripUUIDFields(e.Domain, params.Table, out), nil
}

// rerouteToGenerated implements SI4/step 1: if params targets a single
// ref whose recorded UUID is still the pending sentinel, the database
// is never touched.
func (e *Executor) rerouteToGenerated(params types.DbReadParams, reg *registry.Registry) ([]map[string]any, bool) {
	for _, f := range params.Filters {
		if f.Field != "id" || f.Op != types.OpEq {
			continue
		}
		ref, ok := f.Value.(string)
		if !ok || !registry.IsRef(ref) {
			continue
		}
		uuid, known := reg.UUIDOf(ref)
		if !known || uuid != types.PendingUUID {
			continue
		}
		data := reg.GetEntityData(ref)
		if data == nil {
			return []map[string]any{}, true
		}
		row := make(map[string]any, len(data)+1)
		for k, v := range data {
			row[k] = v
		}
		row["id"] = ref
		return []map[string]any{row}, true
	}
	return nil, false
}

// Create implements db_create.
func (e *Executor) Create(ctx context.Context, params types.DbCreateParams, userID string, reg *registry.Registry) ([]map[string]any, error) {
	translated := make([]map[string]any, 0, len(params.Records))
	for _, rec := range params.Records {
		t, err := reg.TranslatePayload(rec, params.Table)
		if err != nil {
			return nil, err
		}
		translated = append(translated, sanitizeStrings(t))
	}

	if mw := e.Domain.GetCrudMiddleware(params.Table); mw != nil {
		pre, err := mw.PreWrite(ctx, params.Table, translated)
		if err != nil {
			return nil, fmt.Errorf("crud: pre_write middleware on %q: %w", params.Table, err)
		}
		if pre.ShortCircuitEmpty {
			return []map[string]any{}, nil
		}
		translated = pre.Records
	}

	if e.isUserOwned(params.Table) {
		col := e.scopeColumn()
		for _, rec := range translated {
			rec[col] = userID
		}
	}

	translated = e.Domain.DeduplicateBatch(params.Table, translated)

	res, err := e.Domain.GetDBAdapter().Table(params.Table).Insert(translated).Execute(ctx)
	if err != nil {
		return nil, &aerrors.AdapterFailureError{Op: "create", Table: params.Table, Cause: err}
	}

	def, hasDef := e.Domain.Entities()[params.Table]
	typeName := params.Table
	if hasDef {
		typeName = def.TypeName
	}
	out := make([]map[string]any, 0, len(res.Data))
	for i, row := range res.Data {
		uuid, _ := row["id"].(string)
		label := e.Domain.ComputeEntityLabel(row, typeName)
		refHint := ""
		if i == 0 {
			refHint = params.RefHint
		}
		ref := reg.RegisterCreated(ctx, refHint, uuid, typeName, label)

		// id is already registered above; translate only the remaining
		// FK fields so the output carries refs, not raw UUIDs (SI2),
		// without RegisterRead minting a second ref for the same row.
		withoutID := cloneMap(row)
		delete(withoutID, "id")
		translated := reg.TranslateReadOutput([]map[string]any{withoutID}, params.Table)[0]
		translated["id"] = ref
		out = append(out, translated)
	}
	if err := e.enrichFKLabels(ctx, reg, out); err != nil {
		return nil, err
	}
	return stripUUIDFields(e.Domain, params.Table, out), nil
}

// Update implements db_update.
func (e *Executor) Update(ctx context.Context, params types.DbUpdateParams, userID string, reg *registry.Registry) ([]map[string]any, error) {
	filters, err := reg.TranslateFilters(params.Filters)
	if err != nil {
		return nil, err
	}
	data, err := reg.TranslatePayload(params.Data, params.Table)
	if err != nil {
		return nil, err
	}
	data = sanitizeStrings(data)

	if mw := e.Domain.GetCrudMiddleware(params.Table); mw != nil {
		pre, err := mw.PreWrite(ctx, params.Table, []map[string]any{data})
		if err != nil {
			return nil, fmt.Errorf("crud: pre_write middleware on %q: %w", params.Table, err)
		}
		if pre.ShortCircuitEmpty {
			return []map[string]any{}, nil
		}
		if len(pre.Records) > 0 {
			data = pre.Records[0]
		}
	}

	if e.isUserOwned(params.Table) {
		filters = append(filters, types.FilterClause{Field: e.scopeColumn(), Op: types.OpEq, Value: userID})
	}

	builder := e.Domain.GetDBAdapter().Table(params.Table).Update(data)
	builder, err = applyFilters(ctx, builder, filters)
	if err != nil {
		return nil, err
	}
	res, err := builder.Execute(ctx)
	if err != nil {
		return nil, &aerrors.AdapterFailureError{Op: "update", Table: params.Table, Cause: err}
	}

	out := reg.TranslateReadOutput(res.Data, params.Table)
	if err := e.enrichFKLabels(ctx, reg, out); err != nil {
		return nil, err
	}
	return stripUUIDFields(e.Domain, params.Table, out), nil
}

// Delete implements db_delete. SI1: an empty caller-supplied filter
// list fails closed, on any table — db_delete always requires filters
// per spec §6.4, and auto-scoping a user-owned table does not count as
// one.
func (e *Executor) Delete(ctx context.Context, params types.DbDeleteParams, userID string, reg *registry.Registry) ([]map[string]any, error) {
	filters, err := reg.TranslateFilters(params.Filters)
	if err != nil {
		return nil, err
	}

	// SI1/P8: the caller must supply at least one filter of its own —
	// auto-scoping a user-owned table to "every row this user owns" is
	// still "delete everything" from the user's point of view, so it
	// does not count toward satisfying this guard.
	if len(filters) == 0 {
		return nil, &aerrors.UnsafeDeleteError{Table: params.Table}
	}

	if e.isUserOwned(params.Table) {
		filters = append(filters, types.FilterClause{Field: e.scopeColumn(), Op: types.OpEq, Value: userID})
	}

	builder := e.Domain.GetDBAdapter().Table(params.Table).Delete()
	builder, err = applyFilters(ctx, builder, filters)
	if err != nil {
		return nil, err
	}
	res, err := builder.Execute(ctx)
	if err != nil {
		return nil, &aerrors.AdapterFailureError{Op: "delete", Table: params.Table, Cause: err}
	}

	// Deleted rows are reported using the ref they held at the moment
	// of deletion; RemoveRef tears down the mapping immediately after,
	// so output translation must not re-register them (it would mint a
	// fresh ref for a UUID that no longer exists).
	out := make([]map[string]any, 0, len(res.Data))
	for _, row := range res.Data {
		row = cloneMap(row)
		if uuid, ok := row["id"].(string); ok {
			if ref, known := reg.RefOf(uuid); known {
				row["id"] = ref
				reg.RemoveRef(ref)
			}
		}
		out = append(out, row)
	}
	return stripUUIDFields(e.Domain, params.Table, out), nil
}

func applySelect(b types.QueryBuilder, cols []string) types.QueryBuilder {
	if len(cols) == 0 {
		return b.Select()
	}
	return b.Select(cols...)
}

// applyFilters compiles the 14 filter operators onto a QueryBuilder
// (spec §4.3). not_in with more than one value is a documented operator
// mis-map: it logs a warning and passes through rather than filtering
// (spec §7, "operator mis-map logs a warning and passes through, e.g.
// multi-value not_in").
func applyFilters(ctx context.Context, b types.QueryBuilder, filters []types.FilterClause) (types.QueryBuilder, error) {
	for _, f := range filters {
		if f.Field == types.SemanticField {
			// handled entirely by middleware; ignored here.
			continue
		}
		switch f.Op {
		case types.OpEq:
			b = b.Eq(f.Field, f.Value)
		case types.OpNeq, types.OpNeqAlt:
			b = b.Neq(f.Field, f.Value)
		case types.OpGt:
			b = b.Gt(f.Field, f.Value)
		case types.OpLt:
			b = b.Lt(f.Field, f.Value)
		case types.OpGte:
			b = b.Gte(f.Field, f.Value)
		case types.OpLte:
			b = b.Lte(f.Field, f.Value)
		case types.OpIn:
			values, err := toAnySlice(f.Value)
			if err != nil {
				return nil, &aerrors.InvalidFilterError{Field: f.Field, Op: string(f.Op), Msg: err.Error()}
			}
			b = b.In(f.Field, values)
		case types.OpNotIn:
			values, err := toAnySlice(f.Value)
			if err != nil {
				return nil, &aerrors.InvalidFilterError{Field: f.Field, Op: string(f.Op), Msg: err.Error()}
			}
			if len(values) != 1 {
				logger.For(ctx).Warn("crud: multi-value not_in is unsupported, skipping filter", "field", f.Field, "values", len(values))
				continue
			}
			b = b.Neq(f.Field, values[0])
		case types.OpILike:
			pattern, _ := f.Value.(string)
			b = b.ILike(f.Field, pattern)
		case types.OpIsNull:
			b = b.Is(f.Field, nil)
		case types.OpIsNotNull:
			b = b.Not(f.Field, nil)
		case types.OpContains:
			b = b.Contains(f.Field, f.Value)
		default:
			return nil, &aerrors.InvalidFilterError{Field: f.Field, Op: string(f.Op), Msg: "unsupported operator"}
		}
	}
	return b, nil
}

func toAnySlice(v any) ([]any, error) {
	switch val := v.(type) {
	case []any:
		return val, nil
	case nil:
		return nil, fmt.Errorf("nil value for list operator")
	default:
		return []any{val}, nil
	}
}

// buildOrExpr serializes an or_filters list into the adapter's
// or_(...) single-string form (spec §4.3).
func buildOrExpr(filters []types.FilterClause) string {
	if len(filters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, fmt.Sprintf("%s.%s.%v", f.Field, string(f.Op), f.Value))
	}
	return strings.Join(parts, ",")
}

// enrichFKLabels implements §4.3.1: group the registry's lazy-enrich
// queue by table, fetch names in one query per table, and inject
// `_{field}_label` annotations into already-translated output rows.
func (e *Executor) enrichFKLabels(ctx context.Context, reg *registry.Registry, rows []map[string]any) error {
	queue := reg.GetLazyEnrichQueue()
	if len(queue) == 0 {
		return nil
	}

	byTable := map[string][]types.EnrichTarget{}
	for _, target := range queue {
		byTable[target.Table] = append(byTable[target.Table], target)
	}

	labels := map[string]string{}
	for table, targets := range byTable {
		ids := make([]any, len(targets))
		for i, t := range targets {
			ids[i] = t.UUID
		}
		nameCol := targets[0].NameColumn
		res, err := e.Domain.GetDBAdapter().Table(table).Select("id", nameCol).In("id", ids).Execute(ctx)
		if err != nil {
			return &aerrors.AdapterFailureError{Op: "fk_enrich", Table: table, Cause: err}
		}
		byUUID := map[string]string{}
		for _, row := range res.Data {
			uuid, _ := row["id"].(string)
			name, _ := row[nameCol].(string)
			byUUID[uuid] = name
		}
		for _, t := range targets {
			if name, ok := byUUID[t.UUID]; ok {
				labels[t.Ref] = name
			}
		}
	}
	reg.ApplyEnrichment(labels)

	for _, row := range rows {
		for field, v := range row {
			ref, ok := v.(string)
			if !ok || !registry.IsRef(ref) {
				continue
			}
			if label, ok := labels[ref]; ok {
				row["_"+field+"_label"] = label
			}
		}
	}
	return nil
}

// stripUUIDFields enforces SI2: no raw UUID survives for any field the
// domain marks as a UUID field. TranslateReadOutput already rewrites
// known FK/UUID fields it can resolve through the registry; this is
// the last-resort net for UUID fields that carry no FK/enrichment
// metadata at all (so they were never routed through translation).
func stripUUIDFields(d domain.Domain, table string, rows []map[string]any) []map[string]any {
	uuidFields := d.GetUUIDFields(table)
	if len(uuidFields) == 0 {
		return rows
	}
	for _, row := range rows {
		for field := range uuidFields {
			v, ok := row[field]
			if !ok {
				continue
			}
			s, ok := v.(string)
			if !ok || s == "" || registry.IsRef(s) {
				continue
			}
			delete(row, field)
		}
	}
	return rows
}

func sanitizeStrings(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return strings.ReplaceAll(val, "\x00", "")
	case map[string]any:
		return sanitizeStrings(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

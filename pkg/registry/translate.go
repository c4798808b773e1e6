package registry

import (
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// TranslateReadOutput implements spec §4.1: for each record, the UUID
// `id` is replaced by a ref (registering/updating the entity), FK
// fields are rewritten UUID->ref (allocating `linked` refs and
// queueing them for enrichment as needed), and nested relations are
// traversed recursively. No UUID for any field known to the domain as
// a UUID field survives into the returned records (P1).
func (r *Registry) TranslateReadOutput(records []map[string]any, table string) []map[string]any {
	def, hasDef := r.entityDefForTable(table)
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, r.translateOneRecord(rec, table, def, hasDef))
	}
	return out
}

func (r *Registry) entityDefForTable(table string) (types.EntityDefinition, bool) {
	if r.domain == nil {
		return types.EntityDefinition{}, false
	}
	def, ok := r.domain.Entities()[table]
	return def, ok
}

func (r *Registry) translateOneRecord(rec map[string]any, table string, def types.EntityDefinition, hasDef bool) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}

	typeName := table
	if hasDef {
		typeName = def.TypeName
	}

	if idVal, ok := out["id"]; ok {
		if uuid, ok := idVal.(string); ok && uuid != "" {
			ref := r.RegisterRead(uuid, typeName, rec, 0)
			out["id"] = ref
		}
	}

	fkEnrich := map[string]domain.FKEnrich{}
	uuidFields := map[string]bool{}
	if r.domain != nil {
		fkEnrich = r.domain.GetFKEnrichMap(table)
		uuidFields = r.domain.GetUUIDFields(table)
	}

	fkFields := map[string]bool{}
	for _, f := range def.FKFields {
		fkFields[f] = true
	}
	for f := range fkEnrich {
		fkFields[f] = true
	}
	for f := range uuidFields {
		fkFields[f] = true
	}

	for field := range fkFields {
		v, ok := out[field]
		if !ok {
			continue
		}
		uuid, ok := v.(string)
		if !ok || uuid == "" {
			continue
		}
		if IsRef(uuid) {
			continue // already a ref (defensive; should not happen on raw adapter output)
		}
		if ref, known := r.RefOf(uuid); known {
			out[field] = ref
			continue
		}
		enrich, hasEnrich := fkEnrich[field]
		fkType := field
		enrichTable := enrich.Table
		nameCol := enrich.NameColumn
		if !hasEnrich {
			enrichTable = table
			nameCol = "name"
		}
		ref := r.RegisterLinked(uuid, fkType, enrichTable, nameCol)
		out[field] = ref
	}

	if hasDef {
		for _, rel := range def.NestedRelations {
			if nested, ok := out[rel]; ok {
				switch n := nested.(type) {
				case []map[string]any:
					nestedDef, nestedHas := r.entityDefForTable(rel)
					translated := make([]map[string]any, 0, len(n))
					for _, nr := range n {
						translated = append(translated, r.translateOneRecord(nr, rel, nestedDef, nestedHas))
					}
					out[rel] = translated
				case map[string]any:
					nestedDef, nestedHas := r.entityDefForTable(rel)
					out[rel] = r.translateOneRecord(n, rel, nestedDef, nestedHas)
				}
			}
		}
	}

	return out
}

// TranslateFilters implements spec §4.1: ref-shaped values are
// replaced by their UUID, raw UUIDs pass through unchanged, and unknown
// refs fail with UnknownRef (P5).
func (r *Registry) TranslateFilters(filters []types.FilterClause) ([]types.FilterClause, error) {
	out := make([]types.FilterClause, len(filters))
	for i, f := range filters {
		v, err := r.translateValue(f.Value)
		if err != nil {
			return nil, err
		}
		f.Value = v
		out[i] = f
	}
	return out, nil
}

func (r *Registry) translateValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if !IsRef(val) {
			return val, nil
		}
		uuid, ok := r.UUIDOf(val)
		if !ok {
			return nil, UnsafeUnknownRef(val)
		}
		return uuid, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			t, err := r.translateValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	default:
		return v, nil
	}
}

// TranslatePayload implements spec §4.1: same rewriting as filters,
// plus empty strings on uuid_fields become null.
func (r *Registry) TranslatePayload(data map[string]any, table string) (map[string]any, error) {
	uuidFields := map[string]bool{}
	if r.domain != nil {
		uuidFields = r.domain.GetUUIDFields(table)
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if uuidFields[k] {
			if s, ok := v.(string); ok && s == "" {
				out[k] = nil
				continue
			}
		}
		t, err := r.translateValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = t
	}
	return out, nil
}

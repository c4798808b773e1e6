package crud_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfredagain-sub002/pkg/crud"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

func newFixture() (*crud.Executor, *registry.Registry, *testsupport.FakeAdapter) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things",
		map[string]any{"id": "thing-uuid-1", "name": "Alpha", "owner_id": "owner-uuid-1"},
		map[string]any{"id": "thing-uuid-2", "name": "Beta", "owner_id": "owner-uuid-2"},
	)
	adapter.Seed("owners",
		map[string]any{"id": "owner-uuid-1", "name": "Ann"},
		map[string]any{"id": "owner-uuid-2", "name": "Bo"},
	)
	d := testsupport.NewStubDomain(adapter)
	reg := registry.New("sess-1", d)
	reg.BeginTurn()
	return crud.New(d), reg, adapter
}

func TestRead_ScopesToUser(t *testing.T) {
	e, reg, _ := newFixture()
	rows, err := e.Read(context.Background(), types.DbReadParams{Table: "things"}, "owner-uuid-1", reg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha", rows[0]["name"])
}

func TestRead_NoUUIDInOutput(t *testing.T) {
	e, reg, _ := newFixture()
	rows, err := e.Read(context.Background(), types.DbReadParams{Table: "things"}, "owner-uuid-1", reg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	idRef, ok := rows[0]["id"].(string)
	require.True(t, ok)
	assert.True(t, registry.IsRef(idRef))
	ownerRef, ok := rows[0]["owner_id"].(string)
	require.True(t, ok)
	assert.True(t, registry.IsRef(ownerRef))
}

func TestRead_FKEnrichmentInjectsLabel(t *testing.T) {
	e, reg, _ := newFixture()
	rows, err := e.Read(context.Background(), types.DbReadParams{Table: "things"}, "owner-uuid-1", reg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann", rows[0]["_owner_id_label"])
}

func TestRead_RerouteToGeneratedSkipsAdapter(t *testing.T) {
	e, reg, adapter := newFixture()
	ref := reg.RegisterGenerated("thing", map[string]any{"name": "Pending Thing"}, "Pending Thing", 0)

	rows, err := e.Read(context.Background(), types.DbReadParams{
		Table:   "things",
		Filters: []types.FilterClause{{Field: "id", Op: types.OpEq, Value: ref}},
	}, "owner-uuid-1", reg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Pending Thing", rows[0]["name"])
	assert.Equal(t, 0, adapter.ReadCallCount("things"))
}

func TestCreate_PromotesGeneratedRef(t *testing.T) {
	e, reg, _ := newFixture()
	genRef := reg.RegisterGenerated("thing", map[string]any{"name": "Gamma"}, "Gamma", 0)

	rows, err := e.Create(context.Background(), types.DbCreateParams{
		Table:   "things",
		Records: []map[string]any{{"name": "Gamma", "owner_id": "owner-uuid-1"}},
		RefHint: genRef,
	}, "owner-uuid-1", reg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, genRef, rows[0]["id"])
}

func TestCreate_ForcesUserScope(t *testing.T) {
	e, reg, adapter := newFixture()
	_, err := e.Create(context.Background(), types.DbCreateParams{
		Table:   "things",
		Records: []map[string]any{{"name": "Delta"}},
	}, "owner-uuid-9", reg)
	require.NoError(t, err)
	require.Len(t, adapter.Rows["things"], 3)
	assert.Equal(t, "owner-uuid-9", adapter.Rows["things"][2]["owner_id"])
}

func TestUpdate_RequiresFiltersTranslated(t *testing.T) {
	e, reg, _ := newFixture()
	ref := reg.RegisterRead("thing-uuid-1", "thing", map[string]any{"name": "Alpha"}, 0)

	rows, err := e.Update(context.Background(), types.DbUpdateParams{
		Table:   "things",
		Filters: []types.FilterClause{{Field: "id", Op: types.OpEq, Value: ref}},
		Data:    map[string]any{"name": "Alpha Prime"},
	}, "owner-uuid-1", reg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha Prime", rows[0]["name"])
}

func TestDelete_EmptyFiltersFailsClosed(t *testing.T) {
	e, reg, _ := newFixture()
	_, err := e.Delete(context.Background(), types.DbDeleteParams{Table: "things"}, "owner-uuid-1", reg)
	assert.Error(t, err)
}

func TestDelete_RemovesRegistryMapping(t *testing.T) {
	e, reg, adapter := newFixture()
	ref := reg.RegisterRead("thing-uuid-1", "thing", map[string]any{"name": "Alpha"}, 0)

	_, err := e.Delete(context.Background(), types.DbDeleteParams{
		Table:   "things",
		Filters: []types.FilterClause{{Field: "id", Op: types.OpEq, Value: ref}},
	}, "owner-uuid-1", reg)
	require.NoError(t, err)

	_, known := reg.UUIDOf(ref)
	assert.False(t, known)
	assert.Len(t, adapter.Rows["things"], 1)
}

func TestExecute_DispatchesByTool(t *testing.T) {
	e, reg, _ := newFixture()
	rows, err := e.Execute(context.Background(), types.ToolCall{
		Tool:   types.ToolDBRead,
		Params: map[string]any{"table": "things"},
	}, "owner-uuid-1", reg)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

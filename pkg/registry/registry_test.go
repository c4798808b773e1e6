package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

func newTestRegistry() *registry.Registry {
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	return registry.New("sess-1", d)
}

func TestIsRef(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"database ref", "recipe_1", true},
		{"generated ref", "gen_recipe_1", true},
		{"uuid", "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", false},
		{"no underscore", "recipe", false},
		{"non-numeric tail", "recipe_abc", false},
		{"trailing underscore", "recipe_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, registry.IsRef(tt.in))
		})
	}
}

func TestRegisterRead_StableAcrossTurns(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()

	ref1 := r.RegisterRead("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", "thing", map[string]any{"name": "Alpha"}, 0)
	ref2 := r.RegisterRead("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", "thing", map[string]any{"name": "Alpha"}, 0)

	assert.Equal(t, ref1, ref2, "P3: reading the same UUID twice yields the same ref")
	assert.Equal(t, "thing_1", ref1)
	assert.Equal(t, "Alpha", r.Label(ref1))
	assert.Equal(t, types.ActionRead, r.ActionOf(ref1))
}

func TestCountersMonotonic(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()
	r.RegisterRead("uuid-1", "thing", map[string]any{"name": "A"}, 0)
	r.RegisterRead("uuid-2", "thing", map[string]any{"name": "B"}, 0)
	ref := r.RegisterRead("uuid-1", "thing", map[string]any{"name": "A"}, 0) // re-read, no new counter

	assert.Equal(t, "thing_1", ref)
	// third distinct read should get counter 3, not 2, since removing a
	// ref never lowers counters (P4/I5).
	r.RemoveRef("thing_2")
	ref3 := r.RegisterRead("uuid-3", "thing", map[string]any{"name": "C"}, 0)
	assert.Equal(t, "thing_3", ref3)
}

func TestRegisterGenerated_PendingArtifact(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()

	ref := r.RegisterGenerated("thing", map[string]any{"name": "Beta"}, "Beta", 0)
	assert.Equal(t, "gen_thing_1", ref)
	assert.Equal(t, types.ActionGenerated, r.ActionOf(ref))

	uuid, ok := r.UUIDOf(ref)
	require.True(t, ok)
	assert.Equal(t, types.PendingUUID, uuid)

	data := r.GetEntityData(ref)
	require.NotNil(t, data)
	assert.Equal(t, "Beta", data["name"])
}

func TestRegisterCreated_PromotesMatchingArtifact(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()

	genRef := r.RegisterGenerated("thing", map[string]any{"name": "Beta"}, "Beta", 0)
	createdRef := r.RegisterCreated(context.Background(), "", "real-uuid-1", "thing", "Beta")

	assert.Equal(t, genRef, createdRef, "P6: unique label match promotes, preserving the ref")
	assert.Equal(t, types.ActionCreated, r.ActionOf(createdRef))
	uuid, ok := r.UUIDOf(createdRef)
	require.True(t, ok)
	assert.Equal(t, "real-uuid-1", uuid)
}

func TestRegisterCreated_NoMatchAllocatesFresh(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()

	ref := r.RegisterCreated(context.Background(), "", "real-uuid-1", "thing", "Gamma")
	assert.Equal(t, "thing_1", ref)
	assert.Equal(t, types.ActionCreated, r.ActionOf(ref))
}

func TestRegisterCreated_AmbiguousLabelAllocatesFresh(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()
	r.RegisterGenerated("thing", map[string]any{"name": "Same"}, "Same", 0)
	r.RegisterGenerated("thing", map[string]any{"name": "Same"}, "Same", 0)

	ref := r.RegisterCreated(context.Background(), "", "real-uuid-1", "thing", "Same")
	assert.NotEqual(t, "gen_thing_1", ref)
	assert.NotEqual(t, "gen_thing_2", ref)
}

func TestTranslateFilters_RefToUUID(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()
	ref := r.RegisterRead("real-uuid-1", "thing", map[string]any{"name": "Alpha"}, 0)

	out, err := r.TranslateFilters([]types.FilterClause{{Field: "id", Op: types.OpEq, Value: ref}})
	require.NoError(t, err)
	assert.Equal(t, "real-uuid-1", out[0].Value)
}

func TestTranslateFilters_UnknownRefFails(t *testing.T) {
	r := newTestRegistry()
	_, err := r.TranslateFilters([]types.FilterClause{{Field: "id", Op: types.OpEq, Value: "thing_999"}})
	assert.Error(t, err)
}

func TestTranslateReadOutput_NoUUIDSurvives(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()

	records := []map[string]any{
		{"id": "real-uuid-1", "name": "Alpha", "owner_id": "owner-uuid-1"},
	}
	out := r.TranslateReadOutput(records, "things")

	require.Len(t, out, 1)
	assert.True(t, registry.IsRef(out[0]["id"].(string)))
	assert.True(t, registry.IsRef(out[0]["owner_id"].(string)))
}

func TestApplyEnrichment_Idempotent(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()
	records := []map[string]any{{"id": "real-uuid-1", "name": "Alpha", "owner_id": "owner-uuid-1"}}
	out := r.TranslateReadOutput(records, "things")
	ownerRef := out[0]["owner_id"].(string)

	r.ApplyEnrichment(map[string]string{ownerRef: "Ann"})
	assert.Equal(t, "Ann", r.Label(ownerRef))
	assert.Empty(t, r.GetLazyEnrichQueue())

	// re-applying must not change anything observable (P7).
	r.ApplyEnrichment(map[string]string{ownerRef: "Ann"})
	assert.Equal(t, "Ann", r.Label(ownerRef))
}

func TestToDictFromDict_RoundTrip(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()
	ref := r.RegisterRead("real-uuid-1", "thing", map[string]any{"name": "Alpha"}, 0)
	r.SetActiveReason(ref, "ongoing goal")

	snap := r.ToDict()

	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	r2 := registry.FromDict(snap, d)

	assert.Equal(t, r.Label(ref), r2.Label(ref))
	assert.Equal(t, r.ActionOf(ref), r2.ActionOf(ref))
	uuid1, _ := r.UUIDOf(ref)
	uuid2, _ := r2.UUIDOf(ref)
	assert.Equal(t, uuid1, uuid2)
	reason, ok := r2.TurnActiveReason(ref)
	require.True(t, ok)
	assert.Equal(t, "ongoing goal", reason)
}

func TestClearTurnPromotedArtifacts(t *testing.T) {
	r := newTestRegistry()
	r.BeginTurn()
	genRef := r.RegisterGenerated("thing", map[string]any{"name": "Beta"}, "Beta", 0)
	r.RegisterCreated(context.Background(), "", "real-uuid-1", "thing", "Beta")

	require.NotNil(t, r.GetEntityData(genRef))
	r.ClearTurnPromotedArtifacts()
	assert.Nil(t, r.GetEntityData(genRef))
}

package context_test

import (
	stdcontext "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alfredcontext "github.com/jv92admin/alfredagain-sub002/pkg/context"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

func newFixture(t *testing.T) (*registry.Registry, *testsupport.StubDomain) {
	t.Helper()
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	reg := registry.New("sess-1", d)
	reg.BeginTurn()
	return reg, d
}

func TestClassifyEntities_GeneratedTakesPriorityOverActive(t *testing.T) {
	reg, _ := newFixture(t)
	ref := reg.RegisterGenerated("thing", map[string]any{"name": "Beta"}, "Beta", 0)

	generated, active, retained := alfredcontext.ClassifyEntities(reg, alfredcontext.DefaultTurnsWindow)
	assert.Equal(t, []string{ref}, generated)
	assert.Empty(t, active)
	assert.Empty(t, retained)
}

func TestClassifyEntities_RetainedRequiresActiveReason(t *testing.T) {
	reg, _ := newFixture(t)
	ref := reg.RegisterRead("thing-uuid-1", "thing", map[string]any{"name": "Alpha"}, 0)

	// Advance turns past the active window without touching ref again.
	reg.BeginTurn()
	reg.BeginTurn()
	reg.BeginTurn()

	_, active, retained := alfredcontext.ClassifyEntities(reg, alfredcontext.DefaultTurnsWindow)
	assert.Empty(t, active)
	assert.Empty(t, retained)

	reg.SetActiveReason(ref, "user's ongoing goal")
	_, active, retained = alfredcontext.ClassifyEntities(reg, alfredcontext.DefaultTurnsWindow)
	assert.Empty(t, active)
	assert.Equal(t, []string{ref}, retained)
}

func TestRenderEntityContext_IncludesGeneratedMarker(t *testing.T) {
	reg, d := newFixture(t)
	reg.RegisterGenerated("thing", map[string]any{"name": "Thai Curry"}, "Thai Curry", 0)

	out := alfredcontext.RenderEntityContext(reg, d, alfredcontext.DefaultTurnsWindow)
	assert.Contains(t, out, "Generated (NOT YET SAVED):")
	assert.Contains(t, out, "Thai Curry")
	assert.Contains(t, out, "[needs save]")
}

func TestRenderActEntityContext_IncludesLinkedSection(t *testing.T) {
	reg, d := newFixture(t)
	reg.RegisterLinked("owner-uuid-1", "owner", "owners", "name")

	out := alfredcontext.RenderActEntityContext(reg, d, alfredcontext.DefaultTurnsWindow)
	assert.Contains(t, out, "Linked (referenced, not yet detailed):")
}

func TestRenderConversationHistory_CapsToFullDetailTurns(t *testing.T) {
	conv := types.ConversationContext{
		RecentTurns: []types.Turn{
			{TurnNum: 1, UserMessage: "one", Response: "r1"},
			{TurnNum: 2, UserMessage: "two", Response: "r2"},
			{TurnNum: 3, UserMessage: "three", Response: "r3"},
			{TurnNum: 4, UserMessage: "four", Response: "r4"},
		},
		HistorySummary: "older stuff happened",
	}
	out := alfredcontext.RenderConversationHistory(conv)
	assert.NotContains(t, out, "one")
	assert.Contains(t, out, "four")
	assert.Contains(t, out, "older stuff happened")
}

func TestRenderTurnNarrative_CapsToKeptSummaries(t *testing.T) {
	conv := types.ConversationContext{
		ReasoningSummary: "earlier reasoning",
		TurnSummaries: []types.TurnExecutionSummary{
			{TurnNum: 1, ThinkDecision: "plan_direct", ThinkGoal: "goal1"},
			{TurnNum: 2, ThinkDecision: "plan_direct", ThinkGoal: "goal2"},
			{TurnNum: 3, ThinkDecision: "propose", ThinkGoal: "goal3"},
		},
	}
	out := alfredcontext.RenderTurnNarrative(conv)
	assert.NotContains(t, out, "goal1")
	assert.Contains(t, out, "goal2")
	assert.Contains(t, out, "goal3")
	assert.Contains(t, out, "earlier reasoning")
}

func TestBuildThinkContext_ContainsAllSections(t *testing.T) {
	reg, d := newFixture(t)
	reg.RegisterRead("thing-uuid-1", "thing", map[string]any{"name": "Alpha"}, 0)

	asm := alfredcontext.NewAssembler(d, nil)
	ps := types.PipelineState{UserMessage: "list my things", ModeContext: types.ModeContext{SelectedMode: types.ModePlan}}
	conv := types.ConversationContext{EngagementSummary: "tracking a shopping habit"}

	out := asm.BuildThinkContext(stdcontext.Background(), ps, conv, reg, "2026-07-31")
	assert.Contains(t, out, "<entity_context>")
	assert.Contains(t, out, "<immediate_task>")
	assert.Contains(t, out, "list my things")
	assert.Contains(t, out, "2026-07-31")
}

func TestBuildActContext_IncludesStepResults(t *testing.T) {
	reg, d := newFixture(t)
	asm := alfredcontext.NewAssembler(d, nil)
	ps := types.PipelineState{
		StepResults: map[int]types.StepResult{
			0: {StepIndex: 0, StepType: types.StepRead, Summary: "read 1 thing"},
		},
	}
	out := asm.BuildActContext(ps, types.ConversationContext{}, reg)
	assert.Contains(t, out, "read 1 thing")
}

func TestCappedSubdomainGuidance_Truncates(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	asm := alfredcontext.NewAssembler(d, nil)
	out := asm.CappedSubdomainGuidance("things")
	require.LessOrEqual(t, len(out), alfredcontext.SubdomainGuidanceMaxChars)
}

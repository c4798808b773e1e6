package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/pipeline"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// scriptedProvider replays a fixed sequence of raw LLM responses, one
// per call, in the order the pipeline is expected to issue them.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Generate(ctx context.Context, model string, messages []llmboundary.Message) (llmboundary.Response, error) {
	if p.calls >= len(p.responses) {
		panic("scriptedProvider: more LLM calls than scripted responses")
	}
	resp := p.responses[p.calls]
	p.calls++
	return llmboundary.Response{Text: resp, InputTokens: 10, OutputTokens: 5}, nil
}

func newTestPipeline(t *testing.T, adapter *testsupport.FakeAdapter, responses []string) (*pipeline.Pipeline, *scriptedProvider) {
	t.Helper()
	d := testsupport.NewStubDomain(adapter)
	provider := &scriptedProvider{responses: responses}
	boundary := llmboundary.NewBoundary(provider)
	p, err := pipeline.New(d, boundary, "gpt-4")
	require.NoError(t, err)
	return p, provider
}

func TestRunTurn_QuickModeReadRoundTrip(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things", map[string]any{"id": "thing-uuid-0001-0000-0000-000000000000", "name": "Widget", "owner_id": "owner-1"})

	p, provider := newTestPipeline(t, adapter, []string{
		`{"quick_mode": true, "quick_intent": "list my things", "quick_subdomain": "things"}`,
		`{"action": "tool_call", "tool_call": {"tool": "db_read", "params": {"table": "things"}}}`,
		`{"response": "You have one thing: Widget."}`,
		`{"summary": "User asked what things they have; assistant listed Widget."}`,
	})

	in := pipeline.TurnInput{
		UserMessage:    "what things do I have?",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModeQuick},
		Today:          "2026-08-01",
	}

	out, err := p.RunTurn(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, "You have one thing: Widget.", out.Response)
	assert.Equal(t, 4, provider.calls)
	require.Len(t, out.Conversation.RecentTurns, 1)
	assert.Equal(t, "what things do I have?", out.Conversation.RecentTurns[0].UserMessage)
	require.Len(t, out.Conversation.TurnSummaries, 1)
	assert.Equal(t, "User asked what things they have; assistant listed Widget.", out.Conversation.EngagementSummary)
	assert.Equal(t, 1, adapter.ReadCallCount("things"))
}

func TestRunTurn_UnderstandClarificationSkipsThinkAndAct(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()

	p, provider := newTestPipeline(t, adapter, []string{
		`{"needs_clarification": true, "clarification_questions": ["Which thing do you mean?"]}`,
		`{"summary": "User's request was ambiguous; asked for clarification."}`,
	})

	in := pipeline.TurnInput{
		UserMessage:    "update it",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModePlan},
		Today:          "2026-08-01",
	}

	out, err := p.RunTurn(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, "Which thing do you mean?", out.Response)
	assert.Equal(t, 2, provider.calls)
	require.NotNil(t, out.Conversation.PendingClarification)
	assert.Equal(t, "Which thing do you mean?", out.Conversation.PendingClarification.Question)
	assert.Equal(t, 0, adapter.ReadCallCount("things"))
}

func TestRunTurn_PlanModeReadLoopRunsThroughStepComplete(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things", map[string]any{"id": "thing-uuid-0001-0000-0000-000000000000", "name": "Widget", "owner_id": "owner-1"})

	p, provider := newTestPipeline(t, adapter, []string{
		`{"quick_mode": false}`,
		`{"goal": "find the user's things", "decision": "plan_direct", "steps": [{"description": "look up things", "step_type": "read", "subdomain": "things"}]}`,
		`{"action": "tool_call", "tool_call": {"tool": "db_read", "params": {"table": "things"}}}`,
		`{"action": "step_complete", "step_summary_text": "found the thing"}`,
		`{"response": "You have Widget."}`,
		`{"summary": "User asked about their things; assistant found Widget."}`,
	})

	in := pipeline.TurnInput{
		UserMessage:    "what do I own?",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModePlan},
		Today:          "2026-08-01",
	}

	out, err := p.RunTurn(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, "You have Widget.", out.Response)
	assert.Equal(t, 6, provider.calls)
	require.Len(t, out.Conversation.TurnSummaries, 1)
	require.Len(t, out.Conversation.TurnSummaries[0].Steps, 1)
	assert.Equal(t, "found the thing", out.Conversation.TurnSummaries[0].Steps[0].Outcome)
	assert.Equal(t, 1, adapter.ReadCallCount("things"))
}

func TestRunTurn_GenerateStepRegistersArtifactThenWritePromotesIt(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()

	p, provider := newTestPipeline(t, adapter, []string{
		`{"quick_mode": false}`,
		`{"goal": "create a new thing called Beta", "decision": "plan_direct", "steps": [
			{"description": "draft the new thing", "step_type": "generate", "subdomain": "things"},
			{"description": "save the new thing", "step_type": "write", "subdomain": "things"}
		]}`,
		`{"action": "step_complete", "step_summary_text": "drafted Beta", "generated_content": {"name": "Beta"}}`,
		`{"action": "tool_call", "tool_call": {"tool": "db_create", "params": {"table": "things", "records": [{"name": "Beta"}], "ref_hint": "gen_thing_1"}}}`,
		`{"action": "step_complete", "step_summary_text": "saved Beta"}`,
		`{"response": "Saved Beta as a new thing."}`,
		`{"summary": "User asked to create Beta; assistant saved it."}`,
	})

	in := pipeline.TurnInput{
		UserMessage:    "make me a new thing called Beta",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModePlan},
		Today:          "2026-08-01",
	}

	out, err := p.RunTurn(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Equal(t, "Saved Beta as a new thing.", out.Response)
	assert.Equal(t, 7, provider.calls)

	reg := out.Conversation.IDRegistry
	require.Contains(t, reg.RefToUUID, "gen_thing_1")
	assert.Equal(t, types.ActionCreated, reg.RefActions["gen_thing_1"])
	assert.Empty(t, reg.PendingArtifacts["gen_thing_1"])

	insertCount := 0
	for _, c := range adapter.Calls {
		if c.Table == "things" && c.Op == "insert" {
			insertCount++
		}
	}
	assert.Equal(t, 1, insertCount)
}

func TestRunTurn_ActionMismatchWarnsWhenWriteNeverPlanned(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things", map[string]any{"id": "thing-uuid-0001-0000-0000-000000000000", "name": "Alpha", "owner_id": "owner-1"})

	p, provider := newTestPipeline(t, adapter, []string{
		`{"quick_mode": false, "requested_action": "write"}`,
		`{"goal": "rename Alpha to Gamma", "decision": "plan_direct", "steps": [{"description": "find Alpha", "step_type": "read", "subdomain": "things"}]}`,
		`{"action": "tool_call", "tool_call": {"tool": "db_read", "params": {"table": "things", "filters": [{"field": "name", "op": "=", "value": "Alpha"}]}}}`,
		`{"action": "step_complete", "step_summary_text": "found Alpha"}`,
		`{"response": "I found Alpha."}`,
		`{"summary": "User asked to rename Alpha; only a lookup ran."}`,
	})

	in := pipeline.TurnInput{
		UserMessage:    "update Alpha to be named Gamma",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModePlan},
		Today:          "2026-08-01",
	}

	out, err := p.RunTurn(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Response, "I found Alpha.")
	assert.Contains(t, out.Response, "wasn't able to make the change")
	assert.Equal(t, 6, provider.calls)

	writeCount := 0
	for _, c := range adapter.Calls {
		if c.Op == "insert" || c.Op == "update" || c.Op == "delete" {
			writeCount++
		}
	}
	assert.Equal(t, 0, writeCount)
}

func TestRunTurn_UnsafeDeleteSurfacesAsBlocked(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things", map[string]any{"id": "thing-uuid-0001-0000-0000-000000000000", "name": "Widget", "owner_id": "owner-1"})

	p, provider := newTestPipeline(t, adapter, []string{
		`{"quick_mode": false}`,
		`{"goal": "delete the user's things", "decision": "plan_direct", "steps": [{"description": "delete everything", "step_type": "write", "subdomain": "things"}]}`,
		`{"action": "tool_call", "tool_call": {"tool": "db_delete", "params": {"table": "things", "filters": []}}}`,
		`{"response": "Done."}`,
		`{"summary": "User asked to delete everything; request was blocked as unsafe."}`,
	})

	in := pipeline.TurnInput{
		UserMessage:    "delete everything",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModePlan},
		Today:          "2026-08-01",
	}

	out, err := p.RunTurn(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Response, "narrow it down")
	assert.Equal(t, 5, provider.calls)

	deleteCount := 0
	for _, c := range adapter.Calls {
		if c.Table == "things" && c.Op == "delete" {
			deleteCount++
		}
	}
	assert.Equal(t, 0, deleteCount)
}

package llmboundary_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Generate(ctx context.Context, model string, messages []llmboundary.Message) (llmboundary.Response, error) {
	resp := p.responses[p.calls]
	p.calls++
	return llmboundary.Response{Text: resp, InputTokens: 10, OutputTokens: 5}, nil
}

func TestCallLLM_DecodesFirstTryOnValidJSON(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"goal": "find things", "steps": [], "decision": "plan_direct"}`,
	}}
	b := llmboundary.NewBoundary(p)

	var out types.ThinkOutput
	err := b.CallLLM(context.Background(), "think", "system", "user", llmboundary.ComplexityMedium, &out)
	require.NoError(t, err)
	assert.Equal(t, "find things", out.Goal)
	assert.Equal(t, types.DecisionPlanDirect, out.Decision)
	assert.Equal(t, 1, p.calls)
}

func TestCallLLM_RetriesOnMalformedJSONThenSucceeds(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"not json at all",
		`{"goal": "retry worked", "steps": [], "decision": "propose", "proposal_message": "ok?"}`,
	}}
	b := llmboundary.NewBoundary(p)

	var out types.ThinkOutput
	err := b.CallLLM(context.Background(), "think", "system", "user", llmboundary.ComplexityHigh, &out)
	require.NoError(t, err)
	assert.Equal(t, "retry worked", out.Goal)
	assert.Equal(t, 2, p.calls)
}

func TestCallLLM_FailsAfterExhaustingRetries(t *testing.T) {
	p := &scriptedProvider{responses: []string{"nope", "still nope", "nope again"}}
	b := llmboundary.NewBoundary(p)
	b.MaxRetries = 2

	var out types.ThinkOutput
	err := b.CallLLM(context.Background(), "think", "system", "user", llmboundary.ComplexityLow, &out)
	require.Error(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestCallLLM_DecodesActDecisionToolCall(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"action": "tool_call", "tool_call": {"tool": "db_read", "params": {"table": "things"}}}`,
	}}
	b := llmboundary.NewBoundary(p)

	var out types.ActDecision
	err := b.CallLLM(context.Background(), "act", "system", "user", llmboundary.ComplexityMedium, &out)
	require.NoError(t, err)
	assert.Equal(t, types.ActToolCall, out.Action)
	require.NotNil(t, out.ToolCall)
	assert.Equal(t, types.ToolDBRead, out.ToolCall.Tool)
}

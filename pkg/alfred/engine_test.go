package alfred_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfredagain-sub002/pkg/alfred"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

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

func TestEngine_Run(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things", map[string]any{"id": "thing-uuid-0001-0000-0000-000000000000", "name": "Widget", "owner_id": "owner-1"})

	d := testsupport.NewStubDomain(adapter)
	provider := &scriptedProvider{responses: []string{
		`{"quick_mode": true, "quick_intent": "list my things", "quick_subdomain": "things"}`,
		`{"action": "tool_call", "tool_call": {"tool": "db_read", "params": {"table": "things"}}}`,
		`{"response": "You have one thing: Widget."}`,
		`{"summary": "User asked what things they have; assistant listed Widget."}`,
	}}
	boundary := llmboundary.NewBoundary(provider)
	engine, err := alfred.New(d, boundary, "gpt-4")
	require.NoError(t, err)

	out, err := engine.Run(context.Background(), alfred.RunInput{
		UserMessage:    "what things do I have?",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModeQuick},
		Today:          "2026-08-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "You have one thing: Widget.", out.Response)
	require.Len(t, out.Conversation.RecentTurns, 1)
}

func TestEngine_RunStreaming(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things", map[string]any{"id": "thing-uuid-0001-0000-0000-000000000000", "name": "Widget", "owner_id": "owner-1"})

	d := testsupport.NewStubDomain(adapter)
	provider := &scriptedProvider{responses: []string{
		`{"quick_mode": true, "quick_intent": "list my things", "quick_subdomain": "things"}`,
		`{"action": "tool_call", "tool_call": {"tool": "db_read", "params": {"table": "things"}}}`,
		`{"response": "You have one thing: Widget."}`,
		`{"summary": "User asked what things they have; assistant listed Widget."}`,
	}}
	boundary := llmboundary.NewBoundary(provider)
	engine, err := alfred.New(d, boundary, "gpt-4")
	require.NoError(t, err)

	events, errCh := engine.RunStreaming(context.Background(), alfred.RunInput{
		UserMessage:    "what things do I have?",
		UserID:         "owner-1",
		ConversationID: "conv-1",
		Mode:           types.ModeContext{SelectedMode: types.ModeQuick},
		Today:          "2026-08-01",
	})

	var last types.Event
	var seenDone bool
	for ev := range events {
		last = ev
		if ev.Type == types.EventDone {
			seenDone = true
		}
	}
	require.NoError(t, <-errCh)
	assert.True(t, seenDone)
	assert.Equal(t, types.EventContextUpdated, last.Type)
}

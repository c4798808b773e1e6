package prompt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alfredcontext "github.com/jv92admin/alfredagain-sub002/pkg/context"
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/prompt"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

func TestBuildThinkPrompt_FallsThroughToTemplate(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	asm := prompt.NewAssembler(d)

	out, err := asm.BuildThinkPrompt(domain.PromptArgs{UserID: "u1"}, "<entity_context></entity_context>")
	require.NoError(t, err)
	assert.Contains(t, out, "planning the steps")
	assert.Contains(t, out, "<entity_context>")
}

type fullReplacementDomain struct {
	*testsupport.StubDomain
	full string
}

func (d *fullReplacementDomain) GetNodePromptContent(node string, args domain.PromptArgs) string {
	if node == prompt.NodeThink {
		return d.full
	}
	return ""
}

func TestBuildThinkPrompt_DomainFullReplacementWins(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	d := &fullReplacementDomain{StubDomain: testsupport.NewStubDomain(adapter), full: "entirely custom think prompt"}
	asm := prompt.NewAssembler(d)

	out, err := asm.BuildThinkPrompt(domain.PromptArgs{}, "ignored context")
	require.NoError(t, err)
	assert.Equal(t, "entirely custom think prompt", out)
}

func TestBuildActSystemPrompt_LayersByStepType(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	asm := prompt.NewAssembler(d)

	read := asm.BuildActSystemPrompt(types.StepRead, domain.PromptArgs{})
	assert.Contains(t, read, "db_read")
	assert.Contains(t, read, "read step")

	analyze := asm.BuildActSystemPrompt(types.StepAnalyze, domain.PromptArgs{})
	assert.NotContains(t, analyze, "db_read")
	assert.Contains(t, analyze, "analyze step")
}

func TestBuildActUserPrompt_IncludesOrderedSections(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	adapter.Seed("things", map[string]any{"id": "thing-uuid-1", "name": "Alpha", "owner_id": "owner-uuid-1"})
	d := testsupport.NewStubDomain(adapter)
	reg := registry.New("sess-1", d)
	reg.BeginTurn()
	reg.RegisterRead("thing-uuid-1", "thing", map[string]any{"name": "Alpha"}, 0)

	asm := prompt.NewAssembler(d)
	ca := alfredcontext.NewAssembler(d, nil)

	in := prompt.ActPromptInput{
		Step:        types.ThinkStep{Description: "list the user's things", StepType: types.StepRead, Subdomain: "things"},
		StepIndex:   0,
		TotalSteps:  1,
		Goal:        "answer what things the user has",
		Today:       "2026-07-31",
		UserRequest: "list my things",
	}
	out := asm.BuildActUserPrompt(context.Background(), ca, types.PipelineState{}, types.ConversationContext{}, reg, in)

	assert.Contains(t, out, "## Subdomain: things")
	assert.Contains(t, out, "## STATUS")
	assert.Contains(t, out, "## Task")
	assert.Contains(t, out, "## Context")
	assert.Contains(t, out, "## Decision")
	assert.Contains(t, out, "thing_1")
}

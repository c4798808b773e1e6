package pipeline

import (
	"context"
	"fmt"

	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// runUnderstand is the memory-manager node (spec §4.6.2): one LLM call
// producing UnderstandOutput. Curation is applied by the caller
// immediately after this returns ("applied immediately to the
// registry; Summarize only records it").
func (p *Pipeline) runUnderstand(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, conv types.ConversationContext, today string) (*types.UnderstandOutput, error) {
	args := domain.PromptArgs{UserID: ps.UserID, ConversationID: ps.ConversationID, CurrentTurn: ps.CurrentTurn, Mode: ps.ModeContext.SelectedMode}
	contextBlock := p.Context.BuildUnderstandContext(*ps, reg, today)

	userPrompt, err := p.Prompt.BuildUnderstandPrompt(args, contextBlock)
	if err != nil {
		return nil, err
	}
	systemPrompt := p.Domain.GetSystemPrompt()

	var out types.UnderstandOutput
	if err := p.LLM.CallLLM(ctx, prompt_understand, systemPrompt, userPrompt, llmboundary.ComplexityLow, &out); err != nil {
		return nil, fmt.Errorf("understand: %w", err)
	}
	return &out, nil
}

const prompt_understand = "understand"

// applyCuration implements Understand's "curation is applied
// immediately" rule (spec §4.6.2): retain_active refreshes the active
// reason, demote/drop remove the entry from active tracking, and
// clear_all wipes every active reason in one pass.
func applyCuration(reg *registry.Registry, entries []types.EntityCurationEntry) {
	for _, e := range entries {
		switch e.Action {
		case "retain_active":
			reg.SetActiveReason(e.Ref, e.Reason)
		case "demote", "drop":
			reg.ClearActiveReason(e.Ref)
		case "clear_all":
			for _, ref := range reg.AllRefs() {
				reg.ClearActiveReason(ref)
			}
		}
	}
}

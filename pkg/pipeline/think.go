package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// runThink is the planner node (spec §4.6.2): one LLM call producing
// ThinkOutput, followed by the validator that enforces mode-specific
// step caps and rewrites an empty-steps plan_direct into propose.
func (p *Pipeline) runThink(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, conv types.ConversationContext, today string, cfg types.ModeConfig) (*types.ThinkOutput, error) {
	args := domain.PromptArgs{UserID: ps.UserID, ConversationID: ps.ConversationID, CurrentTurn: ps.CurrentTurn, Mode: ps.ModeContext.SelectedMode}
	contextBlock := p.Context.BuildThinkContext(ctx, *ps, conv, reg, today)

	userPrompt, err := p.Prompt.BuildThinkPrompt(args, contextBlock)
	if err != nil {
		return nil, err
	}
	systemPrompt := p.Domain.GetSystemPrompt()

	var out types.ThinkOutput
	if err := p.LLM.CallLLM(ctx, "think", systemPrompt, userPrompt, llmboundary.ComplexityMedium, &out); err != nil {
		return nil, fmt.Errorf("think: %w", err)
	}

	validateThinkOutput(&out, cfg)
	return &out, nil
}

// validateThinkOutput enforces spec §4.6.2's Think contract: a
// plan_direct decision with no steps is not a plan, so it is rewritten
// to propose (falling back to clarify if the model also left the
// proposal message empty); steps are then stably ordered by increasing
// Group, and mode-specific step caps are applied by truncation, since a
// plan that overruns its mode's budget is still executable, just not in
// full.
func validateThinkOutput(out *types.ThinkOutput, cfg types.ModeConfig) {
	if out.Decision == types.DecisionPlanDirect && len(out.Steps) == 0 {
		if out.ProposalMessage != "" {
			out.Decision = types.DecisionPropose
		} else {
			out.Decision = types.DecisionClarify
			if len(out.ClarificationQuestions) == 0 {
				out.ClarificationQuestions = []string{"Could you clarify what you'd like me to do?"}
			}
		}
		return
	}

	if out.Decision != types.DecisionPlanDirect {
		return
	}

	sort.SliceStable(out.Steps, func(i, j int) bool { return out.Steps[i].Group < out.Steps[j].Group })

	maxSteps := cfg.MaxSteps
	if maxSteps > 0 && len(out.Steps) > maxSteps {
		out.Steps = out.Steps[:maxSteps]
	}

	if cfg.ProposalRequired {
		out.Decision = types.DecisionPropose
		if out.ProposalMessage == "" {
			out.ProposalMessage = fmt.Sprintf("Here's what I'm planning to do: %s. Shall I proceed?", out.Goal)
		}
	}
}

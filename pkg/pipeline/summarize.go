package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/logger"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

type summaryOutput struct {
	Summary string `json:"summary" mapstructure:"summary" jsonschema:"required"`
}

// runSummarize builds this turn's TurnExecutionSummary, folds overflow
// history/reasoning into their running summaries, and records the
// compressed engagement summary (spec §4.6.2, Summarize). reg.
// ClearTurnPromotedArtifacts is the caller's responsibility, strictly
// after this returns.
func (p *Pipeline) runSummarize(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, conv types.ConversationContext, understandOut *types.UnderstandOutput, turn int, result nodeResult) types.ConversationContext {
	summary := buildTurnExecutionSummary(ps, understandOut, turn, result)
	conv.TurnSummaries = append(conv.TurnSummaries, summary)
	conv.RecentTurns = append(conv.RecentTurns, types.Turn{TurnNum: turn, UserMessage: ps.UserMessage, Response: ps.FinalResponse})

	if conv.TurnStepResults == nil {
		conv.TurnStepResults = map[int]map[int]types.StepResult{}
	}
	conv.TurnStepResults[turn] = ps.StepResults

	if len(conv.RecentTurns) > contextFullDetailTurns {
		overflow := conv.RecentTurns[:len(conv.RecentTurns)-contextFullDetailTurns]
		conv.RecentTurns = conv.RecentTurns[len(conv.RecentTurns)-contextFullDetailTurns:]
		conv.HistorySummary = p.foldText(ctx, "summarize_history", conv.HistorySummary, renderTurnsForFolding(overflow))
	}

	if len(conv.TurnSummaries) > contextKeptTurnSummaries {
		overflow := conv.TurnSummaries[:len(conv.TurnSummaries)-contextKeptTurnSummaries]
		conv.TurnSummaries = conv.TurnSummaries[len(conv.TurnSummaries)-contextKeptTurnSummaries:]
		conv.ReasoningSummary = p.foldText(ctx, "summarize_reasoning", conv.ReasoningSummary, renderSummariesForFolding(overflow))
	}

	conv.EngagementSummary = p.foldText(ctx, "summarize_engagement", conv.EngagementSummary, fmt.Sprintf("User: %s\nAssistant: %s", ps.UserMessage, ps.FinalResponse))

	if conv.PendingClarification != nil && result.kind != resultClarify {
		conv.PendingClarification = nil
	}
	if result.kind == resultClarify {
		conv.PendingClarification = &types.PendingClarification{Question: formatQuestions(result.questions), Turn: turn}
	}

	return conv
}

const (
	contextFullDetailTurns   = 3
	contextKeptTurnSummaries = 2
)

func buildTurnExecutionSummary(ps *types.PipelineState, understandOut *types.UnderstandOutput, turn int, result nodeResult) types.TurnExecutionSummary {
	summary := types.TurnExecutionSummary{
		TurnNum:       turn,
		UserExpressed: ps.UserMessage,
	}
	if understandOut != nil {
		summary.EntityCuration = understandOut.EntityCuration
	}
	if ps.ThinkOutput != nil {
		summary.ThinkDecision = string(ps.ThinkOutput.Decision)
		summary.ThinkGoal = ps.ThinkOutput.Goal
	}
	for i := 0; i < len(ps.StepResults); i++ {
		r, ok := ps.StepResults[i]
		if !ok {
			continue
		}
		summary.Steps = append(summary.Steps, types.StepSummary{
			StepIndex:   r.StepIndex,
			Description: stepDescription(ps, i),
			StepType:    r.StepType,
			Outcome:     r.Summary,
		})
	}
	summary.ConversationPhase = classifyPhase(result)
	if result.kind == resultBlocked {
		summary.BlockedReason = result.reasonCode
	}
	return summary
}

func stepDescription(ps *types.PipelineState, index int) string {
	if ps.ThinkOutput == nil || index >= len(ps.ThinkOutput.Steps) {
		return ""
	}
	return ps.ThinkOutput.Steps[index].Description
}

func classifyPhase(result nodeResult) types.ConversationPhase {
	switch result.kind {
	case resultClarify:
		return types.PhaseNarrowing
	case resultPropose:
		return types.PhaseConfirming
	case resultAskUser:
		return types.PhaseNarrowing
	default:
		return types.PhaseExecuting
	}
}

// foldText compresses existing+addition into a running summary under
// ~100 words via a cheap LLM call, falling back to simple
// concatenation if the call fails so a transient LLM error never loses
// history outright.
func (p *Pipeline) foldText(ctx context.Context, node, existing, addition string) string {
	if strings.TrimSpace(addition) == "" {
		return existing
	}
	systemPrompt := "You compress conversational history into a running summary."
	userPrompt := fmt.Sprintf("Existing summary:\n%s\n\nNew material to fold in:\n%s\n\nRewrite the summary to include the new material, staying under 100 words.", existing, addition)

	var out summaryOutput
	if err := p.LLM.CallLLM(ctx, node, systemPrompt, userPrompt, llmboundary.ComplexityLow, &out); err != nil {
		logger.For(ctx).Error("pipeline: folding summary", "node", node, "err", err)
		if existing == "" {
			return addition
		}
		return existing + " " + addition
	}
	return out.Summary
}

func renderTurnsForFolding(turns []types.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "Turn %d — User: %s Assistant: %s\n", t.TurnNum, t.UserMessage, t.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSummariesForFolding(summaries []types.TurnExecutionSummary) string {
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "Turn %d: %s (goal: %s)\n", s.TurnNum, s.ThinkDecision, s.ThinkGoal)
	}
	return strings.TrimRight(b.String(), "\n")
}

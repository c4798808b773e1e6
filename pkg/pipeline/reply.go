package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jv92admin/alfredagain-sub002/pkg/aerrors"
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/logger"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// replyOutput is Reply's structured LLM output for the normal-response
// path: a single natural-language field, kept separate from the node
// outputs in pkg/types since no other node consumes it.
type replyOutput struct {
	Response string `json:"response" mapstructure:"response" jsonschema:"required"`
}

// buildReply implements Reply's priority cascade (spec §4.6.2): the
// first applicable branch wins, everything after it is unreachable for
// this result. Quick mode additionally tries a domain formatter before
// falling back to the normal LLM response.
func (p *Pipeline) buildReply(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, conv types.ConversationContext, in TurnInput, result nodeResult) string {
	switch result.kind {
	case resultClarify:
		return formatQuestions(result.questions)

	case resultPropose:
		return result.message

	case resultError:
		logger.For(ctx).Error("pipeline: turn failed", "err", result.err)
		return "Something went wrong handling that — please try again."

	case resultAskUser:
		return result.question

	case resultFail:
		if result.failureReason != "" {
			return "I couldn't complete that: " + result.failureReason
		}
		return "I couldn't complete that."

	case resultBlocked:
		return p.composeBlockedReply(ctx, ps, reg, conv, in, result)
	}

	if ps.UnderstandOutput != nil && ps.UnderstandOutput.QuickMode {
		if resp, ok := p.tryQuickFormatter(ps, ps.UnderstandOutput.QuickSubdomain); ok {
			return applyActionMismatchNote(ctx, resp, ps)
		}
	}

	if len(ps.StepResults) == 0 {
		if empty := p.Domain.GetEmptyResponse(quickOrFirstSubdomain(ps)); empty != "" {
			return empty
		}
	}

	resp := p.composeNormalReply(ctx, ps, reg, conv, in)
	return applyActionMismatchNote(ctx, resp, ps)
}

func (p *Pipeline) tryQuickFormatter(ps *types.PipelineState, subdomain string) (string, bool) {
	formatter, ok := p.Domain.GetSubdomainFormatters()[subdomain]
	if !ok {
		return "", false
	}
	result, ok := ps.StepResults[0]
	if !ok {
		return "", false
	}
	return formatter(result.Data)
}

func (p *Pipeline) composeNormalReply(ctx context.Context, ps *types.PipelineState, reg *registry.Registry, conv types.ConversationContext, in TurnInput) string {
	args := domain.PromptArgs{UserID: ps.UserID, ConversationID: ps.ConversationID, CurrentTurn: ps.CurrentTurn, Mode: ps.ModeContext.SelectedMode}
	contextBlock := p.Context.BuildReplyContext(*ps, reg)
	userPrompt, err := p.Prompt.BuildReplyPrompt(args, contextBlock)
	if err != nil {
		logger.For(ctx).Error("pipeline: building reply prompt", "err", err)
		return "Done."
	}
	systemPrompt := p.Domain.GetSystemPrompt()

	var out replyOutput
	if err := p.LLM.CallLLM(ctx, "reply", systemPrompt, userPrompt, llmboundary.ComplexityLow, &out); err != nil {
		logger.For(ctx).Error("pipeline: reply LLM call", "err", err)
		return "Done."
	}
	return out.Response
}

func (p *Pipeline) composeBlockedReply(ctx context.Context, ps *types.PipelineState, reg *registry.Registry, conv types.ConversationContext, in TurnInput, result nodeResult) string {
	resp := p.composeNormalReply(ctx, ps, reg, conv, in)
	if resp == "Done." && result.details != "" {
		return result.details
	}
	return resp
}

// applyActionMismatchNote flags a write the user asked for that never
// ran (spec §4.6.2, "Reply must flag action mismatch"; spec §8 S6):
// Understand tags what the user's message asked for independent of how
// Think ends up planning the turn, so this catches both a planned write
// step whose tool call never executed and a write request that Think
// never planned a write step for at all.
func applyActionMismatchNote(ctx context.Context, resp string, ps *types.PipelineState) string {
	mismatch := detectActionMismatch(ps)
	if mismatch == nil {
		return resp
	}
	logger.For(ctx).Warn("pipeline: action mismatch", "err", mismatch)
	return resp + "\n\n(Note: I wasn't able to make the change — only looked up information. Can you confirm you'd like me to go ahead with it?)"
}

func detectActionMismatch(ps *types.PipelineState) *aerrors.ActionMismatchError {
	if ps.UnderstandOutput == nil || ps.UnderstandOutput.RequestedAction != "write" {
		return nil
	}
	executed := executedVerbs(ps)
	for _, v := range executed {
		if v == "write" {
			return nil
		}
	}
	return &aerrors.ActionMismatchError{Requested: "write", Executed: executed}
}

func executedVerbs(ps *types.PipelineState) []string {
	seen := map[string]bool{}
	var verbs []string
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			verbs = append(verbs, v)
		}
	}
	for _, r := range ps.StepResults {
		for _, tc := range r.ToolCalls {
			switch tc.Tool {
			case types.ToolDBCreate, types.ToolDBUpdate, types.ToolDBDelete:
				add("write")
			case types.ToolDBRead:
				add("read")
			}
		}
	}
	return verbs
}

func quickOrFirstSubdomain(ps *types.PipelineState) string {
	if ps.UnderstandOutput != nil && ps.UnderstandOutput.QuickSubdomain != "" {
		return ps.UnderstandOutput.QuickSubdomain
	}
	if ps.ThinkOutput != nil && len(ps.ThinkOutput.Steps) > 0 {
		return ps.ThinkOutput.Steps[0].Subdomain
	}
	return ""
}

func formatQuestions(questions []string) string {
	if len(questions) == 0 {
		return "Could you clarify what you'd like me to do?"
	}
	if len(questions) == 1 {
		return questions[0]
	}
	var b strings.Builder
	b.WriteString("A couple of things to clarify:\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}

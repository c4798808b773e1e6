package context

import (
	"fmt"
	"strings"

	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// FullDetailTurns is the number of most-recent conversation turns kept
// at full text before older ones are folded into HistorySummary
// (spec §4.4). Folding itself is Summarize's job (it needs an LLM
// call); this package only ever renders what ConversationContext
// already holds, defensively re-capping to this window.
const FullDetailTurns = 3

// KeptTurnSummaries is the number of most-recent TurnExecutionSummary
// entries rendered in full; older ones are represented only by
// ReasoningSummary (spec §4.4).
const KeptTurnSummaries = 2

// RenderConversationHistory formats the recent-turns-plus-summary block
// (spec §4.4 <conversation_history>).
func RenderConversationHistory(conv types.ConversationContext) string {
	turns := conv.RecentTurns
	if len(turns) > FullDetailTurns {
		turns = turns[len(turns)-FullDetailTurns:]
	}

	var b strings.Builder
	if conv.HistorySummary != "" {
		b.WriteString("Earlier in the conversation: " + conv.HistorySummary + "\n")
	}
	for _, t := range turns {
		fmt.Fprintf(&b, "Turn %d — User: %s\nTurn %d — Assistant: %s\n", t.TurnNum, t.UserMessage, t.TurnNum, t.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderTurnNarrative formats the reasoning-trace block (spec §4.4
// <turn_narrative>): the last KeptTurnSummaries TurnExecutionSummary
// entries in full, with ReasoningSummary standing in for everything
// older.
func RenderTurnNarrative(conv types.ConversationContext) string {
	summaries := conv.TurnSummaries
	if len(summaries) > KeptTurnSummaries {
		summaries = summaries[len(summaries)-KeptTurnSummaries:]
	}

	var b strings.Builder
	if conv.ReasoningSummary != "" {
		b.WriteString(conv.ReasoningSummary + "\n")
	}
	for _, s := range summaries {
		fmt.Fprintf(&b, "Turn %d: decision=%s, goal=%q", s.TurnNum, s.ThinkDecision, s.ThinkGoal)
		if len(s.Steps) > 0 {
			parts := make([]string, len(s.Steps))
			for i, step := range s.Steps {
				parts[i] = fmt.Sprintf("%s(%s): %s", step.StepType, step.Description, step.Outcome)
			}
			fmt.Fprintf(&b, ", steps=[%s]", strings.Join(parts, "; "))
		}
		if len(s.EntityCuration) > 0 {
			curations := make([]string, len(s.EntityCuration))
			for i, c := range s.EntityCuration {
				curations[i] = fmt.Sprintf("%s:%s", c.Ref, c.Action)
			}
			fmt.Fprintf(&b, ", curation=[%s]", strings.Join(curations, ", "))
		}
		if s.BlockedReason != "" {
			fmt.Fprintf(&b, ", blocked=%s", s.BlockedReason)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderStepResultsSummary formats the "previous-turn results" slice of
// Act's Data section (spec §4.5, user-prompt section 11): the last 2
// steps' results, summarized, from the current turn's own step
// history.
func RenderStepResultsSummary(results map[int]types.StepResult, lastN int) string {
	if lastN <= 0 {
		lastN = 2
	}
	indices := make([]int, 0, len(results))
	for i := range results {
		indices = append(indices, i)
	}
	sortInts(indices)
	if len(indices) > lastN {
		indices = indices[len(indices)-lastN:]
	}

	var b strings.Builder
	for _, i := range indices {
		r := results[i]
		summary := r.Summary
		if summary == "" {
			summary = fmt.Sprintf("%d row(s)", len(r.Data))
		}
		fmt.Fprintf(&b, "Step %d (%s): %s\n", r.StepIndex, r.StepType, summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] < xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/tokenbudget"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// Token budgets for the condensed (Think/Router) and full (Act) context
// renderings (spec §4.4).
const (
	ThinkBudgetTokens = 8000
	ActBudgetTokens   = 25000

	// SubdomainGuidanceMaxChars caps domain.GetSubdomainGuidance output
	// before it is injected into any prompt (spec §4.4).
	SubdomainGuidanceMaxChars = 800
)

// Assembler builds the per-node context blocks from a registry,
// conversation context, and pipeline state (spec §4.4). It holds no
// per-turn state itself — callers construct one per engine and reuse it
// across turns.
type Assembler struct {
	Domain  domain.Domain
	Counter *tokenbudget.Counter
}

// NewAssembler returns an Assembler backed by d and counter. counter
// may be nil, in which case budget fitting is skipped and every section
// is rendered in full (useful in tests that don't care about token
// limits).
func NewAssembler(d domain.Domain, counter *tokenbudget.Counter) *Assembler {
	return &Assembler{Domain: d, Counter: counter}
}

func (a *Assembler) fit(sections []tokenbudget.Section, maxTokens int) []tokenbudget.Section {
	if a.Counter == nil {
		return sections
	}
	return a.Counter.FitSections(sections, maxTokens)
}

func keptMap(kept []tokenbudget.Section) map[string]string {
	m := make(map[string]string, len(kept))
	for _, s := range kept {
		m[s.Name] = s.Text
	}
	return m
}

// RenderSessionContext formats the <session_context> block: the
// domain's user profile plus its domain snapshot (spec §4.4).
func (a *Assembler) RenderSessionContext(ctx context.Context, userID string) string {
	if a.Domain == nil {
		return ""
	}
	profile := a.Domain.GetUserProfile(ctx, userID)
	snapshot := a.Domain.GetDomainSnapshot(ctx, userID)
	var parts []string
	if profile != "" {
		parts = append(parts, profile)
	}
	if snapshot != "" {
		parts = append(parts, snapshot)
	}
	return strings.Join(parts, "\n")
}

// RenderImmediateTask formats the <immediate_task> block: the current
// user message, today's date, and the resolved mode (spec §4.4). The
// caller supplies today since this package must stay pure (no
// wall-clock reads, spec §5's no-suspension-point guarantee for
// anything the registry/translation layer touches extends here too).
func RenderImmediateTask(userMessage string, today string, mode types.Mode) string {
	return fmt.Sprintf("User: %s\nDate: %s\nMode: %s", userMessage, today, mode)
}

// CappedSubdomainGuidance returns the domain's guidance for subdomain,
// truncated to SubdomainGuidanceMaxChars (spec §4.4).
func (a *Assembler) CappedSubdomainGuidance(subdomain string) string {
	if a.Domain == nil {
		return ""
	}
	g := a.Domain.GetSubdomainGuidance(subdomain)
	if len(g) > SubdomainGuidanceMaxChars {
		return g[:SubdomainGuidanceMaxChars]
	}
	return g
}

// BuildThinkContext assembles the full abstract Think context (spec
// §4.4): session_context, entity_context, turn_narrative,
// conversation_history, immediate_task, fit within ThinkBudgetTokens
// with priority engagement > entities > recent turns > history summary
// (dropped tail-first). The engagement summary is rendered at the top of
// the session_context block.
func (a *Assembler) BuildThinkContext(ctx context.Context, ps types.PipelineState, conv types.ConversationContext, reg *registry.Registry, today string) string {
	sections := []tokenbudget.Section{
		{Name: "engagement", Text: conv.EngagementSummary, Priority: 0},
		{Name: "session_context", Text: a.RenderSessionContext(ctx, ps.UserID), Priority: 0},
		{Name: "entity_context", Text: RenderEntityContext(reg, a.Domain, DefaultTurnsWindow), Priority: 1},
		{Name: "turn_narrative", Text: RenderTurnNarrative(conv), Priority: 2},
		{Name: "conversation_recent", Text: RenderConversationHistory(conv), Priority: 2},
		{Name: "history_summary", Text: conv.HistorySummary, Priority: 3},
	}
	nonEmpty := sections[:0]
	for _, s := range sections {
		if strings.TrimSpace(s.Text) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	kept := keptMap(a.fit(nonEmpty, ThinkBudgetTokens))

	var b strings.Builder
	var sessionParts []string
	if t, ok := kept["engagement"]; ok {
		sessionParts = append(sessionParts, "Engagement: "+t)
	}
	if t, ok := kept["session_context"]; ok {
		sessionParts = append(sessionParts, t)
	}
	if len(sessionParts) > 0 {
		fmt.Fprintf(&b, "<session_context>\n%s\n</session_context>\n", strings.Join(sessionParts, "\n"))
	}
	if t, ok := kept["entity_context"]; ok {
		fmt.Fprintf(&b, "<entity_context>\n%s\n</entity_context>\n", t)
	}
	if t, ok := kept["turn_narrative"]; ok {
		fmt.Fprintf(&b, "<turn_narrative>\n%s\n</turn_narrative>\n", t)
	}
	var convParts []string
	if t, ok := kept["conversation_recent"]; ok {
		convParts = append(convParts, t)
	}
	if t, ok := kept["history_summary"]; ok {
		convParts = append(convParts, "Earlier: "+t)
	}
	if len(convParts) > 0 {
		fmt.Fprintf(&b, "<conversation_history>\n%s\n</conversation_history>\n", strings.Join(convParts, "\n\n"))
	}
	fmt.Fprintf(&b, "<immediate_task>\n%s\n</immediate_task>", RenderImmediateTask(ps.UserMessage, today, ps.ModeContext.SelectedMode))
	return b.String()
}

// BuildUnderstandContext assembles the (lighter) context Understand
// needs to curate the registry and decide on quick-mode routing: the
// entity context (so it can see what's already registered to retain,
// demote, or drop) plus the immediate task. Understand does not need
// the full reasoning narrative — it runs before Think and only curates
// state, it doesn't plan against it.
func (a *Assembler) BuildUnderstandContext(ps types.PipelineState, reg *registry.Registry, today string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<entity_context>\n%s\n</entity_context>\n", RenderEntityContext(reg, a.Domain, DefaultTurnsWindow))
	fmt.Fprintf(&b, "<immediate_task>\n%s\n</immediate_task>", RenderImmediateTask(ps.UserMessage, today, ps.ModeContext.SelectedMode))
	return b.String()
}

// BuildActContext assembles the full-budget context for one Act
// iteration: Act's 5-section entity rendering, the current step's
// previous-result summary, and the conversation history, fit within
// ActBudgetTokens. This produces section 12 ("Entity context"), the
// "previous-turn results" half of section 11, and the conversation
// history of section 14 of Act's 15-section prompt (spec §4.5); the
// remaining sections are prompt-assembly's
// responsibility (schema, status table, artifacts JSON, and so on).
func (a *Assembler) BuildActContext(ps types.PipelineState, conv types.ConversationContext, reg *registry.Registry) string {
	sections := []tokenbudget.Section{
		{Name: "entity_context", Text: RenderActEntityContext(reg, a.Domain, DefaultTurnsWindow), Priority: 0},
		{Name: "step_results", Text: RenderStepResultsSummary(ps.StepResults, 2), Priority: 1},
		{Name: "conversation", Text: RenderConversationHistory(conv), Priority: 2},
	}
	nonEmpty := sections[:0]
	for _, s := range sections {
		if strings.TrimSpace(s.Text) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	kept := keptMap(a.fit(nonEmpty, ActBudgetTokens))

	var b strings.Builder
	if t, ok := kept["entity_context"]; ok {
		fmt.Fprintf(&b, "Entities:\n%s\n\n", t)
	}
	if t, ok := kept["step_results"]; ok {
		fmt.Fprintf(&b, "Previous steps this turn:\n%s\n\n", t)
	}
	if t, ok := kept["conversation"]; ok {
		fmt.Fprintf(&b, "Conversation:\n%s", t)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildReplyContext assembles the context Reply needs to narrate the
// turn's outcome: the entity context (for "you did X" phrasing against
// current labels) and the step results recorded this turn.
func (a *Assembler) BuildReplyContext(ps types.PipelineState, reg *registry.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entities:\n%s\n\n", RenderEntityContext(reg, a.Domain, DefaultTurnsWindow))
	fmt.Fprintf(&b, "Steps this turn:\n%s", RenderStepResultsSummary(ps.StepResults, len(ps.StepResults)))
	return strings.TrimRight(b.String(), "\n")
}

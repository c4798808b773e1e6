package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	alfredcontext "github.com/jv92admin/alfredagain-sub002/pkg/context"
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

const actSystemBase = `You are executing one step of a plan against the database, one tool call at a time.

Every iteration you must emit exactly one decision: tool_call, step_complete, request_schema, retrieve_step, retrieve_archive, ask_user, blocked, or fail. Never advance past the current step yourself — only step_complete does that, and the pipeline, not you, advances the step index.`

const actSystemCRUD = `You have four tools: db_read, db_create, db_update, db_delete. Filters compose with implicit AND; use or_filters for OR. Never fabricate a row id — ids you haven't seen are refs from the entity context, never raw UUIDs.`

var actSystemByStepType = map[types.StepType]string{
	types.StepRead:     `This is a read step. Issue db_read calls until you have what the step needs, then step_complete.`,
	types.StepWrite:     `This is a write step. step_complete is forbidden while any batch item is still pending creation.`,
	types.StepAnalyze:   `This is an analyze step. No tool calls are available; reason over the data already gathered and step_complete with your conclusion.`,
	types.StepGenerate:  `This is a generate step. Produce new content; it will be registered as a pending artifact, not written to the database yet.`,
}

// BuildActSystemPrompt layers Act's system prompt: base -> crud
// (read/write steps only) -> {step_type} -> domain injection, joined by
// "\n\n---\n\n" (spec §4.5).
func (a *Assembler) BuildActSystemPrompt(stepType types.StepType, args domain.PromptArgs) string {
	layers := []string{actSystemBase}
	if stepType == types.StepRead || stepType == types.StepWrite {
		layers = append(layers, actSystemCRUD)
	}
	if s, ok := actSystemByStepType[stepType]; ok {
		layers = append(layers, s)
	}
	if inj := a.injection(NodeAct, args); inj != "" {
		layers = append(layers, inj)
	}
	return strings.Join(layers, "\n\n---\n\n")
}

// ActPromptInput bundles everything the 15-section Act user prompt
// needs beyond what the registry/conversation context already carry
// (spec §4.5).
type ActPromptInput struct {
	Step       types.ThinkStep
	StepIndex  int
	TotalSteps int
	Goal       string
	Today      string
	UserRequest string

	PrevStepNote  string
	UserID        string
	BatchManifest []map[string]any

	// CurrentStepToolResults is this step's own tool-call output so far
	// this iteration (part of section 11, "Data").
	CurrentStepToolResults []map[string]any

	// GeneratedArtifacts is the full content of every gen_* ref relevant
	// to this step (section 13, write/generate/analyze only).
	GeneratedArtifacts map[string]map[string]any
}

func isReadOrWrite(st types.StepType) bool { return st == types.StepRead || st == types.StepWrite }
func isAnalyzeOrGenerate(st types.StepType) bool {
	return st == types.StepAnalyze || st == types.StepGenerate
}

// BuildActUserPrompt assembles Act's 15 ordered sections (spec §4.5).
// Several are conditional on step type; ca supplies the entity/
// conversation rendering (pkg/context), d the domain schema/guidance
// hooks.
func (a *Assembler) BuildActUserPrompt(ctx context.Context, ca *alfredcontext.Assembler, ps types.PipelineState, conv types.ConversationContext, reg *registry.Registry, in ActPromptInput) string {
	var sections []string

	// 1. Subdomain header.
	sections = append(sections, fmt.Sprintf("## Subdomain: %s", in.Step.Subdomain))

	// 2. Schema (read/write/generate).
	if in.Step.StepType != types.StepAnalyze {
		if s := a.renderSchema(in.Step); s != "" {
			sections = append(sections, "## Schema\n"+s)
		}
	}

	// 3. User preferences for the write subdomain (write only).
	if in.Step.StepType == types.StepWrite {
		if g := ca.CappedSubdomainGuidance(in.Step.Subdomain); g != "" {
			sections = append(sections, "## User preferences\n"+g)
		}
	}

	// 4. STATUS table.
	sections = append(sections, fmt.Sprintf(
		"## STATUS\nStep %d of %d | Goal: %s | Type: %s | Today: %s",
		in.StepIndex+1, in.TotalSteps, in.Goal, in.Step.StepType, in.Today,
	))

	// 5. Previous-step note (read/write).
	if isReadOrWrite(in.Step.StepType) && in.PrevStepNote != "" {
		sections = append(sections, "## Note from previous step\n"+in.PrevStepNote)
	}

	// 6. User profile (analyze/generate).
	if isAnalyzeOrGenerate(in.Step.StepType) && a.Domain != nil {
		if p := a.Domain.GetUserProfile(ctx, in.UserID); p != "" {
			sections = append(sections, "## User profile\n"+p)
		}
	}

	// 7. Subdomain guidance (analyze/generate).
	if isAnalyzeOrGenerate(in.Step.StepType) {
		if g := ca.CappedSubdomainGuidance(in.Step.Subdomain); g != "" {
			sections = append(sections, "## Subdomain guidance\n"+g)
		}
	}

	// 8. Task.
	sections = append(sections, fmt.Sprintf("## Task\nYour job this step: %s\n\nFull user request: %s", in.Step.Description, in.UserRequest))

	// 9. Batch manifest (write, if active).
	if in.Step.StepType == types.StepWrite && len(in.BatchManifest) > 0 {
		sections = append(sections, "## Batch manifest\n"+renderJSON(in.BatchManifest))
	}

	// 10. Domain examples.
	if a.Domain != nil {
		if examples := a.Domain.GetSubdomainExamples(in.Step.Subdomain); len(examples) > 0 {
			sections = append(sections, "## Examples\n"+strings.Join(examples, "\n"))
		}
	}

	// 11 (previous-turn half) + 12 + 14: entity context, previous-turn
	// step results, and conversation history, fit within
	// alfredcontext.ActBudgetTokens (spec §4.4) rather than rendered in
	// full — this is the only call site for ca.BuildActContext.
	sections = append(sections, "## Context\n"+ca.BuildActContext(ps, conv, reg))

	// 11 (this-step half): the current step's own tool results so far
	// this iteration, never budget-fit since it's live working state.
	if len(in.CurrentStepToolResults) > 0 {
		sections = append(sections, "## Data (this step so far)\n"+renderJSON(in.CurrentStepToolResults))
	}

	// 13. Artifacts: full JSON of gen_* content (write/generate/analyze).
	if in.Step.StepType != types.StepRead && len(in.GeneratedArtifacts) > 0 {
		sections = append(sections, "## Artifacts\n"+renderJSON(in.GeneratedArtifacts))
	}

	// 15. Decision prompt.
	sections = append(sections, "## Decision\n"+a.decisionPrompt(in.Step.StepType))

	return strings.Join(sections, "\n\n")
}

func (a *Assembler) decisionPrompt(stepType types.StepType) string {
	switch stepType {
	case types.StepGenerate:
		return "Respond with step_complete only, with generated_content set to the full record you produced — it will be registered as a pending artifact for a later step to save."
	case types.StepAnalyze:
		return "Respond with step_complete only — analyze steps make no tool calls."
	default:
		return "Respond with tool_call to issue a CRUD call, or step_complete once the step's goal is met."
	}
}

func (a *Assembler) renderSchema(step types.ThinkStep) string {
	if a.Domain == nil {
		return ""
	}
	sub, ok := a.Domain.Subdomains()[step.Subdomain]
	if !ok {
		return ""
	}
	table := sub.PrimaryTable
	var b strings.Builder
	if format := a.Domain.GetTableFormat(table); format != "" {
		b.WriteString(format + "\n")
	}
	if notes := a.Domain.GetSemanticNotes(table); notes != "" {
		b.WriteString(notes + "\n")
	}
	if enums := a.Domain.GetFieldEnums(table); len(enums) > 0 {
		b.WriteString(renderJSON(enums))
	}
	return strings.TrimSpace(b.String())
}

func renderJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

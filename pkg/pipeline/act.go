package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jv92admin/alfredagain-sub002/pkg/aerrors"
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/observability"
	"github.com/jv92admin/alfredagain-sub002/pkg/prompt"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

const (
	maxToolCallsPerStep   = 3
	maxSchemaRequestsPerStep = 2
	maxEmptyReadsPerTable = 2
)

// runActQuick is the fast-path executor (spec §4.6.2): a single
// restricted decision (tool_call only) against the subdomain Understand
// already picked, always routing to Reply afterward.
func (p *Pipeline) runActQuick(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, conv types.ConversationContext, in TurnInput, understandOut *types.UnderstandOutput) nodeResult {
	step := types.ThinkStep{
		Description: understandOut.QuickIntent,
		StepType:    types.StepRead,
		Subdomain:   understandOut.QuickSubdomain,
	}
	args := domain.PromptArgs{UserID: ps.UserID, ConversationID: ps.ConversationID, CurrentTurn: ps.CurrentTurn, Mode: ps.ModeContext.SelectedMode}
	systemPrompt := p.Prompt.BuildActSystemPrompt(step.StepType, args)
	userPrompt := p.Prompt.BuildActUserPrompt(ctx, p.Context, *ps, conv, reg, promptInputFor(step, 0, 1, understandOut.QuickIntent, "", in, nil, nil))

	var decision types.ActDecision
	if err := p.LLM.CallLLM(ctx, "act_quick", systemPrompt, userPrompt, llmboundary.ComplexityLow, &decision); err != nil {
		return nodeResult{kind: resultError, err: fmt.Errorf("act_quick: %w", err)}
	}
	if decision.Action != types.ActToolCall || decision.ToolCall == nil {
		return nodeResult{kind: resultNormal}
	}

	data, record, err := p.executeToolCall(ctx, reg, ps, *decision.ToolCall, in.UserID)
	if err != nil {
		return nodeResult{kind: resultError, err: err}
	}
	ps.StepResults[0] = types.StepResult{StepIndex: 0, StepType: types.StepRead, ToolCalls: []types.ToolCallRecord{record}, Data: data}
	ps.CurrentStepIndex = 0
	return nodeResult{kind: resultNormal}
}

// runActLoop drives the Act self-loop over every Think step (spec
// §4.6.2, §4.6.3).
func (p *Pipeline) runActLoop(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, conv types.ConversationContext, in TurnInput, cfg types.ModeConfig, events chan<- types.Event) nodeResult {
	steps := ps.ThinkOutput.Steps
	ps.CurrentStepIndex = 0

	for ps.CurrentStepIndex < len(steps) {
		step := steps[ps.CurrentStepIndex]
		emit(events, types.Event{Type: types.EventStep, Payload: types.StepPayload{
			Step: ps.CurrentStepIndex + 1, Total: len(steps), Description: step.Description, StepType: step.StepType, Group: step.Group,
		}})

		result, done := p.runStep(ctx, reg, ps, conv, in, cfg, step, events)
		if done {
			return result
		}
	}
	return nodeResult{kind: resultNormal}
}

// runStep drives Act's per-iteration decisions for a single step until
// step_complete (returns done=false, loop continues to the next step)
// or a terminal action (done=true, result is final).
func (p *Pipeline) runStep(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, conv types.ConversationContext, in TurnInput, cfg types.ModeConfig, step types.ThinkStep, events chan<- types.Event) (nodeResult, bool) {
	stepIndex := ps.CurrentStepIndex
	var stepData []map[string]any
	var toolCalls []types.ToolCallRecord
	emptyReads := map[string]int{}
	toolCallCount := 0
	schemaRequests := 0

	maxCalls := cfg.MaxToolCallsPerStep
	if maxCalls <= 0 {
		maxCalls = maxToolCallsPerStep
	}

	var genArtifacts map[string]map[string]any
	if step.StepType != types.StepRead {
		if typeName := typeNameForSubdomain(p.Domain, step.Subdomain); typeName != "" {
			genArtifacts = reg.PendingArtifactsByType(typeName)
		}
	}

	for {
		args := domain.PromptArgs{UserID: ps.UserID, ConversationID: ps.ConversationID, CurrentTurn: ps.CurrentTurn, Mode: ps.ModeContext.SelectedMode}
		systemPrompt := p.Prompt.BuildActSystemPrompt(step.StepType, args)
		promptIn := promptInputFor(step, stepIndex, len(ps.ThinkOutput.Steps), ps.ThinkOutput.Goal, ps.PrevStepNote, in, stepData, ps.CurrentBatchManifest)
		promptIn.GeneratedArtifacts = genArtifacts
		userPrompt := p.Prompt.BuildActUserPrompt(ctx, p.Context, *ps, conv, reg, promptIn)

		var decision types.ActDecision
		if err := p.LLM.CallLLM(ctx, "act", systemPrompt, userPrompt, llmboundary.ComplexityMedium, &decision); err != nil {
			return nodeResult{kind: resultError, err: fmt.Errorf("act: step %d: %w", stepIndex, err)}, true
		}

		switch decision.Action {
		case types.ActToolCall:
			if decision.ToolCall == nil {
				continue
			}
			toolCtx, toolSpan := observability.StartActIterationSpan(ctx, stepIndex, toolCallCount)
			data, record, err := p.executeToolCall(toolCtx, reg, ps, *decision.ToolCall, in.UserID)
			toolSpan.End()
			if err != nil {
				var unsafeDelete *aerrors.UnsafeDeleteError
				if errors.As(err, &unsafeDelete) {
					return nodeResult{
						kind:       resultBlocked,
						reasonCode: "unsafe_delete",
						details:    fmt.Sprintf("I can't delete everything in %s without something to narrow it down — can you tell me which ones?", unsafeDelete.Table),
					}, true
				}
				return nodeResult{kind: resultError, err: err}, true
			}
			stepData = append(stepData, data...)
			toolCalls = append(toolCalls, record)
			toolCallCount++
			emit(events, types.Event{Type: types.EventWorking, Payload: record})

			if len(data) == 0 {
				emptyReads[record.Table]++
				if emptyReads[record.Table] >= maxEmptyReadsPerTable {
					return p.completeStep(ps, conv, step, stepIndex, stepData, toolCalls, "no further results from "+record.Table, events), false
				}
			}
			if toolCallCount >= maxCalls {
				capErr := &aerrors.ToolCapExceededError{StepIndex: stepIndex, Calls: toolCallCount}
				return p.completeStep(ps, conv, step, stepIndex, stepData, toolCalls, capErr.Error(), events), false
			}

		case types.ActStepComplete:
			if step.StepType == types.StepWrite && batchHasPending(ps.CurrentBatchManifest) {
				continue
			}
			if step.StepType == types.StepGenerate && decision.GeneratedContent != nil {
				typeName := typeNameForSubdomain(p.Domain, step.Subdomain)
				label := p.Domain.ComputeEntityLabel(decision.GeneratedContent, typeName)
				ref := reg.RegisterGenerated(typeName, decision.GeneratedContent, label, stepIndex)
				stepData = append(stepData, map[string]any{"ref": ref, "content": decision.GeneratedContent})
			}
			summary := decision.StepSummaryText
			if summary == "" {
				summary = "step complete"
			}
			return p.completeStep(ps, conv, step, stepIndex, stepData, toolCalls, summary, events), false

		case types.ActRequestSchema:
			schemaRequests++
			ps.SchemaRequests++
			if schemaRequests > maxSchemaRequestsPerStep {
				return nodeResult{kind: resultError, err: fmt.Errorf("act: step %d: schema request limit exceeded", stepIndex)}, true
			}

		case types.ActRetrieveStep:
			if prior, ok := ps.StepResults[decision.RetrieveStepIndex]; ok {
				stepData = append(stepData, prior.Data...)
			}

		case types.ActRetrieveArchive:
			if archived, ok := conv.ContentArchive[decision.RetrieveArchiveKey]; ok {
				stepData = append(stepData, archived)
			}

		case types.ActAskUser:
			return nodeResult{kind: resultAskUser, question: decision.Question}, true

		case types.ActBlocked:
			return nodeResult{kind: resultBlocked, reasonCode: decision.ReasonCode, details: decision.Details, suggestedNext: decision.SuggestedNext}, true

		case types.ActFail:
			return nodeResult{kind: resultFail, failureReason: decision.FailureReason}, true

		default:
			return nodeResult{kind: resultError, err: fmt.Errorf("act: step %d: unknown decision action %q", stepIndex, decision.Action)}, true
		}
	}
}

// completeStep finalizes the current step's StepResult, advances
// CurrentStepIndex, and emits step_complete (spec §4.6.3: "step_complete
// -> Act if more steps, else Reply" — the advance itself happens here,
// the routing decision is the caller's loop condition).
func (p *Pipeline) completeStep(ps *types.PipelineState, conv types.ConversationContext, step types.ThinkStep, stepIndex int, data []map[string]any, toolCalls []types.ToolCallRecord, summary string, events chan<- types.Event) nodeResult {
	ps.StepResults[stepIndex] = types.StepResult{StepIndex: stepIndex, StepType: step.StepType, ToolCalls: toolCalls, Data: data, Summary: summary}
	ps.PrevStepNote = summary
	ps.CurrentBatchManifest = nil
	ps.CurrentStepIndex = stepIndex + 1

	emit(events, types.Event{Type: types.EventStepComplete, Payload: types.StepCompletePayload{
		Step: stepIndex + 1, Total: len(ps.ThinkOutput.Steps), Data: data, ToolCalls: toolCalls,
	}})
	return nodeResult{kind: resultNormal}
}

// executeToolCall runs one CRUD call and produces its log record.
func (p *Pipeline) executeToolCall(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, call types.ToolCall, userID string) ([]map[string]any, types.ToolCallRecord, error) {
	data, err := p.Executor.Execute(ctx, call, userID, reg)
	if err != nil {
		return nil, types.ToolCallRecord{}, fmt.Errorf("act: executing %s: %w", call.Tool, err)
	}
	table, _ := call.Params["table"].(string)
	return data, types.ToolCallRecord{Tool: call.Tool, Table: table, Count: len(data)}, nil
}

// typeNameForSubdomain resolves a ThinkStep's subdomain to the entity
// type name its primary table represents, for registry registration
// and label computation. Returns "" if the domain has no such
// subdomain or table.
func typeNameForSubdomain(d domain.Domain, subdomain string) string {
	sub, ok := d.Subdomains()[subdomain]
	if !ok {
		return ""
	}
	ent, ok := d.Entities()[sub.PrimaryTable]
	if !ok {
		return ""
	}
	return ent.TypeName
}

// batchHasPending reports whether any write-step batch item is still
// awaiting creation. Nothing in this implementation currently marks an
// item "pending" before it is created, so this is an extension point
// for a domain middleware that pre-declares a batch manifest.
func batchHasPending(manifest []map[string]any) bool {
	for _, item := range manifest {
		if status, _ := item["status"].(string); status == "pending" {
			return true
		}
	}
	return false
}

// promptInputFor bundles one Act iteration's prompt inputs.
func promptInputFor(step types.ThinkStep, stepIndex, totalSteps int, goal, prevStepNote string, in TurnInput, stepData []map[string]any, batchManifest []map[string]any) prompt.ActPromptInput {
	return prompt.ActPromptInput{
		Step:                   step,
		StepIndex:              stepIndex,
		TotalSteps:             totalSteps,
		Goal:                   goal,
		Today:                  in.Today,
		UserRequest:            in.UserMessage,
		PrevStepNote:           prevStepNote,
		UserID:                 in.UserID,
		BatchManifest:          batchManifest,
		CurrentStepToolResults: stepData,
	}
}

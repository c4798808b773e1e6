// Package pipeline implements the turn state machine (spec §4.6):
// Understand -> Think -> Act (self-looping) -> Reply -> Summarize, plus
// the ActQuick fast path and the pre-processing steps that run before
// Understand. Every node-to-node edge is a plain Go function call; the
// only concurrency in a turn is the streaming event channel the caller
// drains while RunTurn executes (spec §5, "Scheduling").
//
// hector has no equivalent graph — its orchestration is a single
// LLM-driven agent loop with tool-calling, not a fixed multi-node state
// machine with a typed decision per node — so the node wiring here is
// original, grounded instead on hector's per-call instrumentation
// pattern (pkg/agent/instrumentation.go's one-span-per-call shape,
// reused here as one span per node via pkg/observability) and on
// pkg/agent/context.go's RunConfig/invocationContext split (external
// per-turn input vs. internal transient state), mirrored here as
// TurnInput vs. types.PipelineState.
package pipeline

import (
	"context"
	"fmt"

	alfredcontext "github.com/jv92admin/alfredagain-sub002/pkg/context"
	"github.com/jv92admin/alfredagain-sub002/pkg/crud"
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/logger"
	"github.com/jv92admin/alfredagain-sub002/pkg/mode"
	"github.com/jv92admin/alfredagain-sub002/pkg/observability"
	"github.com/jv92admin/alfredagain-sub002/pkg/prompt"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/tokenbudget"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// Pipeline bundles every dependency a turn needs. It holds no
// per-turn state itself (spec §5, "the registry is owned by exactly
// one turn at a time") — RunTurn builds a fresh *registry.Registry and
// types.PipelineState from the snapshot it's given.
type Pipeline struct {
	Domain   domain.Domain
	Executor *crud.Executor
	Prompt   *prompt.Assembler
	Context  *alfredcontext.Assembler
	LLM      *llmboundary.Boundary
}

// New wires a Pipeline around d. counterModel selects the tiktoken
// encoding pkg/context budgets against (spec §4.4); any model name
// works since tokenbudget.NewCounter falls back to cl100k_base for
// names it doesn't recognize.
func New(d domain.Domain, llm *llmboundary.Boundary, counterModel string) (*Pipeline, error) {
	counter, err := tokenbudget.NewCounter(counterModel)
	if err != nil {
		return nil, fmt.Errorf("pipeline: building token counter: %w", err)
	}
	return &Pipeline{
		Domain:   d,
		Executor: crud.New(d),
		Prompt:   prompt.NewAssembler(d),
		Context:  alfredcontext.NewAssembler(d, counter),
		LLM:      llm,
	}, nil
}

// TurnInput is the external, caller-supplied shape of one turn (spec
// §6.1's run/run_streaming parameters).
type TurnInput struct {
	UserMessage    string
	UserID         string
	ConversationID string
	Conversation   types.ConversationContext
	Mode           types.ModeContext
	UIChanges      []types.UIChange
	Mentioned      []types.MentionedEntity
	Today          string
}

// TurnOutput is the final (response, conversation) pair (spec §6.1).
type TurnOutput struct {
	Response     string
	Conversation types.ConversationContext
}

// RunTurn executes one full turn, emitting events onto events as it
// goes (spec §4.6.4). events may be nil for callers that don't need
// streaming. A non-nil channel must be drained concurrently (as
// Engine.RunStreaming does) since emit blocks on every send.
func (p *Pipeline) RunTurn(ctx context.Context, in TurnInput, events chan<- types.Event) (TurnOutput, error) {
	reg := registry.FromDict(in.Conversation.IDRegistry, p.Domain)
	turn := reg.BeginTurn()

	ctx = logger.WithTurn(ctx, in.ConversationID, turn, "pipeline")

	ps := &types.PipelineState{
		UserMessage:    in.UserMessage,
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		ModeContext:    in.Mode,
		CurrentTurn:    turn,
		StepResults:    map[int]types.StepResult{},
		StepMetadata:   map[int]map[string]any{},
	}

	if h, ok := mode.Bypassed(p.Domain, in.Mode); ok {
		resp, conv, err := h(ctx, in.UserMessage, in.Conversation, events)
		if err != nil {
			return TurnOutput{}, err
		}
		conv.IDRegistry = reg.ToDict()
		return TurnOutput{Response: resp, Conversation: conv}, nil
	}

	p.preprocess(ctx, reg, ps, in)

	conv := in.Conversation

	uCtx, uSpan := observability.StartNodeSpan(ctx, "understand")
	understandOut, err := p.runUnderstand(uCtx, reg, ps, conv, in.Today)
	uSpan.End()
	if err != nil {
		return TurnOutput{}, fmt.Errorf("pipeline: understand: %w", err)
	}
	ps.UnderstandOutput = understandOut
	applyCuration(reg, understandOut.EntityCuration)

	var result nodeResult
	switch {
	case understandOut.NeedsClarification:
		result = nodeResult{kind: resultClarify, questions: understandOut.ClarificationQuestions}
	case understandOut.QuickMode:
		qCtx, qSpan := observability.StartNodeSpan(ctx, "act_quick")
		result = p.runActQuick(qCtx, reg, ps, conv, in, understandOut)
		qSpan.End()
	default:
		cfg := mode.ConfigFor(in.Mode)
		tCtx, tSpan := observability.StartNodeSpan(ctx, "think")
		thinkOut, err := p.runThink(tCtx, reg, ps, conv, in.Today, cfg)
		tSpan.End()
		if err != nil {
			return TurnOutput{}, fmt.Errorf("pipeline: think: %w", err)
		}
		ps.ThinkOutput = thinkOut
		emit(events, types.Event{Type: types.EventThinkComplete})

		switch thinkOut.Decision {
		case types.DecisionPropose:
			emit(events, types.Event{Type: types.EventPropose, Payload: thinkOut.ProposalMessage})
			result = nodeResult{kind: resultPropose, message: thinkOut.ProposalMessage}
		case types.DecisionClarify:
			emit(events, types.Event{Type: types.EventClarify, Payload: thinkOut.ClarificationQuestions})
			result = nodeResult{kind: resultClarify, questions: thinkOut.ClarificationQuestions}
		default:
			emit(events, types.Event{Type: types.EventPlan, Payload: planPayload(thinkOut)})
			aCtx, aSpan := observability.StartNodeSpan(ctx, "act")
			result = p.runActLoop(aCtx, reg, ps, conv, in, cfg, events)
			aSpan.End()
		}
	}

	rCtx, rSpan := observability.StartNodeSpan(ctx, "reply")
	response := p.buildReply(rCtx, reg, ps, conv, in, result)
	rSpan.End()
	ps.FinalResponse = response

	activeCtx := buildActiveContextPayload(reg, turn)
	emit(events, types.Event{Type: types.EventDone, Payload: types.DonePayload{
		Response: response, Conversation: conv, ActiveContext: activeCtx,
	}})

	sCtx, sSpan := observability.StartNodeSpan(ctx, "summarize")
	conv = p.runSummarize(sCtx, reg, ps, conv, understandOut, turn, result)
	sSpan.End()
	reg.ClearTurnPromotedArtifacts()
	conv.IDRegistry = reg.ToDict()

	emit(events, types.Event{Type: types.EventContextUpdated})

	return TurnOutput{Response: response, Conversation: conv}, nil
}

// emit sends e, blocking until the caller's reader drains it. RunTurn
// only ever runs concurrently with that reader (spec §5, "a buffered Go
// channel drained by the caller") — Engine.RunStreaming runs RunTurn on
// its own goroutine precisely so this can block without stalling the
// caller — so a blocking send here cannot deadlock a normal consumer,
// and it is the only way to guarantee done (and every event before it)
// actually reaches the caller rather than being dropped when the buffer
// is full.
func emit(events chan<- types.Event, e types.Event) {
	if events == nil {
		return
	}
	events <- e
}

func planPayload(t *types.ThinkOutput) types.PlanPayload {
	steps := make([]types.PlanStepPreview, 0, len(t.Steps))
	for _, s := range t.Steps {
		steps = append(steps, types.PlanStepPreview{Description: s.Description, StepType: s.StepType, Subdomain: s.Subdomain})
	}
	return types.PlanPayload{Goal: t.Goal, TotalSteps: len(t.Steps), Steps: steps}
}

func buildActiveContextPayload(reg *registry.Registry, turn int) types.ActiveContextPayload {
	var entities []types.ActiveEntity
	for _, ref := range reg.AllRefs() {
		entities = append(entities, types.ActiveEntity{
			Ref:    ref,
			Type:   reg.TypeOf(ref),
			Label:  reg.Label(ref),
			Action: reg.ActionOf(ref),
		})
	}
	return types.ActiveContextPayload{Entities: entities, CurrentTurn: turn}
}

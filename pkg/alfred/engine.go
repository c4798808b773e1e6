// Package alfred is the top-level entry point (spec §6.1): Run and
// RunStreaming, wired around one domain.Domain registered at
// construction. Everything below this package — registry, crud,
// context, prompt, pipeline, llmboundary, mode — is reusable across
// domains; this package is where a concrete domain becomes a runnable
// engine.
//
// Grounded on hector's agent.Agent: Query (collect a streaming channel
// into one return value) sitting alongside QueryStreaming (hand the
// channel straight to the caller), both backed by the same execute
// loop run in a goroutine that closes its output channel on return.
package alfred

import (
	"context"
	"fmt"

	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/pipeline"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// Engine is a domain bound to a pipeline, ready to run turns (spec
// §6.1). Construct one per domain at process start; an Engine has no
// per-conversation state of its own, so a single instance serves every
// conversation concurrently as long as callers never run two turns of
// the same conversation at once (spec §5, "the registry is owned by
// exactly one turn at a time").
type Engine struct {
	pipeline *pipeline.Pipeline
}

// New builds an Engine for d. llm is the provider backing every LLM
// call the turn state machine makes; counterModel selects the token
// counter pkg/context budgets against.
func New(d domain.Domain, llm *llmboundary.Boundary, counterModel string) (*Engine, error) {
	p, err := pipeline.New(d, llm, counterModel)
	if err != nil {
		return nil, fmt.Errorf("alfred: %w", err)
	}
	return &Engine{pipeline: p}, nil
}

// RunInput is the public request shape for Run and RunStreaming (spec
// §6.1's run/run_streaming parameters). ConversationID is required when
// Conversation carries prior state; both may be empty for a brand new
// conversation.
type RunInput struct {
	UserMessage    string
	UserID         string
	ConversationID string
	Conversation   types.ConversationContext
	Mode           types.ModeContext
	UIChanges      []types.UIChange
	Mentioned      []types.MentionedEntity
	Today          string
}

// RunOutput is the (response, conversation) pair every turn produces
// (spec §6.1, §6.3 — conversation is the sole persisted state the
// caller must save and pass back on the next turn).
type RunOutput struct {
	Response     string
	Conversation types.ConversationContext
}

// Run executes one turn and returns only the final result (spec
// §6.1's `run`), discarding the intermediate event stream.
func (e *Engine) Run(ctx context.Context, in RunInput) (RunOutput, error) {
	out, err := e.pipeline.RunTurn(ctx, toTurnInput(in), nil)
	if err != nil {
		return RunOutput{}, err
	}
	return RunOutput{Response: out.Response, Conversation: out.Conversation}, nil
}

// RunStreaming executes one turn on a background goroutine and returns
// a channel of the events it emits as it goes (spec §6.1's
// `run_streaming`, §4.6.4). The channel is closed once the turn
// finishes. A successful turn emits `done`, carrying the response and
// the conversation as it stood before summarization, followed by
// `context_updated` as the last event; the summarized conversation Run
// returns is not carried by any event. If the turn fails, its error is
// sent on the error channel and no `done` event is emitted.
func (e *Engine) RunStreaming(ctx context.Context, in RunInput) (<-chan types.Event, <-chan error) {
	events := make(chan types.Event, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errCh)

		_, err := e.pipeline.RunTurn(ctx, toTurnInput(in), events)
		if err != nil {
			errCh <- err
		}
	}()

	return events, errCh
}

func toTurnInput(in RunInput) pipeline.TurnInput {
	return pipeline.TurnInput{
		UserMessage:    in.UserMessage,
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		Conversation:   in.Conversation,
		Mode:           in.Mode,
		UIChanges:      in.UIChanges,
		Mentioned:      in.Mentioned,
		Today:          in.Today,
	}
}

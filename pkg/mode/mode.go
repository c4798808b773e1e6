// Package mode resolves the per-turn ModeContext (spec §4.9) and
// dispatches to a domain bypass handler when one is active, replacing
// the pipeline graph entirely for that turn.
//
// Grounded on hector's pkg/agent.RunConfig (a small per-invocation
// config struct selected by the caller, here types.ModeConfig selected
// by types.Mode) and pkg/agent/agent_router.AgentRouter.GetAgent
// (dispatch-by-name-with-a-found-bool, mirrored here by
// domain.Domain.BypassModes()[key]).
package mode

import (
	"context"
	"fmt"

	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// Resolve builds the ModeContext for a turn from the caller-supplied
// mode, any override params, and an optional bypass key (spec §4.9).
func Resolve(selected types.Mode, overrides map[string]any, bypassKey string) types.ModeContext {
	return types.ModeContext{
		SelectedMode:     selected,
		OverrideParams:   overrides,
		ActiveBypassMode: bypassKey,
	}
}

// ConfigFor resolves the effective ModeConfig for mc, starting from
// the built-in table (types.DefaultModeConfigs) and applying any
// per-turn overrides in mc.OverrideParams. Unrecognized override keys
// are ignored rather than erroring — spec §4.9 treats override_params
// as a tuning knob, not a validated schema.
func ConfigFor(mc types.ModeContext) types.ModeConfig {
	cfg := types.DefaultModeConfigs()[mc.SelectedMode]
	for k, v := range mc.OverrideParams {
		switch k {
		case "max_steps":
			if n, ok := toInt(v); ok {
				cfg.MaxSteps = n
			}
		case "skip_think":
			if b, ok := v.(bool); ok {
				cfg.SkipThink = b
			}
		case "proposal_required":
			if b, ok := v.(bool); ok {
				cfg.ProposalRequired = b
			}
		case "verbosity":
			if s, ok := v.(string); ok {
				cfg.Verbosity = s
			}
		case "max_tool_calls_per_step":
			if n, ok := toInt(v); ok {
				cfg.MaxToolCallsPerStep = n
			}
		}
	}
	return cfg
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Bypassed reports whether mc names an active bypass handler the
// domain actually registers, and returns it.
func Bypassed(d domain.Domain, mc types.ModeContext) (domain.BypassHandler, bool) {
	if mc.ActiveBypassMode == "" {
		return nil, false
	}
	h, ok := d.BypassModes()[mc.ActiveBypassMode]
	return h, ok
}

// Dispatch runs a bypass handler to completion, replacing the pipeline
// graph for this turn (spec §4.9): "the handler receives the message
// and conversation, streams its own events, and returns (response,
// updated conversation)".
func Dispatch(ctx context.Context, d domain.Domain, mc types.ModeContext, message string, conv types.ConversationContext, events chan<- types.Event) (string, types.ConversationContext, error) {
	h, ok := Bypassed(d, mc)
	if !ok {
		return "", conv, fmt.Errorf("mode: no bypass handler registered for %q", mc.ActiveBypassMode)
	}
	return h(ctx, message, conv, events)
}

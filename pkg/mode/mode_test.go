package mode_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfredagain-sub002/pkg/mode"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

func TestConfigFor_AppliesOverrides(t *testing.T) {
	mc := mode.Resolve(types.ModePlan, map[string]any{"max_steps": 3, "verbosity": "terse"}, "")
	cfg := mode.ConfigFor(mc)
	assert.Equal(t, 3, cfg.MaxSteps)
	assert.Equal(t, "terse", cfg.Verbosity)
	assert.False(t, cfg.ProposalRequired)
}

func TestConfigFor_IgnoresUnknownOverrideKeys(t *testing.T) {
	mc := mode.Resolve(types.ModeQuick, map[string]any{"bogus": "value"}, "")
	cfg := mode.ConfigFor(mc)
	assert.Equal(t, types.DefaultModeConfigs()[types.ModeQuick], cfg)
}

func TestDispatch_RunsRegisteredBypassHandler(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	d.Bypass["greeting"] = func(ctx context.Context, message string, conv types.ConversationContext, events chan<- types.Event) (string, types.ConversationContext, error) {
		return "hello back", conv, nil
	}

	mc := mode.Resolve(types.ModeQuick, nil, "greeting")
	resp, _, err := mode.Dispatch(context.Background(), d, mc, "hi", types.ConversationContext{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello back", resp)
}

func TestDispatch_ErrorsOnUnknownBypassKey(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)

	mc := mode.Resolve(types.ModeQuick, nil, "nope")
	_, _, err := mode.Dispatch(context.Background(), d, mc, "hi", types.ConversationContext{}, nil)
	require.Error(t, err)
}

func TestBypassed_FalseWhenNoBypassKey(t *testing.T) {
	adapter := testsupport.NewFakeAdapter()
	d := testsupport.NewStubDomain(adapter)
	mc := mode.Resolve(types.ModePlan, nil, "")
	_, ok := mode.Bypassed(d, mc)
	assert.False(t, ok)
}

package types

// Mode is the top-level interaction mode (spec §4.9).
type Mode string

const (
	ModeQuick  Mode = "QUICK"
	ModePlan   Mode = "PLAN"
	ModeCreate Mode = "CREATE"
)

// ModeConfig is the per-mode tuning the pipeline consults (spec §4.9,
// §4.6.2).
type ModeConfig struct {
	MaxSteps           int
	SkipThink          bool
	ProposalRequired   bool
	Verbosity          string
	MaxToolCallsPerStep int
}

// DefaultModeConfigs returns the built-in mode table. SkipThink is not
// read by the pipeline: Think is skipped only when Understand picks the
// fast path (§4.6), in any mode. When it does not, Think runs in QUICK
// mode too and MaxSteps caps its plan at 2 steps.
func DefaultModeConfigs() map[Mode]ModeConfig {
	return map[Mode]ModeConfig{
		ModeQuick: {
			MaxSteps:            2,
			SkipThink:           true,
			ProposalRequired:    false,
			Verbosity:           "terse",
			MaxToolCallsPerStep: 3,
		},
		ModePlan: {
			MaxSteps:            8,
			SkipThink:           false,
			ProposalRequired:    false,
			Verbosity:           "normal",
			MaxToolCallsPerStep: 3,
		},
		ModeCreate: {
			MaxSteps:            4,
			SkipThink:           false,
			ProposalRequired:    true,
			Verbosity:           "normal",
			MaxToolCallsPerStep: 3,
		},
	}
}

// ModeContext carries the resolved mode plus any bypass dispatch
// (spec §4.9).
type ModeContext struct {
	SelectedMode     Mode
	OverrideParams   map[string]any
	ActiveBypassMode string // empty if none
}

// UIChange is one entry of the ui_changes input (spec §4.6.1).
type UIChange struct {
	EntityType string
	ID         string // UUID
	Action     string // "created" | "updated" | "deleted"
	Label      string
	Data       map[string]any // optional
}

// MentionedEntity is one `@[Label](type:uuid)` reference resolved from
// the user message (spec §4.6.1).
type MentionedEntity struct {
	Label string
	Type  string
	UUID  string
}

package types

// Turn is one full-text recent turn kept in ConversationContext
// (spec §3.4).
type Turn struct {
	TurnNum      int
	UserMessage  string
	Response     string
}

// ConversationPhase classifies where a turn's reasoning landed
// (spec §4.6.2, Summarize).
type ConversationPhase string

const (
	PhaseExploring  ConversationPhase = "exploring"
	PhaseNarrowing  ConversationPhase = "narrowing"
	PhaseConfirming ConversationPhase = "confirming"
	PhaseExecuting  ConversationPhase = "executing"
)

// EntityCurationEntry is one Understand-issued curation instruction
// (spec §4.6.2).
type EntityCurationEntry struct {
	Ref    string `json:"ref" mapstructure:"ref"`
	Action string `json:"action" mapstructure:"action"` // "retain_active" | "demote" | "drop" | "clear_all"
	Reason string `json:"reason" mapstructure:"reason"`
}

// TurnExecutionSummary is the reasoning trace recorded by Summarize
// (spec §4.6.2).
type TurnExecutionSummary struct {
	TurnNum          int
	ThinkDecision    string
	ThinkGoal        string
	Steps            []StepSummary
	EntityCuration   []EntityCurationEntry
	ConversationPhase ConversationPhase
	UserExpressed    string
	BlockedReason    string // optional; domain-extensible (spec §9)
}

// StepSummary is a condensed record of one executed Think step, kept
// inside a TurnExecutionSummary.
type StepSummary struct {
	StepIndex   int
	Description string
	StepType    StepType
	Outcome     string
}

// StepResult is the full payload produced by one Act iteration's tool
// call or generation, keyed by turn and step index in
// ConversationContext.TurnStepResults (spec §3.4).
type StepResult struct {
	StepIndex int
	StepType  StepType
	ToolCalls []ToolCallRecord
	Data      []map[string]any
	Summary   string
}

// ToolCallRecord records one CRUD call made during a step, for the
// step_complete event payload (spec §6.2).
type ToolCallRecord struct {
	Tool  CrudTool
	Table string
	Count int
}

// ConversationContext is the cross-turn persisted state (spec §3.4).
type ConversationContext struct {
	EngagementSummary    string
	RecentTurns          []Turn
	HistorySummary       string
	TurnSummaries        []TurnExecutionSummary
	ReasoningSummary     string
	TurnStepResults      map[int]map[int]StepResult
	ContentArchive       map[string]map[string]any
	PendingClarification *PendingClarification
	IDRegistry           RegistrySnapshot
}

// PendingClarification records an outstanding clarifying question.
type PendingClarification struct {
	Question string
	Turn     int
}

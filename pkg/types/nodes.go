package types

// StepType is one of the four kinds of Think step (spec §4.6.2).
type StepType string

const (
	StepRead     StepType = "read"
	StepAnalyze  StepType = "analyze"
	StepGenerate StepType = "generate"
	StepWrite    StepType = "write"
)

// ThinkStep is one planned unit of work (spec §4.6.2). Group is
// reserved for future parallel execution (spec §5, §9): today groups
// execute serially, in increasing order, one step at a time.
type ThinkStep struct {
	Description string   `json:"description" mapstructure:"description"`
	StepType    StepType `json:"step_type" mapstructure:"step_type"`
	Subdomain   string   `json:"subdomain" mapstructure:"subdomain"`
	Group       int      `json:"group" mapstructure:"group"`
}

// ThinkDecision is the Think node's routing verdict (spec §4.6.2).
type ThinkDecision string

const (
	DecisionPlanDirect ThinkDecision = "plan_direct"
	DecisionPropose    ThinkDecision = "propose"
	DecisionClarify    ThinkDecision = "clarify"
)

// ThinkOutput is the Think node's structured LLM output (spec §4.6.2).
type ThinkOutput struct {
	Goal                   string        `json:"goal" mapstructure:"goal" jsonschema:"required,description=What this turn is trying to accomplish"`
	Steps                  []ThinkStep   `json:"steps" mapstructure:"steps"`
	Decision               ThinkDecision `json:"decision" mapstructure:"decision" jsonschema:"required,enum=plan_direct,enum=propose,enum=clarify"`
	ProposalMessage        string        `json:"proposal_message,omitempty" mapstructure:"proposal_message"`
	ClarificationQuestions []string      `json:"clarification_questions,omitempty" mapstructure:"clarification_questions"`
}

// UnderstandOutput is the Understand node's structured LLM output
// (spec §4.6.2).
type UnderstandOutput struct {
	ReferencedEntities     []string              `json:"referenced_entities" mapstructure:"referenced_entities"`
	EntityCuration         []EntityCurationEntry `json:"entity_curation" mapstructure:"entity_curation"`
	QuickMode              bool                  `json:"quick_mode" mapstructure:"quick_mode"`
	QuickIntent            string                `json:"quick_intent,omitempty" mapstructure:"quick_intent"`
	QuickSubdomain         string                `json:"quick_subdomain,omitempty" mapstructure:"quick_subdomain"`

	// RequestedAction is the verb the user's message asks for ("read" or
	// "write"), independent of how Think ends up planning the turn.
	// Reply compares it against the verbs actually executed to flag an
	// action mismatch (spec §4.6.2, §8 S6).
	RequestedAction string `json:"requested_action,omitempty" mapstructure:"requested_action" jsonschema:"enum=read,enum=write"`
	NeedsClarification     bool                  `json:"needs_clarification" mapstructure:"needs_clarification"`
	ClarificationQuestions []string              `json:"clarification_questions,omitempty" mapstructure:"clarification_questions"`
	NeedsDisambiguation    bool                  `json:"needs_disambiguation" mapstructure:"needs_disambiguation"`
	DisambiguationOptions  []string              `json:"disambiguation_options,omitempty" mapstructure:"disambiguation_options"`
	ConstraintSnapshot     map[string]any        `json:"constraint_snapshot,omitempty" mapstructure:"constraint_snapshot"`
}

// ActActionKind enumerates the 8 actions an ActDecision can carry
// (spec §4.6.2).
type ActActionKind string

const (
	ActToolCall       ActActionKind = "tool_call"
	ActStepComplete   ActActionKind = "step_complete"
	ActRequestSchema  ActActionKind = "request_schema"
	ActRetrieveStep   ActActionKind = "retrieve_step"
	ActRetrieveArchive ActActionKind = "retrieve_archive"
	ActAskUser        ActActionKind = "ask_user"
	ActBlocked        ActActionKind = "blocked"
	ActFail           ActActionKind = "fail"
)

// ToolCall is the shape of a tool_call ActDecision's payload.
type ToolCall struct {
	Tool   CrudTool       `json:"tool" mapstructure:"tool"`
	Params map[string]any `json:"params" mapstructure:"params"`
}

// ActDecision is Act's per-iteration structured LLM output, a tagged
// union discriminated by Action (spec §4.6.2, §9).
type ActDecision struct {
	Action ActActionKind `json:"action" mapstructure:"action" jsonschema:"required"`

	// tool_call
	ToolCall *ToolCall `json:"tool_call,omitempty" mapstructure:"tool_call"`

	// step_complete
	StepSummaryText string `json:"step_summary_text,omitempty" mapstructure:"step_summary_text"`

	// step_complete on a generate step: the content to register as a
	// pending artifact (spec §4.6.2, "Artifacts from generate are
	// registered via register_generated").
	GeneratedContent map[string]any `json:"generated_content,omitempty" mapstructure:"generated_content"`

	// request_schema
	SchemaRequestTable string `json:"schema_request_table,omitempty" mapstructure:"schema_request_table"`

	// retrieve_step
	RetrieveStepIndex int `json:"retrieve_step_index,omitempty" mapstructure:"retrieve_step_index"`

	// retrieve_archive
	RetrieveArchiveKey string `json:"retrieve_archive_key,omitempty" mapstructure:"retrieve_archive_key"`

	// ask_user
	Question string `json:"question,omitempty" mapstructure:"question"`

	// blocked
	ReasonCode    string `json:"reason_code,omitempty" mapstructure:"reason_code"`
	Details       string `json:"details,omitempty" mapstructure:"details"`
	SuggestedNext string `json:"suggested_next,omitempty" mapstructure:"suggested_next"`

	// fail
	FailureReason string `json:"failure_reason,omitempty" mapstructure:"failure_reason"`
}

// PipelineState is the per-turn transient state threaded between nodes
// (spec §3.5). It is never persisted directly; Summarize folds the
// relevant parts into ConversationContext.
type PipelineState struct {
	UserMessage    string
	UserID         string
	ConversationID string
	ModeContext    ModeContext
	CurrentTurn    int

	UnderstandOutput *UnderstandOutput
	ThinkOutput      *ThinkOutput

	PendingAction        *ActDecision
	CurrentStepIndex     int
	StepResults          map[int]StepResult
	StepMetadata         map[int]map[string]any
	CurrentStepToolResults []ToolCallRecord
	CurrentBatchManifest []map[string]any

	SchemaRequests int // capped at 2, spec §3.5
	PrevStepNote   string

	FinalResponse string
	Error         error
}

package types

// EventType enumerates the stable streaming event schema (spec §4.6.4,
// §6.2).
type EventType string

const (
	EventThinking       EventType = "thinking"
	EventThinkComplete  EventType = "think_complete"
	EventPlan           EventType = "plan"
	EventPropose        EventType = "propose"
	EventClarify        EventType = "clarify"
	EventStep           EventType = "step"
	EventStepComplete   EventType = "step_complete"
	EventWorking        EventType = "working"
	EventActiveContext  EventType = "active_context"
	EventDone           EventType = "done"
	EventContextUpdated EventType = "context_updated"
)

// Event is the envelope pushed onto the streaming channel; Payload's
// concrete type depends on Type (see the *Payload structs below).
type Event struct {
	Type    EventType
	Payload any
}

// PlanStepPreview is one entry of PlanPayload.Steps.
type PlanStepPreview struct {
	Description string
	StepType    StepType
	Subdomain   string
}

// PlanPayload accompanies EventPlan.
type PlanPayload struct {
	Goal       string
	TotalSteps int
	Steps      []PlanStepPreview
}

// StepPayload accompanies EventStep.
type StepPayload struct {
	Step        int
	Total       int
	Description string
	StepType    StepType
	Group       int
}

// StepCompletePayload accompanies EventStepComplete.
type StepCompletePayload struct {
	Step      int
	Total     int
	Data      []map[string]any
	ToolCalls []ToolCallRecord
}

// ActiveEntity is one entry of ActiveContextPayload.Entities.
type ActiveEntity struct {
	Ref    string
	Type   string
	Label  string
	Action ActionTag
}

// ActiveContextChanges accompanies ActiveContextPayload.
type ActiveContextChanges struct {
	Added   []string
	Removed []string
}

// ActiveContextPayload accompanies EventActiveContext and the
// `active_context` field of DonePayload.
type ActiveContextPayload struct {
	Entities    []ActiveEntity
	Changes     ActiveContextChanges
	CurrentTurn int
}

// DonePayload accompanies EventDone; it is emitted before
// EventContextUpdated per the ordering guarantee in spec §5.
type DonePayload struct {
	Response      string
	Conversation  ConversationContext
	ActiveContext ActiveContextPayload
}

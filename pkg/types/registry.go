package types

// PendingUUID is the sentinel UUID value for a generated entity that has
// not yet been promoted to a real database row (spec §3.3).
const PendingUUID = "__pending__"

// ActionTag is the taxonomy of actions recorded against a ref (spec §3.3).
type ActionTag string

const (
	ActionRead         ActionTag = "read"
	ActionCreated      ActionTag = "created"
	ActionUpdated      ActionTag = "updated"
	ActionDeleted      ActionTag = "deleted"
	ActionGenerated    ActionTag = "generated"
	ActionLinked       ActionTag = "linked"
	ActionCreatedUser  ActionTag = "created:user"
	ActionUpdatedUser  ActionTag = "updated:user"
	ActionDeletedUser  ActionTag = "deleted:user"
	ActionMentionedUser ActionTag = "mentioned:user"
)

// IsUserAction reports whether the action carries the ":user" suffix,
// i.e. it originated from a frontend-initiated change.
func (a ActionTag) IsUserAction() bool {
	switch a {
	case ActionCreatedUser, ActionUpdatedUser, ActionDeletedUser, ActionMentionedUser:
		return true
	default:
		return false
	}
}

// DetailLevel classifies how much of an entity's data was read.
type DetailLevel string

const (
	DetailFull    DetailLevel = "full"
	DetailSummary DetailLevel = "summary"
)

// DetailEntry records the detail level of the most recent read, and (for
// full reads) the turn it happened on.
type DetailEntry struct {
	Level   DetailLevel
	FullTurn int
}

// EnrichTarget is one pending FK lazy-enrichment lookup: the ref that
// needs a label, the table/column to read it from, and the UUID to key
// the lookup on.
type EnrichTarget struct {
	Ref        string
	Table      string
	NameColumn string
	UUID       string
}

// RegistrySnapshot is the deterministic, serializable form produced by
// Registry.ToDict / consumed by Registry.FromDict (spec §3.3, §6.3).
// Transient fields (_lazy_enrich_queue, _last_snapshot_refs) are
// intentionally absent.
type RegistrySnapshot struct {
	SessionID    string            `json:"session_id"`
	CurrentTurn  int               `json:"current_turn"`
	RefToUUID    map[string]string `json:"ref_to_uuid"`
	UUIDToRef    map[string]string `json:"uuid_to_ref"`
	Counters     map[string]int    `json:"counters"`
	GenCounters  map[string]int    `json:"gen_counters"`

	PendingArtifacts map[string]map[string]any `json:"pending_artifacts"`

	RefActions  map[string]ActionTag `json:"ref_actions"`
	RefLabels   map[string]string    `json:"ref_labels"`
	RefTypes    map[string]string    `json:"ref_types"`

	RefDetailTracking map[string]DetailEntry `json:"ref_detail_tracking"`

	RefTurnCreated  map[string]int `json:"ref_turn_created"`
	RefTurnLastRef  map[string]int `json:"ref_turn_last_ref"`
	RefSourceStep   map[string]int `json:"ref_source_step"`
	RefTurnPromoted map[string]int `json:"ref_turn_promoted"`

	RefActiveReason map[string]string `json:"ref_active_reason"`
}

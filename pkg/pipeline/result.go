package pipeline

// resultKind discriminates the terminal state a turn's reasoning
// reached before Reply renders a response (spec §4.6.2, §4.6.3).
type resultKind int

const (
	// resultNormal covers both the quick-mode path (ActQuick always
	// routes to Reply) and Act's pending_action=None termination.
	resultNormal resultKind = iota
	resultClarify
	resultPropose
	resultAskUser
	resultBlocked
	resultFail
	resultError
)

// nodeResult carries whatever a node needs Reply to render, tagged by
// kind. Only the fields relevant to kind are populated.
type nodeResult struct {
	kind resultKind

	questions []string // resultClarify
	message   string   // resultPropose: the proposal text

	question string // resultAskUser

	reasonCode    string // resultBlocked
	details       string
	suggestedNext string

	failureReason string // resultFail

	err error // resultError: a non-recoverable execution error

	actionMismatch bool // not set by any node; Reply detects a requested-but-unexecuted write itself (detectActionMismatch)
}

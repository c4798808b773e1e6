package registry

import (
	"context"

	"github.com/jv92admin/alfredagain-sub002/pkg/logger"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// RegisterRead implements the "database read" lifecycle (spec §3.3):
// assigns or reuses a ref for uuid, sets action=read, updates
// turn_last_ref, and records the detail level.
func (r *Registry) RegisterRead(uuid, typeName string, record map[string]any, stepIndex int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, existed := r.uuidToRef[uuid]
	if !existed {
		ref = r.allocateRef(typeName, false)
		r.refToUUID[ref] = uuid
		r.uuidToRef[uuid] = ref
		r.refTypes[ref] = typeName
		r.refTurnCreated[ref] = r.currentTurn
		r.refSourceStep[ref] = stepIndex
	}
	r.refActions[ref] = types.ActionRead
	r.refLabels[ref] = r.computeLabel(record, typeName, ref)
	r.refTurnLastRef[ref] = r.currentTurn
	r.recordDetail(typeName, ref, record)
	return ref
}

// RegisterGenerated implements the "LLM generate" lifecycle (spec §3.3):
// allocates a gen_ ref with UUID __pending__ and stores the full
// content.
func (r *Registry) RegisterGenerated(typeName string, content map[string]any, label string, stepIndex int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := r.allocateRef(typeName, true)
	r.refToUUID[ref] = types.PendingUUID
	// Multiple gen_ refs may transiently share the pending sentinel
	// (spec I1); uuidToRef is intentionally not updated for the
	// sentinel UUID.
	r.refTypes[ref] = typeName
	r.refActions[ref] = types.ActionGenerated
	if label == "" {
		label = r.computeLabel(content, typeName, ref)
	}
	r.refLabels[ref] = label
	r.refTurnCreated[ref] = r.currentTurn
	r.refTurnLastRef[ref] = r.currentTurn
	r.refSourceStep[ref] = stepIndex
	r.pendingArtifacts[ref] = content
	return ref
}

// RegisterCreated implements the "database create" lifecycle
// (spec §3.3, §4.1, property P6): if refHint is a gen_ ref, or a
// unique pending artifact of the same type with a matching label
// exists, that artifact is promoted (ref preserved, UUID replaced,
// action set to created, turn_promoted recorded); otherwise a fresh
// ref is allocated.
func (r *Registry) RegisterCreated(ctx context.Context, refHint, uuid, typeName, label string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if refHint != "" {
		if _, ok := r.pendingArtifacts[refHint]; ok && r.refTypes[refHint] == typeName {
			return r.promote(refHint, uuid)
		}
	}

	if match, ambiguous := r.findUniquePendingByLabel(typeName, label); match != "" {
		return r.promote(match, uuid)
	} else if ambiguous {
		logger.For(ctx).Warn("registry: ambiguous pending artifact match by label, minting a fresh ref instead", "type_name", typeName, "label", label)
	}

	ref := r.allocateRef(typeName, false)
	r.refToUUID[ref] = uuid
	r.uuidToRef[uuid] = ref
	r.refTypes[ref] = typeName
	r.refActions[ref] = types.ActionCreated
	r.refLabels[ref] = label
	r.refTurnCreated[ref] = r.currentTurn
	r.refTurnLastRef[ref] = r.currentTurn
	return ref
}

// findUniquePendingByLabel returns the sole pending artifact of
// typeName carrying label, if exactly one exists. ambiguous reports
// whether more than one candidate matched (the caller logs a warning
// and falls back to minting a fresh ref rather than guessing).
func (r *Registry) findUniquePendingByLabel(typeName, label string) (match string, ambiguous bool) {
	count := 0
	for ref, content := range r.pendingArtifacts {
		if r.refTypes[ref] != typeName {
			continue
		}
		if r.refActions[ref] != types.ActionGenerated {
			continue
		}
		l := r.refLabels[ref]
		if l == "" {
			l = r.computeLabel(content, typeName, ref)
		}
		if l == label {
			match = ref
			count++
		}
	}
	if count == 1 {
		return match, false
	}
	return "", count > 1
}

func (r *Registry) promote(ref, uuid string) string {
	r.refToUUID[ref] = uuid
	r.uuidToRef[uuid] = ref
	r.refActions[ref] = types.ActionCreated
	r.refTurnPromoted[ref] = r.currentTurn
	r.refTurnLastRef[ref] = r.currentTurn
	return ref
}

// RegisterFromUI implements UI-report lifecycles (spec §3.3,
// "register_from_ui"): create/update/delete with a ":user" suffix.
// action must already carry the suffix (e.g. types.ActionCreatedUser).
func (r *Registry) RegisterFromUI(uuid, typeName, label string, action types.ActionTag) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, existed := r.uuidToRef[uuid]
	if !existed {
		ref = r.allocateRef(typeName, false)
		r.refToUUID[ref] = uuid
		r.uuidToRef[uuid] = ref
		r.refTypes[ref] = typeName
		r.refTurnCreated[ref] = r.currentTurn
	}
	r.refActions[ref] = action
	if label != "" {
		r.refLabels[ref] = label
	}
	r.refTurnLastRef[ref] = r.currentTurn

	if action == types.ActionDeletedUser {
		delete(r.uuidToRef, uuid)
		delete(r.refToUUID, ref)
	}
	return ref
}

// RegisterLinked implements FK lazy registration (spec §3.3, §4.3.1):
// allocates a ref immediately with action=linked for an unknown FK
// UUID, and enqueues it for batch name-enrichment.
func (r *Registry) RegisterLinked(uuid, typeName, table, nameColumn string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.uuidToRef[uuid]; ok {
		return ref
	}
	ref := r.allocateRef(typeName, false)
	r.refToUUID[ref] = uuid
	r.uuidToRef[uuid] = ref
	r.refTypes[ref] = typeName
	r.refActions[ref] = types.ActionLinked
	r.refTurnCreated[ref] = r.currentTurn
	r.refTurnLastRef[ref] = r.currentTurn
	r.lazyEnrichQueue[ref] = types.EnrichTarget{
		Ref: ref, Table: table, NameColumn: nameColumn, UUID: uuid,
	}
	return ref
}

// GetActiveEntities classifies registered refs into recent (within
// turnsWindow of the current turn) and retained (outside the window but
// carrying a non-empty active reason) (spec §4.1, §4.4).
func (r *Registry) GetActiveEntities(turnsWindow int) (recent []string, retained []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, lastTurn := range r.refTurnLastRef {
		if _, known := r.refToUUID[ref]; !known {
			if _, gen := r.pendingArtifacts[ref]; !gen {
				continue
			}
		}
		if r.currentTurn-lastTurn <= turnsWindow {
			recent = append(recent, ref)
			continue
		}
		if reason, ok := r.refActiveReason[ref]; ok && reason != "" {
			retained = append(retained, ref)
		}
	}
	return recent, retained
}

// Label returns the current human label for ref, or "" if unknown.
func (r *Registry) Label(ref string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refLabels[ref]
}

// TypeOf returns the recorded type_name for ref, or "" if unknown.
func (r *Registry) TypeOf(ref string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refTypes[ref]
}

// ActionOf returns the recorded action tag for ref.
func (r *Registry) ActionOf(ref string) types.ActionTag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refActions[ref]
}

// DetailOf returns the recorded detail-tracking entry for ref, and
// whether one exists.
func (r *Registry) DetailOf(ref string) (types.DetailEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.refDetailTracking[ref]
	return d, ok
}

// TurnLastRef returns the turn ref was last touched on.
func (r *Registry) TurnLastRef(ref string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refTurnLastRef[ref]
}

// TurnActiveReason returns the active-retention reason for ref, if any.
func (r *Registry) TurnActiveReason(ref string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.refActiveReason[ref]
	return reason, ok
}

// PendingArtifactsByType returns the full content of every still-
// pending gen_ artifact of typeName, keyed by ref (spec §4.5 section
// 13: write/generate/analyze steps see the artifacts relevant to their
// subdomain).
func (r *Registry) PendingArtifactsByType(typeName string) map[string]map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]map[string]any{}
	for ref, content := range r.pendingArtifacts {
		if r.refTypes[ref] == typeName {
			out[ref] = content
		}
	}
	return out
}

// AllRefs returns every ref the registry currently knows about
// (registered or pending), for diagnostics and context assembly.
func (r *Registry) AllRefs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for ref := range r.refTypes {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

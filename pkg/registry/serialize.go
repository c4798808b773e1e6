package registry

import (
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ToDict produces the deterministic, serializable snapshot consumed by
// FromDict (spec §3.3, property P2). Transient fields are excluded.
func (r *Registry) ToDict() types.RegistrySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := types.RegistrySnapshot{
		SessionID:         r.sessionID,
		CurrentTurn:       r.currentTurn,
		RefToUUID:         copyStringMap(r.refToUUID),
		UUIDToRef:         copyStringMap(r.uuidToRef),
		Counters:          copyIntMap(r.counters),
		GenCounters:       copyIntMap(r.genCounters),
		PendingArtifacts:  make(map[string]map[string]any, len(r.pendingArtifacts)),
		RefActions:        make(map[string]types.ActionTag, len(r.refActions)),
		RefLabels:         copyStringMap(r.refLabels),
		RefTypes:          copyStringMap(r.refTypes),
		RefDetailTracking: make(map[string]types.DetailEntry, len(r.refDetailTracking)),
		RefTurnCreated:    copyIntMap(r.refTurnCreated),
		RefTurnLastRef:    copyIntMap(r.refTurnLastRef),
		RefSourceStep:     copyIntMap(r.refSourceStep),
		RefTurnPromoted:   copyIntMap(r.refTurnPromoted),
		RefActiveReason:   copyStringMap(r.refActiveReason),
	}
	for k, v := range r.pendingArtifacts {
		cp := make(map[string]any, len(v))
		for kk, vv := range v {
			cp[kk] = vv
		}
		snap.PendingArtifacts[k] = cp
	}
	for k, v := range r.refActions {
		snap.RefActions[k] = v
	}
	for k, v := range r.refDetailTracking {
		snap.RefDetailTracking[k] = v
	}
	return snap
}

// FromDict restores a registry from a snapshot produced by ToDict. The
// resulting registry is behaviorally indistinguishable from the
// original on all public operations except the transient queues
// (property P2).
func FromDict(snap types.RegistrySnapshot, d domain.Domain) *Registry {
	r := New(snap.SessionID, d)
	r.currentTurn = snap.CurrentTurn
	r.refToUUID = copyStringMap(snap.RefToUUID)
	r.uuidToRef = copyStringMap(snap.UUIDToRef)
	r.counters = copyIntMap(snap.Counters)
	r.genCounters = copyIntMap(snap.GenCounters)
	r.refLabels = copyStringMap(snap.RefLabels)
	r.refTypes = copyStringMap(snap.RefTypes)
	r.refTurnCreated = copyIntMap(snap.RefTurnCreated)
	r.refTurnLastRef = copyIntMap(snap.RefTurnLastRef)
	r.refSourceStep = copyIntMap(snap.RefSourceStep)
	r.refTurnPromoted = copyIntMap(snap.RefTurnPromoted)
	r.refActiveReason = copyStringMap(snap.RefActiveReason)

	r.pendingArtifacts = make(map[string]map[string]any, len(snap.PendingArtifacts))
	for k, v := range snap.PendingArtifacts {
		cp := make(map[string]any, len(v))
		for kk, vv := range v {
			cp[kk] = vv
		}
		r.pendingArtifacts[k] = cp
	}
	r.refActions = make(map[string]types.ActionTag, len(snap.RefActions))
	for k, v := range snap.RefActions {
		r.refActions[k] = v
	}
	r.refDetailTracking = make(map[string]types.DetailEntry, len(snap.RefDetailTracking))
	for k, v := range snap.RefDetailTracking {
		r.refDetailTracking[k] = v
	}
	return r
}

// Package registry implements the session id registry (spec §3.3,
// §4.1): the bidirectional UUID<->ref mapping plus the temporal,
// detail, and pending-artifact tracking layered on top of it.
//
// The registry owns no suspension points (spec §5): every exported
// method here is synchronous and touches no database or LLM, so it is
// safe to treat as atomic from the caller's point of view. The caller
// (pkg/pipeline) is responsible for serializing access across turns of
// the same session (spec §5, "Shared resources").
package registry

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jv92admin/alfredagain-sub002/pkg/aerrors"
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// Registry is the per-session entity-tracking store (spec §3.3). It
// consults the domain for label computation, detail-level
// classification, and FK/UUID field metadata, but performs no database
// or LLM I/O itself.
type Registry struct {
	mu sync.Mutex

	domain domain.Domain

	sessionID   string
	currentTurn int

	refToUUID map[string]string
	uuidToRef map[string]string

	counters    map[string]int
	genCounters map[string]int

	pendingArtifacts map[string]map[string]any

	refActions map[string]types.ActionTag
	refLabels  map[string]string
	refTypes   map[string]string

	refDetailTracking map[string]types.DetailEntry

	refTurnCreated  map[string]int
	refTurnLastRef  map[string]int
	refSourceStep   map[string]int
	refTurnPromoted map[string]int

	refActiveReason map[string]string

	// transient, never serialized (spec §3.3)
	lazyEnrichQueue  map[string]types.EnrichTarget
	lastSnapshotRefs map[string]bool
}

// New creates an empty registry for a fresh session.
func New(sessionID string, d domain.Domain) *Registry {
	return &Registry{
		domain:            d,
		sessionID:         sessionID,
		refToUUID:         map[string]string{},
		uuidToRef:         map[string]string{},
		counters:          map[string]int{},
		genCounters:       map[string]int{},
		pendingArtifacts:  map[string]map[string]any{},
		refActions:        map[string]types.ActionTag{},
		refLabels:         map[string]string{},
		refTypes:          map[string]string{},
		refDetailTracking: map[string]types.DetailEntry{},
		refTurnCreated:    map[string]int{},
		refTurnLastRef:    map[string]int{},
		refSourceStep:     map[string]int{},
		refTurnPromoted:   map[string]int{},
		refActiveReason:   map[string]string{},
		lazyEnrichQueue:   map[string]types.EnrichTarget{},
		lastSnapshotRefs:  map[string]bool{},
	}
}

// BeginTurn advances the turn counter. The pipeline calls this once per
// turn before Understand runs.
func (r *Registry) BeginTurn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentTurn++
	return r.currentTurn
}

// CurrentTurn returns the turn number set by the most recent BeginTurn.
func (r *Registry) CurrentTurn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTurn
}

// IsRef reports whether s has ref shape: contains "_", its last
// underscore segment parses as a non-negative integer, and it is not
// UUID-shaped (36 chars, exactly 4 hyphens). This heuristic is a hard
// contract the CRUD layer depends on (spec §4.1).
func IsRef(s string) bool {
	if isUUIDShape(s) {
		return false
	}
	idx := strings.LastIndex(s, "_")
	if idx < 0 || idx == len(s)-1 {
		return false
	}
	tail := s[idx+1:]
	n, err := strconv.Atoi(tail)
	if err != nil || n < 0 {
		return false
	}
	return true
}

func isUUIDShape(s string) bool {
	if len(s) != 36 {
		return false
	}
	return strings.Count(s, "-") == 4
}

// TypeNameOf extracts the type-name prefix from a ref, stripping a
// leading "gen_" if present.
func TypeNameOf(ref string) string {
	ref = strings.TrimPrefix(ref, "gen_")
	idx := strings.LastIndex(ref, "_")
	if idx < 0 {
		return ref
	}
	return ref[:idx]
}

// IsGeneratedRef reports whether ref has the "gen_" prefix.
func IsGeneratedRef(ref string) bool {
	return strings.HasPrefix(ref, "gen_")
}

func (r *Registry) nextCounter(typeName string, generated bool) int {
	if generated {
		r.genCounters[typeName]++
		return r.genCounters[typeName]
	}
	r.counters[typeName]++
	return r.counters[typeName]
}

func (r *Registry) allocateRef(typeName string, generated bool) string {
	n := r.nextCounter(typeName, generated)
	if generated {
		return fmt.Sprintf("gen_%s_%d", typeName, n)
	}
	return fmt.Sprintf("%s_%d", typeName, n)
}

// computeLabel delegates to the domain, falling back to
// primary_field -> "title" -> the ref itself (spec §4.1).
func (r *Registry) computeLabel(record map[string]any, typeName, ref string) string {
	if r.domain != nil {
		if l := r.domain.ComputeEntityLabel(record, typeName); l != "" {
			return l
		}
	}
	entities := map[string]types.EntityDefinition{}
	if r.domain != nil {
		entities = r.domain.Entities()
	}
	primary := "name"
	for _, def := range entities {
		if def.TypeName == typeName {
			primary = def.PrimaryFieldOrDefault()
			break
		}
	}
	if v, ok := record[primary]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if v, ok := record["title"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ref
}

func (r *Registry) recordDetail(typeName string, ref string, record map[string]any) {
	if r.domain == nil {
		return
	}
	lvl := r.domain.DetectDetailLevel(typeName, record)
	if lvl == nil {
		return
	}
	entry := types.DetailEntry{Level: *lvl}
	if *lvl == types.DetailFull {
		entry.FullTurn = r.currentTurn
	} else if prev, ok := r.refDetailTracking[ref]; ok {
		entry.FullTurn = prev.FullTurn
	}
	r.refDetailTracking[ref] = entry
}

// GetEntityData returns pending_artifacts[ref], or nil if absent
// (spec §4.1).
func (r *Registry) GetEntityData(ref string) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.pendingArtifacts[ref]; ok {
		return v
	}
	return nil
}

// UUIDOf returns the UUID a ref currently maps to, or ("", false) if
// the ref is unknown.
func (r *Registry) UUIDOf(ref string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.refToUUID[ref]
	return u, ok
}

// RefOf returns the ref a UUID currently maps to, or ("", false) if
// none is registered.
func (r *Registry) RefOf(uuid string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.uuidToRef[uuid]
	return ref, ok
}

// SetActiveReason pins a ref past the recency window (spec §4.1).
func (r *Registry) SetActiveReason(ref, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refActiveReason[ref] = reason
}

// ClearActiveReason removes a ref's retention reason.
func (r *Registry) ClearActiveReason(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refActiveReason, ref)
}

// RemoveRef deletes a ref's mapping and label (spec §3.3, "delete"
// lifecycle: counters are untouched, I5).
func (r *Registry) RemoveRef(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.refToUUID[ref]; ok {
		delete(r.uuidToRef, u)
	}
	delete(r.refToUUID, ref)
	delete(r.refLabels, ref)
	delete(r.refActiveReason, ref)
	if action, ok := r.refActions[ref]; ok {
		r.refActions[ref] = types.ActionDeleted
		_ = action
	}
}

// GetLazyEnrichQueue returns the pending FK-enrichment lookups
// (spec §4.1, §4.3.1).
func (r *Registry) GetLazyEnrichQueue() map[string]types.EnrichTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]types.EnrichTarget, len(r.lazyEnrichQueue))
	for k, v := range r.lazyEnrichQueue {
		out[k] = v
	}
	return out
}

// ApplyEnrichment writes resolved labels for queued FK targets and
// clears them from the queue (spec §4.1). Idempotent (P7): re-applying
// an already-applied map is a no-op beyond overwriting the same label.
func (r *Registry) ApplyEnrichment(labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, label := range labels {
		if _, queued := r.lazyEnrichQueue[ref]; !queued {
			continue
		}
		r.refLabels[ref] = label
		delete(r.lazyEnrichQueue, ref)
	}
}

// ClearTurnPromotedArtifacts removes pending_artifacts for every ref
// promoted this turn (action flipped generated -> created), per
// Summarize's post-turn cleanup (spec §3.3 I4, §4.6.2).
func (r *Registry) ClearTurnPromotedArtifacts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, turn := range r.refTurnPromoted {
		if turn == r.currentTurn {
			delete(r.pendingArtifacts, ref)
		}
	}
}

// UnsafeUnknownRef builds the standard UnknownRef error for a ref that
// failed lookup during translation.
func UnsafeUnknownRef(ref string) error {
	return &aerrors.UnknownRefError{Ref: ref}
}

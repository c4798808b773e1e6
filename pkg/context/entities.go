// Package context assembles the three logical layers of conversational
// context — entity, conversation, reasoning — into the per-node blocks
// consumed by prompt assembly (spec §4.4). It performs no LLM calls and
// no database I/O itself; the token-based compression policy is the
// only nontrivial logic it owns, grounded on hector's
// pkg/memory.SummaryBufferStrategy token-budget/drop-tail approach
// (adapted here to drop whole *sections* by priority rather than
// individual messages, via pkg/tokenbudget.FitSections).
package context

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// DefaultTurnsWindow is the recency window for the "active" entity tier
// (spec §4.4).
const DefaultTurnsWindow = 2

// EntityTier is which of the entity-context buckets a ref renders into
// (spec §4.4).
type EntityTier string

const (
	TierGenerated EntityTier = "generated"
	TierActive    EntityTier = "active"
	TierRetained  EntityTier = "retained"
	TierLinked    EntityTier = "linked"
	TierUIReported EntityTier = "ui_reported"
)

// ClassifyEntities buckets every ref the registry knows about into the
// generated/active/retained tiers (spec §4.4). A ref renders in only
// one tier, by priority generated > active > retained — a freshly
// generated artifact is always more salient than stale recency alone.
func ClassifyEntities(reg *registry.Registry, turnsWindow int) (generated, active, retained []string) {
	if turnsWindow <= 0 {
		turnsWindow = DefaultTurnsWindow
	}
	recent, retainedRefs := reg.GetActiveEntities(turnsWindow)

	rendered := map[string]bool{}
	for _, ref := range reg.AllRefs() {
		if reg.ActionOf(ref) == types.ActionGenerated && reg.GetEntityData(ref) != nil {
			generated = append(generated, ref)
			rendered[ref] = true
		}
	}
	for _, ref := range recent {
		if rendered[ref] {
			continue
		}
		active = append(active, ref)
		rendered[ref] = true
	}
	for _, ref := range retainedRefs {
		if rendered[ref] {
			continue
		}
		retained = append(retained, ref)
		rendered[ref] = true
	}
	sort.Strings(generated)
	sort.Strings(active)
	sort.Strings(retained)
	return generated, active, retained
}

// RenderEntityLine formats one ref for the given tier, per the abstract
// layout shown in spec §4.4 (e.g. "gen_recipe_1 — Thai Curry [needs
// save]", "recipe_3 — Paneer Tikka [read:full] T3").
func RenderEntityLine(reg *registry.Registry, d domain.Domain, ref string, tier EntityTier) string {
	label := reg.Label(ref)
	if label == "" {
		label = ref
	}
	switch tier {
	case TierGenerated:
		markers := ""
		if d != nil {
			markers = strings.Join(d.GetGeneratedContentMarkers(), " ")
		}
		return strings.TrimSpace(fmt.Sprintf("%s — %s %s", ref, label, markers))
	case TierActive:
		suffix := ""
		if de, ok := reg.DetailOf(ref); ok {
			suffix = fmt.Sprintf(" [%s:%s]", reg.ActionOf(ref), de.Level)
		} else if action := reg.ActionOf(ref); action != "" {
			suffix = fmt.Sprintf(" [%s]", action)
		}
		return fmt.Sprintf("%s — %s%s T%d", ref, label, suffix, reg.TurnLastRef(ref))
	case TierRetained:
		extra := ""
		if reason, ok := reg.TurnActiveReason(ref); ok && reason != "" {
			extra = fmt.Sprintf(" — %q", reason)
		}
		return fmt.Sprintf("%s — %s (turn %d)%s", ref, label, reg.TurnLastRef(ref), extra)
	case TierLinked:
		return fmt.Sprintf("%s — %s [linked]", ref, label)
	case TierUIReported:
		return fmt.Sprintf("%s — %s [%s]", ref, label, reg.ActionOf(ref))
	default:
		return fmt.Sprintf("%s — %s", ref, label)
	}
}

// RenderEntityContext renders the three-tier entity context block used
// by Think/Router and, as a base, by Understand (spec §4.4).
func RenderEntityContext(reg *registry.Registry, d domain.Domain, turnsWindow int) string {
	generated, active, retained := ClassifyEntities(reg, turnsWindow)
	if turnsWindow <= 0 {
		turnsWindow = DefaultTurnsWindow
	}

	var b strings.Builder
	if len(generated) > 0 {
		b.WriteString("Generated (NOT YET SAVED):\n")
		for _, ref := range generated {
			b.WriteString("  " + RenderEntityLine(reg, d, ref, TierGenerated) + "\n")
		}
	}
	if len(active) > 0 {
		b.WriteString(fmt.Sprintf("Active (last %d turns):\n", turnsWindow))
		for _, ref := range active {
			b.WriteString("  " + RenderEntityLine(reg, d, ref, TierActive) + "\n")
		}
	}
	if len(retained) > 0 {
		b.WriteString("Long-Term (retained):\n")
		for _, ref := range retained {
			b.WriteString("  " + RenderEntityLine(reg, d, ref, TierRetained) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderActEntityContext is Act's richer, 5-section entity rendering
// (spec §4.5, user-prompt section 12): the three Think tiers plus two
// Act-specific sections — FK-linked entities awaiting enrichment, and
// entities reported directly by the frontend this session (UI actions
// carry the ":user" suffix). Act needs both to reason about rows it
// didn't read itself.
func RenderActEntityContext(reg *registry.Registry, d domain.Domain, turnsWindow int) string {
	base := RenderEntityContext(reg, d, turnsWindow)

	var linked, uiReported []string
	for _, ref := range reg.AllRefs() {
		switch reg.ActionOf(ref) {
		case types.ActionLinked:
			linked = append(linked, ref)
		case types.ActionCreatedUser, types.ActionUpdatedUser, types.ActionDeletedUser, types.ActionMentionedUser:
			uiReported = append(uiReported, ref)
		}
	}
	sort.Strings(linked)
	sort.Strings(uiReported)

	var b strings.Builder
	b.WriteString(base)
	if len(linked) > 0 {
		b.WriteString("\nLinked (referenced, not yet detailed):\n")
		for _, ref := range linked {
			b.WriteString("  " + RenderEntityLine(reg, d, ref, TierLinked) + "\n")
		}
	}
	if len(uiReported) > 0 {
		b.WriteString("\nReported by user interface this session:\n")
		for _, ref := range uiReported {
			b.WriteString("  " + RenderEntityLine(reg, d, ref, TierUIReported) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

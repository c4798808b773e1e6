// Package prompt implements the fallback chain and template cache
// described in spec §4.5: for every node, a domain full-replacement
// takes priority, otherwise a built-in template is populated with
// domain-supplied context/guidance strings and a domain injection is
// appended.
//
// Grounded on hector's agent.DefaultPromptService.BuildPromptFromParts
// (text/template over a fixed slot layout) and
// pkg/reasoning.PromptSlots (named slots merged by precedence, empty
// values falling through). Templates are parsed once and cached for
// the life of the process (spec §4.5, "no hot reload"), the same
// pattern hector's backbone template uses via a package-level
// `template.New(...).Parse(...)` call — generalized here into a
// sync.Once-guarded cache since there are four built-in node templates
// instead of one.
package prompt

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Node names used as cache keys and passed to the domain's per-node
// hooks (spec §4.5).
const (
	NodeUnderstand = "understand"
	NodeThink      = "think"
	NodeAct        = "act"
	NodeReply      = "reply"
	NodeRouter     = "router"
)

const understandTemplateSrc = `You are managing conversational memory and routing for this turn.

{{.Context}}

{{.DomainContext}}

Decide what to retain, demote, or drop from the entity context above, whether this is answerable as a quick single-table read, and whether you need to ask a clarifying or disambiguating question before proceeding.

Also tag requested_action with the verb the user's message itself asks for: "write" if they're asking to create, update, or delete something, "read" otherwise. This is independent of how the request ends up being planned — it's a record of what was asked.`

const thinkTemplateSrc = `You are planning the steps needed to satisfy the user's request.

{{.Context}}

{{.DomainContext}}

{{.PlanningGuide}}

Produce a goal, an ordered list of steps (each one of read/analyze/generate/write), and a decision: plan_direct, propose, or clarify.`

const replyTemplateSrc = `You are composing the user-facing response for this turn.

{{.Context}}

{{.DomainContext}}

{{.SubdomainGuide}}

Write a natural response describing what happened this turn. Never include raw UUIDs or internal ref names.`

const routerTemplateSrc = `You are dispatching this turn to the right downstream agent.

{{.Context}}

{{.DomainContext}}

{{.RouterInjection}}

This node is currently bypassed by default (spec §9); when re-enabled, choose the agent best suited to handle the request.`

var (
	cacheOnce sync.Once
	cacheMu   sync.RWMutex
	cache     map[string]*template.Template
)

func builtinSource(node string) (string, error) {
	switch node {
	case NodeUnderstand:
		return understandTemplateSrc, nil
	case NodeThink:
		return thinkTemplateSrc, nil
	case NodeReply:
		return replyTemplateSrc, nil
	case NodeRouter:
		return routerTemplateSrc, nil
	default:
		return "", fmt.Errorf("prompt: no built-in template for node %q", node)
	}
}

// templateFor returns the parsed, cached built-in template for node,
// parsing it on first use only (spec §4.5).
func templateFor(node string) (*template.Template, error) {
	cacheOnce.Do(func() {
		cache = make(map[string]*template.Template)
	})

	cacheMu.RLock()
	t, ok := cache[node]
	cacheMu.RUnlock()
	if ok {
		return t, nil
	}

	src, err := builtinSource(node)
	if err != nil {
		return nil, err
	}
	t, err = template.New(node).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("prompt: parsing template for node %q: %w", node, err)
	}

	cacheMu.Lock()
	cache[node] = t
	cacheMu.Unlock()
	return t, nil
}

func renderTemplate(node string, data map[string]any) (string, error) {
	t, err := templateFor(node)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("prompt: executing template for node %q: %w", node, err)
	}
	return strings.TrimSpace(b.String()), nil
}

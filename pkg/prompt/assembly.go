package prompt

import (
	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
)

// Assembler builds node prompts following the three-step fallback
// chain (spec §4.5): domain full replacement, else built-in template
// plus domain context, then an appended domain injection.
type Assembler struct {
	Domain domain.Domain
}

// NewAssembler returns an Assembler backed by d. d may be nil in tests
// that only exercise the built-in templates with no domain hooks.
func NewAssembler(d domain.Domain) *Assembler {
	return &Assembler{Domain: d}
}

func (a *Assembler) domainPromptContent(node string, args domain.PromptArgs) string {
	if a.Domain == nil {
		return ""
	}
	return a.Domain.GetNodePromptContent(node, args)
}

func (a *Assembler) domainContext(node string, args domain.PromptArgs) string {
	if a.Domain == nil {
		return ""
	}
	return a.Domain.GetNodeDomainContext(node, args)
}

func (a *Assembler) injection(node string, args domain.PromptArgs) string {
	if a.Domain == nil {
		return ""
	}
	return a.Domain.GetNodePromptInjection(node, args)
}

func (a *Assembler) appendInjection(node string, args domain.PromptArgs, body string) string {
	if inj := a.injection(node, args); inj != "" {
		return body + "\n\n" + inj
	}
	return body
}

// BuildUnderstandPrompt assembles Understand's prompt (spec §4.5).
func (a *Assembler) BuildUnderstandPrompt(args domain.PromptArgs, contextBlock string) (string, error) {
	if full := a.domainPromptContent(NodeUnderstand, args); full != "" {
		return full, nil
	}
	body, err := renderTemplate(NodeUnderstand, map[string]any{
		"Context":       contextBlock,
		"DomainContext": a.domainContext(NodeUnderstand, args),
	})
	if err != nil {
		return "", err
	}
	return a.appendInjection(NodeUnderstand, args, body), nil
}

// BuildThinkPrompt assembles Think's prompt, additionally substituting
// the domain's planning guide (spec §4.5).
func (a *Assembler) BuildThinkPrompt(args domain.PromptArgs, contextBlock string) (string, error) {
	if full := a.domainPromptContent(NodeThink, args); full != "" {
		return full, nil
	}
	planningGuide := ""
	if a.Domain != nil {
		planningGuide = a.Domain.GetThinkPlanningGuide(args)
	}
	body, err := renderTemplate(NodeThink, map[string]any{
		"Context":       contextBlock,
		"DomainContext": a.domainContext(NodeThink, args),
		"PlanningGuide": planningGuide,
	})
	if err != nil {
		return "", err
	}
	return a.appendInjection(NodeThink, args, body), nil
}

// BuildReplyPrompt assembles Reply's prompt, additionally substituting
// the domain's subdomain guide (spec §4.5).
func (a *Assembler) BuildReplyPrompt(args domain.PromptArgs, contextBlock string) (string, error) {
	if full := a.domainPromptContent(NodeReply, args); full != "" {
		return full, nil
	}
	subdomainGuide := ""
	if a.Domain != nil {
		subdomainGuide = a.Domain.GetReplySubdomainGuide(args)
	}
	body, err := renderTemplate(NodeReply, map[string]any{
		"Context":        contextBlock,
		"DomainContext":  a.domainContext(NodeReply, args),
		"SubdomainGuide": subdomainGuide,
	})
	if err != nil {
		return "", err
	}
	return a.appendInjection(NodeReply, args, body), nil
}

// BuildRouterPrompt assembles Router's prompt injection point. Router
// is bypassed by default (spec §9); this exists for its reserved
// re-enablement path.
func (a *Assembler) BuildRouterPrompt(args domain.PromptArgs, contextBlock string) (string, error) {
	if full := a.domainPromptContent(NodeRouter, args); full != "" {
		return full, nil
	}
	routerInjection := ""
	if a.Domain != nil {
		routerInjection = a.Domain.GetRouterPromptInjection(args)
	}
	body, err := renderTemplate(NodeRouter, map[string]any{
		"Context":         contextBlock,
		"DomainContext":   a.domainContext(NodeRouter, args),
		"RouterInjection": routerInjection,
	})
	if err != nil {
		return "", err
	}
	return a.appendInjection(NodeRouter, args, body), nil
}

// systemPrompt returns the domain's system prompt, falling back to a
// generic line if the domain supplies none.
func (a *Assembler) systemPrompt() string {
	if a.Domain == nil {
		return ""
	}
	if s := a.Domain.GetSystemPrompt(); s != "" {
		return s
	}
	return "You are a helpful assistant."
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

// Package tokenbudget provides accurate token counting and
// budget-fitting for context assembly (spec §4.4), grounded on
// hector's pkg/utils.TokenCounter.
package tokenbudget

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	cacheMu       sync.RWMutex
)

// Counter counts tokens for one model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

// NewCounter returns a Counter for model, falling back to cl100k_base
// when the model has no registered encoding (e.g. a Claude model name,
// which tiktoken-go does not know natively).
func NewCounter(model string) (*Counter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &Counter{encoding: cached}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tokenbudget: loading fallback encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = enc
	cacheMu.Unlock()
	return &Counter{encoding: enc}, nil
}

// Count returns the token count for text.
func (c *Counter) Count(text string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// Section is one named, pre-rendered block of context competing for a
// shared token budget.
type Section struct {
	Name string
	Text string
	// Priority orders sections from highest (kept first) to lowest
	// (dropped first) when the budget is tight. Lower numbers are kept
	// preferentially.
	Priority int
}

// FitSections implements spec §4.4's drop-tail-first budget policy:
// sections are sorted by Priority (ascending, so priority 0 survives
// longest), and dropped from the lowest-priority end until the
// remaining sections fit within maxTokens.
func (c *Counter) FitSections(sections []Section, maxTokens int) []Section {
	ordered := make([]Section, len(sections))
	copy(ordered, sections)
	sortByPriority(ordered)

	total := 0
	kept := make([]Section, 0, len(ordered))
	for _, s := range ordered {
		n := c.Count(s.Text)
		if total+n > maxTokens && len(kept) > 0 {
			break
		}
		kept = append(kept, s)
		total += n
	}
	return kept
}

func sortByPriority(sections []Section) {
	for i := 1; i < len(sections); i++ {
		for j := i; j > 0 && sections[j].Priority < sections[j-1].Priority; j-- {
			sections[j], sections[j-1] = sections[j-1], sections[j]
		}
	}
}

package llmboundary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/jv92admin/alfredagain-sub002/pkg/aerrors"
	"github.com/jv92admin/alfredagain-sub002/pkg/observability"
)

// Complexity hints call_llm about which model tier a node's request
// needs (spec §4.8). This is distinct from types.Complexity, which
// hints Think about an entity type's planning weight.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ModelTiers maps each complexity to a concrete model name. The
// default table below is overridden by pkg/config at process start.
type ModelTiers map[Complexity]string

func DefaultModelTiers() ModelTiers {
	return ModelTiers{
		ComplexityLow:    "claude-haiku-4-5",
		ComplexityMedium: "claude-sonnet-4-5",
		ComplexityHigh:   "claude-opus-4-1",
	}
}

func (t ModelTiers) modelFor(c Complexity) string {
	if m, ok := t[c]; ok && m != "" {
		return m
	}
	return t[ComplexityMedium]
}

// Boundary is the sole crossing point between the pipeline and the LLM
// service (spec §4.8, "Explicitly out of scope... the LLM service
// (accessed through a call_llm boundary)").
type Boundary struct {
	Provider   Provider
	Tiers      ModelTiers
	MaxRetries int
	Metrics    *observability.Metrics
}

// NewBoundary returns a Boundary with the default model tiers and two
// bounded structured-output retries (spec §4.8, "retry on schema
// violation, bounded").
func NewBoundary(p Provider) *Boundary {
	return &Boundary{
		Provider:   p,
		Tiers:      DefaultModelTiers(),
		MaxRetries: 2,
		Metrics:    observability.NoopMetrics(),
	}
}

// CallLLM implements call_llm (spec §4.8): it builds the schema
// instruction for out's type, issues the request, decodes the
// response into out, and retries with a correction message appended
// when decoding or schema validation fails, up to MaxRetries times.
func (b *Boundary) CallLLM(ctx context.Context, node, systemPrompt, userPrompt string, complexity Complexity, out any) error {
	model := b.Tiers.modelFor(complexity)
	schema, err := schemaFor(out)
	if err != nil {
		return err
	}

	ctx, span := observability.StartLLMCallSpan(ctx, node, model, string(complexity))
	defer span.End()

	system := systemPrompt + "\n\nRespond with a single JSON object matching exactly this schema, no prose before or after it:\n\n" + schema
	user := userPrompt

	var lastErr error
	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		start := time.Now()
		resp, err := b.Provider.Generate(ctx, model, []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		})
		if err != nil {
			b.Metrics.ObserveLLMCall(node, model, "provider_error", time.Since(start), 0, 0)
			return fmt.Errorf("llmboundary: %s: provider call failed: %w", node, err)
		}

		decodeErr := decodeStructured(resp.Text, out)
		if decodeErr == nil {
			b.Metrics.ObserveLLMCall(node, model, "ok", time.Since(start), resp.InputTokens, resp.OutputTokens)
			return nil
		}

		b.Metrics.ObserveLLMCall(node, model, "schema_mismatch", time.Since(start), resp.InputTokens, resp.OutputTokens)
		lastErr = decodeErr
		user = userPrompt + fmt.Sprintf(
			"\n\nYour previous response could not be parsed against the required schema: %v\nRespond again with only the corrected JSON object.",
			decodeErr,
		)
	}

	return &aerrors.SchemaMismatchError{Node: node, Retries: b.MaxRetries, Cause: lastErr}
}

// decodeStructured extracts a JSON object from text (tolerating
// markdown code fences some models wrap responses in) and decodes it
// into out via mapstructure, the same WeaklyTypedInput decoder pattern
// pkg/crud uses to decode loosely-typed tool-call payloads.
func decodeStructured(text string, out any) error {
	raw := extractJSONObject(text)
	if raw == "" {
		return fmt.Errorf("no JSON object found in response")
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("building output decoder: %w", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return fmt.Errorf("decoding into output type: %w", err)
	}
	return nil
}

func extractJSONObject(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

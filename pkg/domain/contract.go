// Package domain declares the abstract contract every domain module
// must implement (spec §4.7). Core packages depend only on the Domain
// interface defined here; they never import a concrete domain package
// (spec §4.7, last line).
//
// Unlike hector's process-wide mutable domain/plugin registries, a
// Domain is passed explicitly to the engine constructor (see
// pkg/alfred.New) rather than registered into a package-level global —
// per spec §9's design note, test suites build an engine around a stub
// Domain instead of mutating global state.
package domain

import (
	"context"

	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// BypassHandler implements a domain bypass mode (spec §4.9): given the
// raw message and current conversation, it streams its own events and
// returns the final (response, updated conversation) pair, replacing
// the graph entirely.
type BypassHandler func(ctx context.Context, message string, conv types.ConversationContext, events chan<- types.Event) (string, types.ConversationContext, error)

// CrudMiddleware is optional domain code that runs inside execute_crud
// to enrich reads/writes with query intelligence (spec §4.3 step 3,
// §9). Implementations document, per middleware, whether/how
// PreFilterIDs are applied — the spec leaves this domain-decided.
type CrudMiddleware interface {
	// PreRead runs before a db_read is translated to the adapter. It
	// may rewrite params, add extra select/join clauses, narrow the
	// result via PreFilterIDs/OrConditions, or short-circuit to an
	// empty result.
	PreRead(ctx context.Context, table string, params types.DbReadParams) (types.ReadPreprocessResult, error)

	// PreWrite runs before a db_create/db_update batch is sent to the
	// adapter.
	PreWrite(ctx context.Context, table string, records []map[string]any) (types.WritePreprocessResult, error)
}

// Domain is the full abstract surface a domain module supplies
// (spec §4.7).
type Domain interface {
	// Identity
	Name() string
	Entities() map[string]types.EntityDefinition      // table -> definition
	Subdomains() map[string]types.SubdomainDefinition  // name -> definition

	// Labels
	ComputeEntityLabel(record map[string]any, typeName string) string
	DetectDetailLevel(typeName string, record map[string]any) *types.DetailLevel
	InferEntityTypeFromArtifact(artifact map[string]any) string
	GetSubdomainAliases() map[string]string

	// Schema
	GetFieldEnums(table string) map[string][]string
	GetFallbackSchemas() map[string]map[string]any
	GetSemanticNotes(table string) string
	GetScopeConfig() ScopeConfig
	GetUserOwnedTables() map[string]bool
	GetUUIDFields(table string) map[string]bool
	GetFKEnrichMap(table string) map[string]FKEnrich
	GetSubdomainRegistry() map[string]types.SubdomainDefinition
	GetSubdomainExamples(subdomain string) []string
	GetTableFormat(table string) string
	GetEmptyResponse(subdomain string) string

	// CRUD
	GetCrudMiddleware(table string) CrudMiddleware // nil if none
	GetDBAdapter() types.Adapter
	// DeduplicateBatch collapses duplicate records from a write batch
	// before it reaches the adapter (spec §4.3 step 5). The default
	// domain behavior is typically identity; domains with natural keys
	// override this to merge repeats within one LLM turn.
	DeduplicateBatch(table string, records []map[string]any) []map[string]any

	// Prompts: full-replacement or template-injection pair, per node.
	GetSystemPrompt() string
	GetNodePromptContent(node string, args PromptArgs) string          // "" falls through to template
	GetNodeDomainContext(node string, args PromptArgs) string
	GetThinkPlanningGuide(args PromptArgs) string
	GetReplySubdomainGuide(args PromptArgs) string
	GetRouterPromptInjection(args PromptArgs) string
	GetNodePromptInjection(node string, args PromptArgs) string

	// User context
	GetUserProfile(ctx context.Context, userID string) string
	GetDomainSnapshot(ctx context.Context, userID string) string
	GetSubdomainGuidance(subdomain string) string

	// Modes
	BypassModes() map[string]BypassHandler
	DefaultAgent() string
	GetHandoffResultModel() string

	// Reply formatting
	GetSubdomainFormatters() map[string]QuickReplyFormatter
	GetStripFields(table string) []string
	GetPriorityFields(table string) []string
	FormatEntityForContext(ref string, record map[string]any, typeName string) string
	FormatRecordForContext(table string, record map[string]any) string
	GetQuickWriteConfirmation(table string, action string, label string) string
	GetGeneratedContentMarkers() []string
	GetRelevantEntityTypes(subdomain string) []string
	GetEntityDataLegend() string
	GetArchiveKeysForSubdomain(subdomain string) []string
}

// QuickReplyFormatter renders a deterministic Reply for a quick-mode
// read result; ActQuick/Reply fall back to the LLM when it returns
// ok=false (spec §4.6.2, Reply node).
type QuickReplyFormatter func(records []map[string]any) (response string, ok bool)

// FKEnrich describes one foreign-key lazy-enrichment target
// (spec §4.3.1).
type FKEnrich struct {
	Table      string
	NameColumn string
}

// ScopeConfig groups the row-level scoping knobs the domain exposes.
type ScopeConfig struct {
	UserIDColumn string // defaults to "user_id" when empty
}

// PromptArgs bundles the arguments passed into every prompt-content /
// domain-context hook (spec §4.5). Concrete fields are populated by
// pkg/prompt from the current PipelineState/ConversationContext.
type PromptArgs struct {
	UserID         string
	ConversationID string
	CurrentTurn    int
	Mode           types.Mode
	Extra          map[string]any
}

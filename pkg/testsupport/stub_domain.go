// Package testsupport provides the stub domain and fake adapter used
// by the core packages' own tests, and by the end-to-end scenarios in
// pkg/alfred (spec §8): an entity `things` (type_name "thing"), an
// entity `owners` (type_name "owner") consulted only for FK
// enrichment, and an in-memory adapter that records every call it
// receives.
package testsupport

import (
	"context"
	"fmt"

	"github.com/jv92admin/alfredagain-sub002/pkg/domain"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// StubDomain is a minimal domain.Domain implementation for tests. Every
// method not needed by a given test returns a zero value; tests that
// need more behavior wrap StubDomain and override individual methods.
type StubDomain struct {
	EntitiesMap   map[string]types.EntityDefinition
	Subdomain     map[string]types.SubdomainDefinition
	UserOwned     map[string]bool
	UUIDFields    map[string]map[string]bool
	FKEnrich      map[string]map[string]domain.FKEnrich
	Formatters    map[string]domain.QuickReplyFormatter
	Bypass        map[string]domain.BypassHandler
	Middleware    map[string]domain.CrudMiddleware
	Adapter       types.Adapter
}

// NewStubDomain returns a StubDomain preconfigured with a `things`
// entity owned by `owner_id`, matching the fake-adapter fixtures used
// throughout spec §8.
func NewStubDomain(adapter types.Adapter) *StubDomain {
	return &StubDomain{
		Adapter: adapter,
		EntitiesMap: map[string]types.EntityDefinition{
			"things": {
				TypeName:     "thing",
				Table:        "things",
				PrimaryField: "name",
				FKFields:     []string{"owner_id"},
			},
			"owners": {
				TypeName:     "owner",
				Table:        "owners",
				PrimaryField: "name",
			},
		},
		Subdomain: map[string]types.SubdomainDefinition{
			"things": {Name: "things", PrimaryTable: "things", Description: "the user's things"},
		},
		UserOwned: map[string]bool{"things": true},
		UUIDFields: map[string]map[string]bool{
			"things": {"owner_id": true},
		},
		FKEnrich: map[string]map[string]domain.FKEnrich{
			"things": {"owner_id": {Table: "owners", NameColumn: "name"}},
		},
		Formatters: map[string]domain.QuickReplyFormatter{},
		Bypass:     map[string]domain.BypassHandler{},
		Middleware: map[string]domain.CrudMiddleware{},
	}
}

func (s *StubDomain) Name() string { return "stub" }
func (s *StubDomain) Entities() map[string]types.EntityDefinition { return s.EntitiesMap }
func (s *StubDomain) Subdomains() map[string]types.SubdomainDefinition { return s.Subdomain }

func (s *StubDomain) ComputeEntityLabel(record map[string]any, typeName string) string {
	if v, ok := record["name"].(string); ok && v != "" {
		return v
	}
	return ""
}

func (s *StubDomain) DetectDetailLevel(typeName string, record map[string]any) *types.DetailLevel {
	return nil
}

func (s *StubDomain) InferEntityTypeFromArtifact(artifact map[string]any) string { return "thing" }
func (s *StubDomain) GetSubdomainAliases() map[string]string                    { return nil }

func (s *StubDomain) GetFieldEnums(table string) map[string][]string           { return nil }
func (s *StubDomain) GetFallbackSchemas() map[string]map[string]any            { return nil }
func (s *StubDomain) GetSemanticNotes(table string) string                     { return "" }
func (s *StubDomain) GetScopeConfig() domain.ScopeConfig                        { return domain.ScopeConfig{UserIDColumn: "owner_id"} }
func (s *StubDomain) GetUserOwnedTables() map[string]bool                       { return s.UserOwned }
func (s *StubDomain) GetUUIDFields(table string) map[string]bool               { return s.UUIDFields[table] }
func (s *StubDomain) GetFKEnrichMap(table string) map[string]domain.FKEnrich    { return s.FKEnrich[table] }
func (s *StubDomain) GetSubdomainRegistry() map[string]types.SubdomainDefinition { return s.Subdomain }
func (s *StubDomain) GetSubdomainExamples(subdomain string) []string           { return nil }
func (s *StubDomain) GetTableFormat(table string) string                       { return "" }
func (s *StubDomain) GetEmptyResponse(subdomain string) string                 { return "You don't have any of those yet." }

func (s *StubDomain) GetCrudMiddleware(table string) domain.CrudMiddleware { return s.Middleware[table] }
func (s *StubDomain) GetDBAdapter() types.Adapter                          { return s.Adapter }
func (s *StubDomain) DeduplicateBatch(table string, records []map[string]any) []map[string]any {
	return records
}

func (s *StubDomain) GetSystemPrompt() string { return "You are a helpful assistant." }
func (s *StubDomain) GetNodePromptContent(node string, args domain.PromptArgs) string { return "" }
func (s *StubDomain) GetNodeDomainContext(node string, args domain.PromptArgs) string { return "" }
func (s *StubDomain) GetThinkPlanningGuide(args domain.PromptArgs) string             { return "" }
func (s *StubDomain) GetReplySubdomainGuide(args domain.PromptArgs) string            { return "" }
func (s *StubDomain) GetRouterPromptInjection(args domain.PromptArgs) string          { return "" }
func (s *StubDomain) GetNodePromptInjection(node string, args domain.PromptArgs) string { return "" }

func (s *StubDomain) GetUserProfile(ctx context.Context, userID string) string    { return "" }
func (s *StubDomain) GetDomainSnapshot(ctx context.Context, userID string) string { return "" }
func (s *StubDomain) GetSubdomainGuidance(subdomain string) string                { return "" }

func (s *StubDomain) BypassModes() map[string]domain.BypassHandler { return s.Bypass }
func (s *StubDomain) DefaultAgent() string                          { return "assistant" }
func (s *StubDomain) GetHandoffResultModel() string                 { return "" }

func (s *StubDomain) GetSubdomainFormatters() map[string]domain.QuickReplyFormatter { return s.Formatters }
func (s *StubDomain) GetStripFields(table string) []string                          { return nil }
func (s *StubDomain) GetPriorityFields(table string) []string                       { return nil }
func (s *StubDomain) FormatEntityForContext(ref string, record map[string]any, typeName string) string {
	return fmt.Sprintf("%s: %v", ref, record["name"])
}
func (s *StubDomain) FormatRecordForContext(table string, record map[string]any) string {
	return fmt.Sprintf("%v", record)
}
func (s *StubDomain) GetQuickWriteConfirmation(table, action, label string) string {
	return fmt.Sprintf("%s %s: %s", action, table, label)
}
func (s *StubDomain) GetGeneratedContentMarkers() []string     { return []string{"[needs save]"} }
func (s *StubDomain) GetRelevantEntityTypes(subdomain string) []string { return []string{"thing"} }
func (s *StubDomain) GetEntityDataLegend() string               { return "" }
func (s *StubDomain) GetArchiveKeysForSubdomain(subdomain string) []string { return nil }

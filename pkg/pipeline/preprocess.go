package pipeline

import (
	"context"
	"regexp"

	"github.com/jv92admin/alfredagain-sub002/pkg/registry"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// mentionPattern matches `@[Label](type:uuid)` (spec §4.6.1).
var mentionPattern = regexp.MustCompile(`@\[([^\]]+)\]\(([a-zA-Z0-9_]+):([0-9a-fA-F-]+)\)`)

// preprocess runs the two pre-Understand ingestion steps (spec
// §4.6.1): UI-change registration and @-mention resolution. Both
// mutate reg directly and append to ps.StepResults under the sentinel
// step index -1 so Act's "previous-turn results" rendering sees them
// without a dedicated section.
func (p *Pipeline) preprocess(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, in TurnInput) {
	p.ingestUIChanges(reg, ps, in.UIChanges)

	seen := map[string]bool{}
	for _, m := range in.Mentioned {
		seen[m.UUID] = true
		p.resolveOneMention(ctx, reg, ps, in.UserID, m)
	}
	for _, match := range mentionPattern.FindAllStringSubmatch(in.UserMessage, -1) {
		m := types.MentionedEntity{Label: match[1], Type: match[2], UUID: match[3]}
		if seen[m.UUID] {
			continue
		}
		seen[m.UUID] = true
		p.resolveOneMention(ctx, reg, ps, in.UserID, m)
	}
}

func (p *Pipeline) ingestUIChanges(reg *registry.Registry, ps *types.PipelineState, changes []types.UIChange) {
	if len(changes) == 0 {
		return
	}
	var rows []map[string]any
	for _, c := range changes {
		ref := reg.RegisterFromUI(c.ID, c.EntityType, c.Label, types.ActionTag(c.Action+":user"))
		if c.Data != nil {
			row := make(map[string]any, len(c.Data)+1)
			for k, v := range c.Data {
				row[k] = v
			}
			row["id"] = ref
			rows = append(rows, row)
		}
	}
	if len(rows) > 0 {
		appendPreprocessResult(ps, rows)
	}
}

func (p *Pipeline) resolveOneMention(ctx context.Context, reg *registry.Registry, ps *types.PipelineState, userID string, m types.MentionedEntity) {
	ref := reg.RegisterFromUI(m.UUID, m.Type, m.Label, types.ActionMentionedUser)
	table := tableForType(p, m.Type)
	if table == "" {
		return
	}
	rows, err := p.Executor.Read(ctx, types.DbReadParams{
		Table:   table,
		Filters: []types.FilterClause{{Field: "id", Op: types.OpEq, Value: ref}},
		Limit:   1,
	}, userID, reg)
	if err != nil || len(rows) == 0 {
		return
	}
	appendPreprocessResult(ps, rows)
}

func tableForType(p *Pipeline, typeName string) string {
	for table, def := range p.Domain.Entities() {
		if def.TypeName == typeName {
			return table
		}
	}
	return ""
}

func appendPreprocessResult(ps *types.PipelineState, rows []map[string]any) {
	const preStepIndex = -1
	existing := ps.StepResults[preStepIndex]
	existing.StepIndex = preStepIndex
	existing.Data = append(existing.Data, rows...)
	ps.StepResults[preStepIndex] = existing
}

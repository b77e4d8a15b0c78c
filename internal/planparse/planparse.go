// Package planparse is the pipeline orchestrator: clean the raw EXPLAIN
// source, detect its wire format, hand it to the matching reader, then
// run the enrichment pass over the resulting tree. It holds no
// process-global state, so a single *model.Plan's parse never interferes
// with another's running concurrently.
package planparse

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/xplain/internal/enrich"
	"github.com/mickamy/xplain/internal/jsonplan"
	"github.com/mickamy/xplain/internal/model"
	"github.com/mickamy/xplain/internal/normalize"
	"github.com/mickamy/xplain/internal/sourcefmt"
	"github.com/mickamy/xplain/internal/telemetry"
	"github.com/mickamy/xplain/internal/textplan"
)

// SourceOptions carries the envelope attributes ParseSource cannot infer
// from the EXPLAIN text itself.
type SourceOptions struct {
	Name      string
	Query     string
	ID        string
	CreatedOn time.Time
}

// CleanupSource exposes the normalize stage standalone, for callers
// (such as tests) that want the cleaned source
// without running the rest of the pipeline.
func CleanupSource(source string) string {
	return normalize.Cleanup(source)
}

// ParseSource runs the full pipeline over a raw EXPLAIN document: clean,
// detect format, parse, enrich. It returns model.ErrParseFailure,
// model.ErrJSONSyntax, or model.ErrUnsupportedSortGroupsKind (wrapped)
// on failure.
func ParseSource(ctx context.Context, source string, opts SourceOptions) (*model.Plan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "planparse.ParseSource")
	defer span.End()

	cleaned := normalize.Cleanup(source)
	format, body := sourcefmt.Detect(cleaned)

	var (
		content         model.Content
		ctes            []*model.Node
		triggers        []model.Trigger
		settings        map[string]string
		planningMs      *float64
		executionMs     *float64
		err             error
	)

	switch format {
	case sourcefmt.FormatJSON:
		var entry map[string]any
		entry, err = jsonplan.Parse(strings.NewReader(body))
		if err == nil {
			var c *model.Content
			c, ctes, planningMs, executionMs, triggers, settings, err = jsonplan.Build(entry)
			if c != nil {
				content = *c
			}
		}
	case sourcefmt.FormatYAML:
		var entry map[string]any
		entry, err = parseYAMLPlan(body)
		if err == nil {
			var c *model.Content
			c, ctes, planningMs, executionMs, triggers, settings, err = jsonplan.Build(entry)
			if c != nil {
				content = *c
			}
		}
	default:
		var res *textplan.Result
		res, err = textplan.Parse(body)
		if err == nil {
			content.Plan = res.Root
			ctes = res.CTEs
			triggers = res.Triggers
			content.JIT = res.JIT
			settings = res.Settings
			planningMs = res.PlanningTimeMs
			executionMs = res.ExecutionTimeMs
		}
	}
	if err != nil {
		return nil, err
	}

	content.Triggers = triggers
	content.Settings = settings

	enrich.Enrich(&content, &ctes)

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdOn := opts.CreatedOn
	if createdOn.IsZero() {
		createdOn = time.Now()
	}

	plan := &model.Plan{
		ID:              id,
		Name:            opts.Name,
		CreatedOn:       createdOn,
		Query:           opts.Query,
		Content:         content,
		CTEs:            ctes,
		PlanningTimeMs:  planningMs,
		ExecutionTimeMs: executionMs,
		IsAnalyze:       content.Plan != nil && content.Plan.ActualRows != nil,
		IsVerbose:       hasOutput(content.Plan) || hasOutputAny(ctes),
	}
	return plan, nil
}

// hasOutput reports whether n or any of its descendants carries an
// Output attribute, the signal that EXPLAIN ran with VERBOSE.
func hasOutput(n *model.Node) bool {
	if n == nil {
		return false
	}
	if len(n.Output) > 0 {
		return true
	}
	for _, c := range n.Children {
		if hasOutput(c) {
			return true
		}
	}
	return false
}

func hasOutputAny(nodes []*model.Node) bool {
	for _, n := range nodes {
		if hasOutput(n) {
			return true
		}
	}
	return false
}

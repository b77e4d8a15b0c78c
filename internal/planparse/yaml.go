package planparse

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mickamy/xplain/internal/model"
)

// parseYAMLPlan reads PostgreSQL's `EXPLAIN (FORMAT YAML)` output — a
// bracketless, indentation-based single-element sequence — and returns
// the same map[string]any shape jsonplan.Build expects, so both formats
// share one tree builder.
func parseYAMLPlan(body string) (map[string]any, error) {
	var docs []map[string]any
	if err := yaml.Unmarshal([]byte(body), &docs); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrJSONSyntax, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: empty YAML plan document", model.ErrJSONSyntax)
	}
	return normalizeYAMLValue(docs[0]).(map[string]any), nil
}

// normalizeYAMLValue walks a yaml.v3-decoded value tree, converting the
// map[string]interface{} nodes (yaml.v3's representation of mappings
// when unmarshaled into `any`) into the same shape jsonplan.Build reads,
// recursing through slices so nested plan nodes are covered too.
func normalizeYAMLValue(v any) any {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAMLValue(val)
		}
		return out
	case []interface{}:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAMLValue(val)
		}
		return out
	default:
		return v
	}
}

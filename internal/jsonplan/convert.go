package jsonplan

import (
	"encoding/json"
	"strconv"

	"github.com/mickamy/xplain/internal/model"
)

// Build converts one decoded `EXPLAIN (FORMAT JSON)` entry (as produced
// by Parse) into the plan tree model.Node/model.Content expect. It
// mirrors PostgreSQL's JSON key names ("Node Type", "Startup Cost", ...)
// field by field rather than via reflection, the same flat-coercion
// style the plain-text attribute parsers use.
func Build(entry map[string]any) (*model.Content, []*model.Node, *float64, *float64, []model.Trigger, map[string]string, error) {
	content := &model.Content{}

	planRaw, ok := entry["Plan"].(map[string]any)
	if !ok {
		return nil, nil, nil, nil, nil, nil, model.ErrParseFailure
	}
	content.Plan = buildNode(planRaw)

	var ctes []*model.Node
	extractCTEsJSON(content.Plan, &ctes)

	content.Settings = asStringMap(entry["Settings"])
	content.Triggers = buildTriggers(asSlice(entry["Triggers"]))
	content.JIT = buildJIT(asObject(entry["JIT"]))

	var planningMs, executionMs *float64
	if v, ok := asFloat(entry["Planning Time"]); ok {
		planningMs = &v
	}
	if v, ok := asFloat(entry["Execution Time"]); ok {
		executionMs = &v
	}

	return content, ctes, planningMs, executionMs, content.Triggers, content.Settings, nil
}

func extractCTEsJSON(n *model.Node, ctes *[]*model.Node) {
	if n == nil {
		return
	}
	kept := n.Children[:0]
	for _, child := range n.Children {
		if child.ParentRelationship == "InitPlan" && hasCTEPrefix(child.SubplanName) {
			*ctes = append(*ctes, child)
			extractCTEsJSON(child, ctes)
			continue
		}
		extractCTEsJSON(child, ctes)
		kept = append(kept, child)
	}
	n.Children = kept
}

func hasCTEPrefix(s string) bool {
	return len(s) >= 4 && s[:4] == "CTE "
}

func buildNode(m map[string]any) *model.Node {
	n := &model.Node{}
	n.NodeType = asString(m["Node Type"])
	n.RelationName = asString(m["Relation Name"])
	n.Schema = asString(m["Schema"])
	n.Alias = asString(m["Alias"])
	n.IndexName = asString(m["Index Name"])
	n.IndexCond = asString(m["Index Cond"])
	n.JoinType = asString(m["Join Type"])
	n.HashCond = asString(m["Hash Cond"])
	n.MergeCond = asString(m["Merge Cond"])
	n.Filter = asString(m["Filter"])
	n.JoinFilter = asString(m["Join Filter"])
	n.ParentRelationship = asString(m["Parent Relationship"])
	n.SubplanName = asString(m["Subplan Name"])
	n.Output = asStringSlice(m["Output"])
	n.SortKey = asStringSlice(m["Sort Key"])
	n.PresortedKey = asStringSlice(m["Presorted Key"])

	n.StartupCost = floatPtr(m["Startup Cost"])
	n.TotalCost = floatPtr(m["Total Cost"])
	n.PlanRows = intPtr(m["Plan Rows"])
	n.PlanWidth = intPtr(m["Plan Width"])
	n.ActualStartupTime = floatPtr(m["Actual Startup Time"])
	n.ActualTotalTime = floatPtr(m["Actual Total Time"])
	n.ActualRows = intPtr(m["Actual Rows"])
	n.ActualLoops = intPtr(m["Actual Loops"])
	if v, ok := m["Actual Loops"]; ok {
		if f, ok := asFloat(v); ok && f == 0 {
			n.NeverExecuted = true
		}
	}
	n.RowsRemovedByFilter = intPtr(m["Rows Removed by Filter"])
	n.RowsRemovedByJoinFilter = intPtr(m["Rows Removed by Join Filter"])
	n.WorkersPlanned = intPtr(m["Workers Planned"])
	n.WorkersLaunched = intPtr(m["Workers Launched"])

	if method := asString(m["Sort Method"]); method != "" {
		s := &model.Sort{Method: method}
		if kb, ok := asFloat(m["Sort Space Used"]); ok {
			s.SpaceUsedKB = int64(kb)
		}
		s.SpaceType = model.SpaceMemory
		if asString(m["Sort Space Type"]) == "Disk" {
			s.SpaceType = model.SpaceDisk
		}
		n.Sort = s
	}
	n.Buffers = buildBuffers(m)
	n.WAL = buildWAL(m)
	n.IOTiming = buildIOTiming(m)
	n.JIT = buildJIT(asObject(m["JIT"]))
	n.Settings = asStringMap(m["Settings"])

	for _, w := range asSlice(m["Workers"]) {
		if wm, ok := w.(map[string]any); ok {
			n.Workers = append(n.Workers, buildWorker(wm))
		}
	}

	for _, key := range []string{"Plans"} {
		for _, c := range asSlice(m[key]) {
			if cm, ok := c.(map[string]any); ok {
				n.Children = append(n.Children, buildNode(cm))
			}
		}
	}
	return n
}

func buildWorker(m map[string]any) *model.Worker {
	w := &model.Worker{}
	if v, ok := asFloat(m["Worker Number"]); ok {
		w.WorkerNumber = int(v)
	}
	w.ActualStartupTime = floatPtr(m["Actual Startup Time"])
	w.ActualTotalTime = floatPtr(m["Actual Total Time"])
	w.ActualRows = intPtr(m["Actual Rows"])
	w.ActualLoops = intPtr(m["Actual Loops"])
	w.JIT = buildJIT(asObject(m["JIT"]))
	return w
}

func buildTriggers(raw []any) []model.Trigger {
	var out []model.Trigger
	for _, t := range raw {
		tm, ok := t.(map[string]any)
		if !ok {
			continue
		}
		tr := model.Trigger{Name: asString(tm["Trigger Name"]), Relation: asString(tm["Relation"])}
		if v, ok := asFloat(tm["Time"]); ok {
			tr.TimeMs = v
		}
		if v, ok := asFloat(tm["Calls"]); ok {
			tr.Calls = int64(v)
		}
		out = append(out, tr)
	}
	return out
}

func buildJIT(m map[string]any) *model.JIT {
	if m == nil {
		return nil
	}
	jit := &model.JIT{Extra: map[string]any{}}
	if opts, ok := m["Options"].(map[string]any); ok {
		jit.Options = opts
	}
	if timing, ok := m["Timing"].(map[string]any); ok {
		jit.Timing = map[string]float64{}
		for k, v := range timing {
			if f, ok := asFloat(v); ok {
				jit.Timing[k] = f
			}
		}
	}
	for k, v := range m {
		if k == "Options" || k == "Timing" {
			continue
		}
		jit.Extra[k] = v
	}
	return jit
}

func buildBuffers(m map[string]any) model.Buffers {
	get := func(key string) int64 {
		if v, ok := asFloat(m[key]); ok {
			return int64(v)
		}
		return 0
	}
	return model.Buffers{
		SharedHitBlocks:     get("Shared Hit Blocks"),
		SharedReadBlocks:    get("Shared Read Blocks"),
		SharedDirtiedBlocks: get("Shared Dirtied Blocks"),
		SharedWrittenBlocks: get("Shared Written Blocks"),
		LocalHitBlocks:      get("Local Hit Blocks"),
		LocalReadBlocks:     get("Local Read Blocks"),
		LocalDirtiedBlocks:  get("Local Dirtied Blocks"),
		LocalWrittenBlocks:  get("Local Written Blocks"),
		TempReadBlocks:      get("Temp Read Blocks"),
		TempWrittenBlocks:   get("Temp Written Blocks"),
	}
}

func buildWAL(m map[string]any) *model.WAL {
	if _, ok := m["WAL Records"]; !ok {
		return nil
	}
	get := func(key string) int64 {
		if v, ok := asFloat(m[key]); ok {
			return int64(v)
		}
		return 0
	}
	return &model.WAL{Records: get("WAL Records"), Bytes: get("WAL Bytes"), FPI: get("WAL FPI")}
}

func buildIOTiming(m map[string]any) *model.IOTiming {
	r, rok := asFloat(m["I/O Read Time"])
	w, wok := asFloat(m["I/O Write Time"])
	if !rok && !wok {
		return nil
	}
	return &model.IOTiming{ReadMs: r, WriteMs: w}
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	raw := asSlice(v)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		out = append(out, asString(e))
	}
	return out
}

func asStringMap(v any) map[string]string {
	m := asObject(v)
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = asString(val)
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func floatPtr(v any) *float64 {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func intPtr(v any) *int64 {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	i := int64(f)
	return &i
}

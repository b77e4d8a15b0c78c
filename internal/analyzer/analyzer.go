// Package analyzer turns an enriched plan tree into the ranked views
// (root-relative percentages, hot nodes, divergent estimates, heavy
// buffer users) the renderers and insight builder consume. It does not
// recompute exclusive cost/duration/buffers itself — internal/enrich
// already owns that — it only ranks and annotates.
package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/mickamy/xplain/internal/model"
)

// PlanAnalysis contains the derived, ranked views over one parsed plan.
type PlanAnalysis struct {
	Root            *NodeStats
	PlanningTimeMs  float64
	ExecutionTimeMs float64
	TotalTimeMs     float64
	NodeCount       int
	HotNodes        []*NodeStats
	DivergentNodes  []*NodeStats
	BufferHeavy     []*NodeStats
	TotalBuffers    int64
}

// NodeStats augments a plan node with computed, root-relative statistics.
type NodeStats struct {
	Node              *model.Node
	Parent            *NodeStats
	Depth             int
	InclusiveTimeMs   float64
	ExclusiveTimeMs   float64
	PercentExclusive  float64
	PercentInclusive  float64
	ActualTotalRows   float64
	EstimatedRows     float64
	RowEstimateFactor float64
	Buffers           model.Buffers
	Warnings          []string
	Children          []*NodeStats
}

// Analyze derives ranked statistics for an already-enriched plan.
func Analyze(plan *model.Plan) (*PlanAnalysis, error) {
	if plan == nil || plan.Content.Plan == nil {
		return nil, fmt.Errorf("analyze: missing plan")
	}

	root := buildStats(plan.Content.Plan, 0, nil)
	totalTime := root.InclusiveTimeMs

	annotateRatios(root, totalTime)

	allNodes := flatten(root)

	hot := selectHotNodes(allNodes)
	divergent := selectDivergentNodes(allNodes)
	bufferHeavy := selectBufferHeavy(allNodes)

	var totalBuffers int64
	for _, n := range allNodes {
		totalBuffers += n.Buffers.Total()
	}

	analysis := &PlanAnalysis{
		Root:           root,
		TotalTimeMs:    totalTime,
		NodeCount:      len(allNodes),
		HotNodes:       hot,
		DivergentNodes: divergent,
		BufferHeavy:    bufferHeavy,
		TotalBuffers:   totalBuffers,
	}
	if plan.PlanningTimeMs != nil {
		analysis.PlanningTimeMs = *plan.PlanningTimeMs
	}
	if plan.ExecutionTimeMs != nil {
		analysis.ExecutionTimeMs = *plan.ExecutionTimeMs
	}
	return analysis, nil
}

func buildStats(node *model.Node, depth int, parent *NodeStats) *NodeStats {
	stats := &NodeStats{
		Node:              node,
		Parent:            parent,
		Depth:             depth,
		InclusiveTimeMs:   inclusiveDuration(node),
		ExclusiveTimeMs:   node.ExclusiveDuration,
		ActualTotalRows:   revisedOr(node.ActualRowsRevised, node.ActualRows),
		EstimatedRows:     revisedOr(node.PlanRowsRevised, node.PlanRows),
		Buffers:           node.Buffers,
		RowEstimateFactor: 1,
	}
	stats.RowEstimateFactor = computeEstimateFactor(stats.EstimatedRows, stats.ActualTotalRows)

	for _, childNode := range node.Children {
		child := buildStats(childNode, depth+1, stats)
		stats.Children = append(stats.Children, child)
	}

	stats.Warnings = deriveWarnings(stats)
	return stats
}

// inclusiveDuration reads the node's total time as internal/enrich left
// it, already scaled by loops and Gather workers.
func inclusiveDuration(n *model.Node) float64 {
	if n.ActualTotalTime == nil {
		return 0
	}
	return *n.ActualTotalTime
}

func revisedOr(revised, fallback *int64) float64 {
	if revised != nil {
		return float64(*revised)
	}
	if fallback != nil {
		return float64(*fallback)
	}
	return 0
}

func annotateRatios(node *NodeStats, total float64) {
	if total > 0 {
		node.PercentExclusive = node.ExclusiveTimeMs / total
		node.PercentInclusive = node.InclusiveTimeMs / total
	}
	for _, child := range node.Children {
		annotateRatios(child, total)
	}
}

func flatten(root *NodeStats) []*NodeStats {
	var out []*NodeStats
	var walk func(*NodeStats)
	walk = func(n *NodeStats) {
		out = append(out, n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
	return out
}

func selectHotNodes(nodes []*NodeStats) []*NodeStats {
	if len(nodes) == 0 {
		return nil
	}

	candidates := make([]*NodeStats, 0, len(nodes))
	for _, n := range nodes {
		if n.PercentExclusive > 0 {
			candidates = append(candidates, n)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PercentExclusive > candidates[j].PercentExclusive
	})

	limit := 5
	if len(candidates) < limit {
		limit = len(candidates)
	}
	cutoff := 0.10

	var out []*NodeStats
	for _, candidate := range candidates[:limit] {
		if candidate.PercentExclusive < cutoff {
			break
		}
		out = append(out, candidate)
	}

	if len(out) == 0 && len(candidates) > 0 {
		out = candidates[:limit]
	}

	return out
}

func selectDivergentNodes(nodes []*NodeStats) []*NodeStats {
	var out []*NodeStats
	for _, n := range nodes {
		if math.IsInf(n.RowEstimateFactor, 1) || math.IsInf(n.RowEstimateFactor, -1) {
			out = append(out, n)
			continue
		}
		if n.RowEstimateFactor >= 2.0 || n.RowEstimateFactor <= 0.5 {
			if n.EstimatedRows > 0 || n.ActualTotalRows > 0 {
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].RowEstimateFactor-1) > math.Abs(out[j].RowEstimateFactor-1)
	})
	limit := 5
	if len(out) < limit {
		limit = len(out)
	}
	return out[:limit]
}

// selectBufferHeavy ranks nodes by total buffer blocks touched, the
// basis internal/insight uses to point at the operator actually driving
// I/O rather than the slowest one in wall-clock terms.
func selectBufferHeavy(nodes []*NodeStats) []*NodeStats {
	candidates := make([]*NodeStats, 0, len(nodes))
	for _, n := range nodes {
		if n.Buffers.Total() > 0 {
			candidates = append(candidates, n)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Buffers.Total() > candidates[j].Buffers.Total()
	})
	limit := 5
	if len(candidates) < limit {
		limit = len(candidates)
	}
	return candidates[:limit]
}

func computeEstimateFactor(estimated, actual float64) float64 {
	const epsilon = 1e-9
	if estimated <= epsilon {
		if actual <= epsilon {
			return 1
		}
		return math.Inf(1)
	}
	return actual / estimated
}

func deriveWarnings(stats *NodeStats) []string {
	var warnings []string
	if stats.PercentExclusive >= 0.20 {
		warnings = append(warnings, fmt.Sprintf("self time %.1f%% of plan", stats.PercentExclusive*100))
	}
	if stats.RowEstimateFactor >= 2.0 {
		warnings = append(warnings, fmt.Sprintf("rows %.1fx higher than estimate", stats.RowEstimateFactor))
	} else if stats.RowEstimateFactor <= 0.5 {
		warnings = append(warnings, fmt.Sprintf("rows %.1fx lower than estimate", stats.RowEstimateFactor))
	}
	if stats.Buffers.Total() > 0 && stats.PercentExclusive >= 0.05 {
		warnings = append(warnings, "heavy buffer usage")
	}
	return warnings
}

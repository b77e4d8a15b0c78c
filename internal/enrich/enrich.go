// Package enrich runs the derived-field pass over a freshly parsed plan
// tree: node IDs, exclusive (self-only) cost/duration/buffers, planner
// estimate ratios, worker-parallelism propagation, CTE relocation, and
// tree-wide maxima used by the renderers to scale bar widths.
package enrich

import (
	"math"
	"strings"

	"github.com/mickamy/xplain/internal/model"
)

// Enrich mutates content's plan tree in place, populating every derived
// field model.Node declares, and relocates CTE nodes out of the operator
// tree and into ctes.
func Enrich(content *model.Content, ctes *[]*model.Node) {
	if content == nil || content.Plan == nil {
		return
	}

	extractCTEs(content.Plan, ctes)

	counter := 0
	assignIDs(content.Plan, &counter)
	propagateGather(content.Plan, nil)

	maxima := &maxState{}
	computeActuals(content.Plan, maxima)

	content.MaxRows = maxima.rows
	content.MaxCost = maxima.cost
	content.MaxTotalCost = maxima.totalCost
	content.MaxDuration = maxima.duration
	content.MaxBlocks = maxima.blocks()
}

// extractCTEs pulls InitPlan children whose subplan name starts with
// "CTE " out of the tree and into the sibling ctes list, the way
// PostgreSQL's planner hoists WITH-query evaluation out of the scan that
// first references it.
func extractCTEs(n *model.Node, ctes *[]*model.Node) {
	if n == nil {
		return
	}
	kept := n.Children[:0]
	for _, child := range n.Children {
		if child.ParentRelationship == "InitPlan" && strings.HasPrefix(child.SubplanName, "CTE ") {
			*ctes = append(*ctes, child)
			extractCTEs(child, ctes)
			continue
		}
		extractCTEs(child, ctes)
		kept = append(kept, child)
	}
	n.Children = kept
}

func assignIDs(n *model.Node, counter *int) {
	if n == nil {
		return
	}
	n.NodeID = *counter
	*counter++
	for _, c := range n.Children {
		assignIDs(c, counter)
	}
}

// propagateGather carries the nearest ancestor Gather/Gather Merge
// node's WorkersPlanned count down to descendants until another Gather
// boundary is hit. An explicit zero at the gather node is a real "no
// workers actually ran in parallel" signal and is propagated as such,
// not treated as absence.
func propagateGather(n *model.Node, inherited *int64) {
	if n == nil {
		return
	}
	n.WorkersPlannedByGather = inherited
	current := inherited
	if strings.HasPrefix(n.NodeType, "Gather") && n.WorkersPlanned != nil {
		v := *n.WorkersPlanned
		current = &v
	}
	for _, c := range n.Children {
		propagateGather(c, current)
	}
}

type maxState struct {
	rows          int64
	cost          float64
	totalCost     float64
	duration      float64
	sharedBlocks  int64
	tempBlocks    int64
	localBlocks   int64
	haveShared    bool
	haveTemp      bool
	haveLocal     bool
}

func (m *maxState) blocks() model.MaxBlocks {
	var out model.MaxBlocks
	if m.haveShared {
		v := m.sharedBlocks
		out.Shared = &v
	}
	if m.haveTemp {
		v := m.tempBlocks
		out.Temp = &v
	}
	if m.haveLocal {
		v := m.localBlocks
		out.Local = &v
	}
	return out
}

// computeActuals is the post-order pass: children are enriched (and
// their exclusive figures known) before the parent subtracts them out.
func computeActuals(n *model.Node, maxima *maxState) {
	if n == nil {
		return
	}

	loops := int64(1)
	if n.ActualLoops != nil && *n.ActualLoops > 0 {
		loops = *n.ActualLoops
	}

	// Workers running under a Gather execute concurrently, so a worker
	// node's reported time must be divided across them to recover its
	// actual wall-clock contribution before it's compared against its
	// parent's.
	workers := int64(1)
	if n.WorkersPlannedByGather != nil {
		workers = *n.WorkersPlannedByGather + 1
	}
	if n.ActualTotalTime != nil {
		v := *n.ActualTotalTime * float64(loops) / float64(workers)
		n.ActualTotalTime = &v
	}
	if n.ActualStartupTime != nil {
		v := *n.ActualStartupTime * float64(loops) / float64(workers)
		n.ActualStartupTime = &v
	}

	var childExclusiveDuration, childCost float64
	var childBuffers model.Buffers
	var childIO model.IOTiming

	for _, c := range n.Children {
		computeActuals(c, maxima)
		if c.ParentRelationship != "InitPlan" {
			childExclusiveDuration += c.ExclusiveDuration
		}
		childCost += valueOr(c.TotalCost)
		childBuffers = childBuffers.Add(c.Buffers)
		if c.IOTiming != nil {
			childIO = childIO.Add(*c.IOTiming)
		}
	}

	if n.ActualRows != nil {
		v := *n.ActualRows * loops
		n.ActualRowsRevised = &v
	}
	if n.PlanRows != nil {
		v := *n.PlanRows * loops
		n.PlanRowsRevised = &v
	}
	if n.RowsRemovedByFilter != nil {
		v := *n.RowsRemovedByFilter * loops
		n.RowsRemovedByFilterRevised = &v
	}
	if n.RowsRemovedByJoinFilter != nil {
		v := *n.RowsRemovedByJoinFilter * loops
		n.RowsRemovedByJoinFilterRevised = &v
	}

	n.ExclusiveDuration = valueOr(n.ActualTotalTime) - childExclusiveDuration
	if n.ExclusiveDuration < 0 {
		n.ExclusiveDuration = 0
	}
	n.ExclusiveCost = valueOr(n.TotalCost) - childCost
	if n.ExclusiveCost < 0 {
		n.ExclusiveCost = 0
	}
	n.ExclusiveBuffers = n.Buffers.Sub(childBuffers)
	if n.IOTiming != nil {
		n.ExclusiveIOTiming = n.IOTiming.Sub(childIO)
	}

	if n.ActualRowsRevised != nil {
		if n.PlanRowsRevised != nil {
			actual := float64(*n.ActualRowsRevised)
			plan := float64(*n.PlanRowsRevised)
			factor := math.Max(actual, plan) / math.Max(math.Min(actual, plan), 1)
			n.PlannerEstimateFactor = &factor
			switch {
			case actual > plan:
				n.PlannerEstimateDirection = model.EstimateUnder
			case actual < plan:
				n.PlannerEstimateDirection = model.EstimateOver
			default:
				n.PlannerEstimateDirection = model.EstimateNone
			}
		} else {
			n.PlannerEstimateDirection = model.EstimateNone
		}
	}

	if n.ActualRowsRevised != nil && *n.ActualRowsRevised > maxima.rows {
		maxima.rows = *n.ActualRowsRevised
	}
	if n.ExclusiveCost > maxima.cost {
		maxima.cost = n.ExclusiveCost
	}
	if n.TotalCost != nil && *n.TotalCost > maxima.totalCost {
		maxima.totalCost = *n.TotalCost
	}
	if n.ExclusiveDuration > maxima.duration {
		maxima.duration = n.ExclusiveDuration
	}
	if shared := n.ExclusiveBuffers.SharedHitBlocks + n.ExclusiveBuffers.SharedReadBlocks; shared > 0 {
		maxima.haveShared = true
		if shared > maxima.sharedBlocks {
			maxima.sharedBlocks = shared
		}
	}
	if temp := n.ExclusiveBuffers.TempReadBlocks + n.ExclusiveBuffers.TempWrittenBlocks; temp > 0 {
		maxima.haveTemp = true
		if temp > maxima.tempBlocks {
			maxima.tempBlocks = temp
		}
	}
	if local := n.ExclusiveBuffers.LocalHitBlocks + n.ExclusiveBuffers.LocalReadBlocks; local > 0 {
		maxima.haveLocal = true
		if local > maxima.localBlocks {
			maxima.localBlocks = local
		}
	}
}

func valueOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

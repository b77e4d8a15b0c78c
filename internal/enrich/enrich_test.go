package enrich

import (
	"testing"

	"github.com/mickamy/xplain/internal/model"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }

func TestEnrichAssignsIDsAndExclusiveTiming(t *testing.T) {
	child := &model.Node{
		NodeType:        "Seq Scan",
		TotalCost:       ptrF(10),
		ActualTotalTime: ptrF(8),
		ActualLoops:     ptrI(1),
		ActualRows:      ptrI(100),
		PlanRows:        ptrI(90),
	}
	root := &model.Node{
		NodeType:        "Aggregate",
		TotalCost:       ptrF(15),
		ActualTotalTime: ptrF(10),
		ActualLoops:     ptrI(1),
		ActualRows:      ptrI(1),
		PlanRows:        ptrI(1),
		Children:        []*model.Node{child},
	}
	content := &model.Content{Plan: root}
	var ctes []*model.Node

	Enrich(content, &ctes)

	if root.NodeID != 0 || child.NodeID != 1 {
		t.Fatalf("expected pre-order node IDs 0,1, got %d,%d", root.NodeID, child.NodeID)
	}
	if root.ExclusiveDuration != 2 {
		t.Fatalf("expected root exclusive duration 10-8=2, got %v", root.ExclusiveDuration)
	}
	if root.ExclusiveCost != 5 {
		t.Fatalf("expected root exclusive cost 15-10=5, got %v", root.ExclusiveCost)
	}
	if child.ExclusiveDuration != 8 {
		t.Fatalf("expected leaf exclusive duration to equal its own inclusive duration, got %v", child.ExclusiveDuration)
	}
	if content.MaxDuration != 8 {
		t.Fatalf("expected tree max duration to be the larger exclusive duration (8), got %v", content.MaxDuration)
	}
}

func TestEnrichRevisesRowsByLoops(t *testing.T) {
	child := &model.Node{
		NodeType:    "Index Scan",
		ActualRows:  ptrI(5),
		PlanRows:    ptrI(4),
		ActualLoops: ptrI(3),
	}
	root := &model.Node{
		NodeType:    "Nested Loop",
		ActualRows:  ptrI(15),
		PlanRows:    ptrI(12),
		ActualLoops: ptrI(1),
		Children:    []*model.Node{child},
	}
	content := &model.Content{Plan: root}
	var ctes []*model.Node
	Enrich(content, &ctes)

	if child.ActualRowsRevised == nil || *child.ActualRowsRevised != 15 {
		t.Fatalf("expected child actual rows revised to 5*3=15, got %v", child.ActualRowsRevised)
	}
	if child.PlanRowsRevised == nil || *child.PlanRowsRevised != 12 {
		t.Fatalf("expected child plan rows revised to 4*3=12, got %v", child.PlanRowsRevised)
	}
	if child.PlannerEstimateDirection != model.EstimateUnder {
		t.Fatalf("expected under-estimate direction (plan 12 < actual 15), got %v", child.PlannerEstimateDirection)
	}
}

func TestEnrichExtractsCTEs(t *testing.T) {
	cteNode := &model.Node{
		NodeType:           "CTE Scan",
		ParentRelationship: "InitPlan",
		SubplanName:        "CTE recent_orders",
	}
	scan := &model.Node{NodeType: "Seq Scan"}
	root := &model.Node{
		NodeType: "Nested Loop",
		Children: []*model.Node{cteNode, scan},
	}
	content := &model.Content{Plan: root}
	var ctes []*model.Node
	Enrich(content, &ctes)

	if len(ctes) != 1 || ctes[0] != cteNode {
		t.Fatalf("expected the CTE node to be relocated out of the tree, got %v", ctes)
	}
	if len(root.Children) != 1 || root.Children[0] != scan {
		t.Fatalf("expected only the non-CTE child to remain in the tree, got %v", root.Children)
	}
}

func TestEnrichPropagatesGatherWorkersIncludingZero(t *testing.T) {
	zero := int64(0)
	leaf := &model.Node{NodeType: "Seq Scan"}
	gather := &model.Node{
		NodeType:       "Gather",
		WorkersPlanned: &zero,
		Children:       []*model.Node{leaf},
	}
	content := &model.Content{Plan: gather}
	var ctes []*model.Node
	Enrich(content, &ctes)

	if leaf.WorkersPlannedByGather == nil {
		t.Fatalf("expected explicit zero workers planned to propagate, not be treated as absent")
	}
	if *leaf.WorkersPlannedByGather != 0 {
		t.Fatalf("expected propagated workers planned to be 0, got %d", *leaf.WorkersPlannedByGather)
	}
}

func TestEnrichScalesActualTimeByGatherWorkers(t *testing.T) {
	planned := int64(3)
	grandchild := &model.Node{
		NodeType:        "Seq Scan",
		ActualTotalTime: ptrF(4),
		ActualLoops:     ptrI(1),
	}
	child := &model.Node{
		NodeType:        "Hash Join",
		ActualTotalTime: ptrF(40),
		ActualLoops:     ptrI(1),
		Children:        []*model.Node{grandchild},
	}
	gather := &model.Node{
		NodeType:        "Gather",
		WorkersPlanned:  &planned,
		ActualTotalTime: ptrF(12),
		ActualLoops:     ptrI(1),
		Children:        []*model.Node{child},
	}
	content := &model.Content{Plan: gather}
	var ctes []*model.Node
	Enrich(content, &ctes)

	// workers = 3 + 1 = 4: the child's and grandchild's reported total
	// time are each divided by 4 before exclusive duration is derived.
	if *child.ActualTotalTime != 10 {
		t.Fatalf("expected child actual total time scaled to 40/4=10, got %v", *child.ActualTotalTime)
	}
	if *grandchild.ActualTotalTime != 1 {
		t.Fatalf("expected grandchild actual total time scaled to 4/4=1, got %v", *grandchild.ActualTotalTime)
	}
	if child.ExclusiveDuration != 9 {
		t.Fatalf("expected child exclusive duration 10-1=9, got %v", child.ExclusiveDuration)
	}
}

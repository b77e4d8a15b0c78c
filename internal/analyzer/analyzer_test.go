package analyzer

import (
	"testing"

	"github.com/mickamy/xplain/internal/model"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }

func buildPlan(root *model.Node) *model.Plan {
	return &model.Plan{Content: model.Content{Plan: root}}
}

func TestAnalyzeMissingPlanReturnsError(t *testing.T) {
	if _, err := Analyze(&model.Plan{}); err == nil {
		t.Fatalf("expected an error for a plan with no root node")
	}
}

func TestAnalyzeComputesRootRelativePercentages(t *testing.T) {
	child := &model.Node{
		NodeType:          "Seq Scan",
		ActualTotalTime:   ptrF(8),
		ActualLoops:       ptrI(1),
		ExclusiveDuration: 8,
	}
	root := &model.Node{
		NodeType:          "Aggregate",
		ActualTotalTime:   ptrF(10),
		ActualLoops:       ptrI(1),
		ExclusiveDuration: 2,
		Children:          []*model.Node{child},
	}

	analysis, err := Analyze(buildPlan(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.TotalTimeMs != 10 {
		t.Fatalf("expected total time 10, got %v", analysis.TotalTimeMs)
	}
	if analysis.NodeCount != 2 {
		t.Fatalf("expected 2 nodes, got %d", analysis.NodeCount)
	}
	if got := analysis.Root.PercentExclusive; got != 0.2 {
		t.Fatalf("expected root exclusive percent 0.2, got %v", got)
	}
	scan := analysis.Root.Children[0]
	if got := scan.PercentExclusive; got != 0.8 {
		t.Fatalf("expected scan exclusive percent 0.8, got %v", got)
	}
	if scan.Depth != 1 || analysis.Root.Depth != 0 {
		t.Fatalf("expected depths 0 and 1, got %d and %d", analysis.Root.Depth, scan.Depth)
	}
}

func TestAnalyzeSelectsHotNodesAboveCutoff(t *testing.T) {
	hot := &model.Node{
		NodeType:          "Seq Scan",
		ActualTotalTime:   ptrF(9),
		ActualLoops:       ptrI(1),
		ExclusiveDuration: 9,
	}
	cold := &model.Node{
		NodeType:          "Index Scan",
		ActualTotalTime:   ptrF(1),
		ActualLoops:       ptrI(1),
		ExclusiveDuration: 0.05,
	}
	root := &model.Node{
		NodeType:          "Nested Loop",
		ActualTotalTime:   ptrF(10),
		ActualLoops:       ptrI(1),
		ExclusiveDuration: 0.95,
		Children:          []*model.Node{hot, cold},
	}

	analysis, err := Analyze(buildPlan(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.HotNodes) != 1 || analysis.HotNodes[0].Node != hot {
		t.Fatalf("expected only the scan above the 10%% cutoff, got %v", analysis.HotNodes)
	}
}

func TestAnalyzeSelectsDivergentEstimates(t *testing.T) {
	underestimated := &model.Node{
		NodeType:          "Seq Scan",
		ActualRowsRevised: ptrI(1000),
		PlanRowsRevised:   ptrI(10),
	}
	accurate := &model.Node{
		NodeType:          "Index Scan",
		ActualRowsRevised: ptrI(100),
		PlanRowsRevised:   ptrI(100),
	}
	root := &model.Node{
		NodeType: "Nested Loop",
		Children: []*model.Node{underestimated, accurate},
	}

	analysis, err := Analyze(buildPlan(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.DivergentNodes) != 1 || analysis.DivergentNodes[0].Node != underestimated {
		t.Fatalf("expected only the underestimated node flagged as divergent, got %v", analysis.DivergentNodes)
	}
}

func TestAnalyzeSelectsBufferHeavyNodes(t *testing.T) {
	heavy := &model.Node{
		NodeType: "Seq Scan",
		Buffers:  model.Buffers{SharedHitBlocks: 500},
	}
	light := &model.Node{
		NodeType: "Index Scan",
		Buffers:  model.Buffers{SharedHitBlocks: 1},
	}
	root := &model.Node{
		NodeType: "Nested Loop",
		Children: []*model.Node{heavy, light},
	}

	analysis, err := Analyze(buildPlan(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.BufferHeavy) != 2 {
		t.Fatalf("expected both buffer-touching nodes ranked, got %d", len(analysis.BufferHeavy))
	}
	if analysis.BufferHeavy[0].Node != heavy {
		t.Fatalf("expected the heavier buffer user ranked first, got %v", analysis.BufferHeavy[0].Node)
	}
	if analysis.TotalBuffers != 501 {
		t.Fatalf("expected total buffers 501, got %d", analysis.TotalBuffers)
	}
}

func TestAnalyzeWarnsOnHighExclusiveTimeAndRowDivergence(t *testing.T) {
	root := &model.Node{
		NodeType:          "Seq Scan",
		ActualTotalTime:   ptrF(10),
		ActualLoops:       ptrI(1),
		ExclusiveDuration: 10,
		ActualRowsRevised: ptrI(1000),
		PlanRowsRevised:   ptrI(10),
	}

	analysis, err := Analyze(buildPlan(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(analysis.Root.Warnings) == 0 {
		t.Fatalf("expected at least one warning on a node that is both hot and under-estimated")
	}
}

package insight_test

import (
	"strings"
	"testing"

	"github.com/mickamy/xplain/internal/analyzer"
	"github.com/mickamy/xplain/internal/insight"
	"github.com/mickamy/xplain/internal/model"
)

func ptrI(v int64) *int64 { return &v }

func TestBuildMessagesNilAnalysisReturnsNil(t *testing.T) {
	if msgs := insight.BuildMessages(nil); msgs != nil {
		t.Fatalf("expected nil messages for nil analysis, got %v", msgs)
	}
}

func TestBuildMessagesFlagsHotSeqScan(t *testing.T) {
	hot := &analyzer.NodeStats{
		Node: &model.Node{
			NodeType:     "Seq Scan",
			RelationName: "orders",
		},
		ExclusiveTimeMs:  900,
		PercentExclusive: 0.9,
		Buffers:          model.Buffers{SharedReadBlocks: 10000},
	}
	analysis := &analyzer.PlanAnalysis{
		Root:     hot,
		HotNodes: []*analyzer.NodeStats{hot},
	}

	msgs := insight.BuildMessages(analysis)
	if len(msgs) == 0 {
		t.Fatalf("expected at least one insight message")
	}
	if !strings.Contains(msgs[0].Text, "Hot spot") {
		t.Fatalf("expected the first message to describe the hot spot, got %q", msgs[0].Text)
	}
	if msgs[0].Severity != insight.SeverityCritical {
		t.Fatalf("expected a critical severity at 90%% exclusive time, got %v", msgs[0].Severity)
	}
	if msgs[0].Anchor == "" {
		t.Fatalf("expected a non-empty anchor")
	}
}

func TestBuildMessagesFlagsNestedLoopHighLoopCount(t *testing.T) {
	scan := &analyzer.NodeStats{
		Node: &model.Node{
			NodeType:    "Index Scan",
			ActualLoops: ptrI(50000),
		},
	}
	loop := &analyzer.NodeStats{
		Node:     &model.Node{NodeType: "Nested Loop"},
		Children: []*analyzer.NodeStats{scan},
	}
	scan.Parent = loop
	analysis := &analyzer.PlanAnalysis{Root: loop}

	msgs := insight.BuildMessages(analysis)
	found := false
	for _, m := range msgs {
		if strings.Contains(m.Text, "Nested Loop") {
			found = true
			if m.Severity != insight.SeverityCritical {
				t.Fatalf("expected a critical nested loop warning at 50000 loops, got %v", m.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected a nested loop message, got %v", msgs)
	}
}

func TestNodeLabelIncludesRelationAndAlias(t *testing.T) {
	node := &analyzer.NodeStats{
		Node: &model.Node{
			NodeType:     "Seq Scan",
			RelationName: "orders",
			Alias:        "o",
		},
	}
	label := insight.NodeLabel(node)
	if label != "Seq Scan orders (o)" {
		t.Fatalf("unexpected label: %q", label)
	}
}

func TestCompactLabelTruncatesLongLabels(t *testing.T) {
	node := &analyzer.NodeStats{
		Node: &model.Node{
			NodeType:     "Seq Scan",
			RelationName: strings.Repeat("a", 80),
		},
	}
	label := insight.CompactLabel(node)
	if len(label) != 60 {
		t.Fatalf("expected a label truncated to 60 chars, got %d: %q", len(label), label)
	}
	if !strings.HasSuffix(label, "...") {
		t.Fatalf("expected truncated label to end with an ellipsis, got %q", label)
	}
}

func TestHumanizeBuffersZeroAndPositive(t *testing.T) {
	if got := insight.HumanizeBuffers(0); got != "0" {
		t.Fatalf("expected \"0\" for zero blocks, got %q", got)
	}
	if got := insight.HumanizeBuffers(128); got == "" || got == "0" {
		t.Fatalf("expected a non-trivial humanized size for 128 blocks, got %q", got)
	}
}

func TestAnchorIDSanitizesLabel(t *testing.T) {
	node := &analyzer.NodeStats{
		Node: &model.Node{
			NodeType:     "Nested Loop (Left Join)",
			RelationName: "orders, items",
		},
	}
	anchor := insight.AnchorID(node)
	if strings.ContainsAny(anchor, "(),") || strings.Contains(anchor, " ") {
		t.Fatalf("expected anchor to be sanitized, got %q", anchor)
	}
}

package textplan

import "testing"

func TestParseSimpleTree(t *testing.T) {
	src := "Nested Loop  (cost=0.00..20.00 rows=5 width=24) (actual time=0.020..1.500 rows=5 loops=1)\n" +
		"  ->  Seq Scan on public.orders  (cost=0.00..10.00 rows=5 width=16) (actual time=0.010..1.000 rows=5 loops=1)\n" +
		"        Filter: (status = 'open'::text)\n" +
		"        Rows Removed by Filter: 3\n" +
		"  ->  Index Scan using customers_pkey on customers  (cost=0.00..1.50 rows=1 width=8) (actual time=0.005..0.005 rows=1 loops=5)\n" +
		"Planning Time: 0.123 ms\n" +
		"Execution Time: 1.789 ms\n"

	res, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Root == nil {
		t.Fatalf("expected a root node")
	}
	if res.Root.NodeType != "Nested Loop" {
		t.Fatalf("expected root NodeType %q, got %q", "Nested Loop", res.Root.NodeType)
	}
	if len(res.Root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(res.Root.Children))
	}

	seqScan := res.Root.Children[0]
	if seqScan.NodeType != "Seq Scan" || seqScan.RelationName != "orders" || seqScan.Schema != "public" {
		t.Fatalf("unexpected seq scan node: %+v", seqScan)
	}
	if seqScan.Filter != "(status = 'open'::text)" {
		t.Fatalf("expected filter to be captured, got %q", seqScan.Filter)
	}
	if seqScan.RowsRemovedByFilter == nil || *seqScan.RowsRemovedByFilter != 3 {
		t.Fatalf("expected rows removed by filter 3, got %v", seqScan.RowsRemovedByFilter)
	}

	indexScan := res.Root.Children[1]
	if indexScan.NodeType != "Index Scan" || indexScan.IndexName != "customers_pkey" || indexScan.RelationName != "customers" {
		t.Fatalf("unexpected index scan node: %+v", indexScan)
	}

	if res.PlanningTimeMs == nil || *res.PlanningTimeMs != 0.123 {
		t.Fatalf("expected planning time 0.123, got %v", res.PlanningTimeMs)
	}
	if res.ExecutionTimeMs == nil || *res.ExecutionTimeMs != 1.789 {
		t.Fatalf("expected execution time 1.789, got %v", res.ExecutionTimeMs)
	}
}

func TestParseMissingRootIsAnError(t *testing.T) {
	_, err := Parse("Planning Time: 0.1 ms\n")
	if err == nil {
		t.Fatalf("expected an error when no root node is found")
	}
}

func TestParseWorkersAndNeverExecuted(t *testing.T) {
	src := "Gather  (cost=0.00..100.00 rows=10 width=8) (actual time=0.50..5.00 rows=10 loops=1)\n" +
		"  Workers Planned: 2\n" +
		"  ->  Seq Scan on events  (cost=0.00..90.00 rows=5 width=8) (never executed)\n" +
		"        Worker 0:  actual time=0.100..2.000 rows=5 loops=1\n"

	res, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Root.WorkersPlanned == nil || *res.Root.WorkersPlanned != 2 {
		t.Fatalf("expected gather workers planned 2, got %v", res.Root.WorkersPlanned)
	}
	scan := res.Root.Children[0]
	if !scan.NeverExecuted {
		t.Fatalf("expected the scan to be marked never executed")
	}
	if len(scan.Workers) != 1 {
		t.Fatalf("expected one worker recorded on the scan, got %d", len(scan.Workers))
	}
	if scan.Workers[0].ActualRows == nil || *scan.Workers[0].ActualRows != 5 {
		t.Fatalf("expected worker actual rows 5, got %v", scan.Workers[0].ActualRows)
	}
}

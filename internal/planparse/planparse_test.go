package planparse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mickamy/xplain/internal/model"
)

// sampleDir walks up from the working directory to find the repository
// root (where go.mod lives) and returns its samples directory. Kept local
// rather than reusing the test package's equivalent helper: that package
// already imports planparse, so importing it here would cycle.
func sampleDir(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return filepath.Join(wd, "samples")
		}
		next := filepath.Dir(wd)
		if next == wd {
			t.Fatalf("go.mod not found from %s", wd)
		}
		wd = next
	}
}

func readSample(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(sampleDir(t), name))
	if err != nil {
		t.Fatalf("read sample %s: %v", name, err)
	}
	return string(data)
}

func TestParseSourceJSON(t *testing.T) {
	src := `[{"Plan": {"Node Type": "Seq Scan", "Relation Name": "users", "Actual Total Time": 1.5, "Actual Loops": 1}, "Planning Time": 0.1, "Execution Time": 1.6}]`

	plan, err := ParseSource(context.Background(), src, SourceOptions{Name: "t"})
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if plan.Content.Plan == nil || plan.Content.Plan.NodeType != "Seq Scan" {
		t.Fatalf("expected a Seq Scan root node, got %+v", plan.Content.Plan)
	}
	if plan.ID == "" {
		t.Fatalf("expected a generated plan ID")
	}
	if plan.PlanningTimeMs == nil || *plan.PlanningTimeMs != 0.1 {
		t.Fatalf("expected planning time 0.1, got %v", plan.PlanningTimeMs)
	}
}

func TestParseSourceYAML(t *testing.T) {
	src := "- Plan:\n    Node Type: \"Seq Scan\"\n    Relation Name: \"users\"\n    Actual Total Time: 1.5\n    Actual Loops: 1\n  Planning Time: 0.2\n  Execution Time: 1.8\n"

	plan, err := ParseSource(context.Background(), src, SourceOptions{Name: "t"})
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if plan.Content.Plan == nil || plan.Content.Plan.NodeType != "Seq Scan" {
		t.Fatalf("expected a Seq Scan root node from yaml, got %+v", plan.Content.Plan)
	}
	if plan.Content.Plan.RelationName != "users" {
		t.Fatalf("expected relation name users, got %q", plan.Content.Plan.RelationName)
	}
}

func TestParseSourceText(t *testing.T) {
	src := "Seq Scan on public.users  (cost=0.00..1.01 rows=1 width=4) (actual time=0.010..1.500 rows=1 loops=1)\n" +
		"Planning Time: 0.2 ms\n" +
		"Execution Time: 1.8 ms\n"

	plan, err := ParseSource(context.Background(), src, SourceOptions{Name: "t"})
	if err != nil {
		t.Fatalf("parse text: %v", err)
	}
	if plan.Content.Plan == nil || plan.Content.Plan.NodeType != "Seq Scan" {
		t.Fatalf("expected a Seq Scan root node from text, got %+v", plan.Content.Plan)
	}
	if plan.ExecutionTimeMs == nil || *plan.ExecutionTimeMs != 1.8 {
		t.Fatalf("expected execution time 1.8, got %v", plan.ExecutionTimeMs)
	}
}

func TestParseSourcePropagatesJSONSyntaxError(t *testing.T) {
	src := "[\n  {\"Plan\": \n]\n"
	_, err := ParseSource(context.Background(), src, SourceOptions{})
	if !errors.Is(err, model.ErrJSONSyntax) {
		t.Fatalf("expected ErrJSONSyntax, got %v", err)
	}
}

func TestParseSourceUsesProvidedID(t *testing.T) {
	plan, err := ParseSource(context.Background(), `{"Plan": {"Node Type": "Result"}}`, SourceOptions{ID: "fixed-id"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if plan.ID != "fixed-id" {
		t.Fatalf("expected provided ID to be preserved, got %q", plan.ID)
	}
}

func TestParseSourceSamplesAgreeAcrossWireFormats(t *testing.T) {
	jsonPlan, err := ParseSource(context.Background(), readSample(t, "simple_select.json"), SourceOptions{})
	if err != nil {
		t.Fatalf("parse json sample: %v", err)
	}
	yamlPlan, err := ParseSource(context.Background(), readSample(t, "simple_select.yaml"), SourceOptions{})
	if err != nil {
		t.Fatalf("parse yaml sample: %v", err)
	}
	textPlan, err := ParseSource(context.Background(), readSample(t, "simple_select.txt"), SourceOptions{})
	if err != nil {
		t.Fatalf("parse text sample: %v", err)
	}

	for _, plan := range []*model.Plan{jsonPlan, yamlPlan, textPlan} {
		if plan.Content.Plan == nil || plan.Content.Plan.NodeType != "Seq Scan" {
			t.Fatalf("expected a Seq Scan root, got %+v", plan.Content.Plan)
		}
		if plan.Content.Plan.RelationName != "users" {
			t.Fatalf("expected relation users, got %q", plan.Content.Plan.RelationName)
		}
		if plan.Content.Plan.ActualRows == nil || *plan.Content.Plan.ActualRows != 480 {
			t.Fatalf("expected 480 actual rows, got %v", plan.Content.Plan.ActualRows)
		}
	}
	if jsonPlan.PlanningTimeMs == nil || *jsonPlan.PlanningTimeMs != 0.085 {
		t.Fatalf("expected json planning time 0.085, got %v", jsonPlan.PlanningTimeMs)
	}
	if yamlPlan.PlanningTimeMs == nil || *yamlPlan.PlanningTimeMs != *jsonPlan.PlanningTimeMs {
		t.Fatalf("expected yaml planning time to match json, got %v vs %v", yamlPlan.PlanningTimeMs, jsonPlan.PlanningTimeMs)
	}
}

func TestParseSourceMergesDuplicateSettingsKeys(t *testing.T) {
	plan, err := ParseSource(context.Background(), readSample(t, "duplicate_settings.json"), SourceOptions{})
	if err != nil {
		t.Fatalf("parse duplicate settings sample: %v", err)
	}
	if plan.Content.Plan == nil || plan.Content.Plan.RelationName != "events" {
		t.Fatalf("expected events seq scan root, got %+v", plan.Content.Plan)
	}
	settings := plan.Content.Plan.Settings
	if settings["work_mem"] != "4MB" || settings["effective_cache_size"] != "2GB" {
		t.Fatalf("expected both duplicate Settings keys to survive the merge, got %v", settings)
	}
}

func TestCleanupSourceStripsFraming(t *testing.T) {
	out := CleanupSource("                         QUERY PLAN\n----\n Seq Scan on foo\n(1 row)\n")
	if out != " Seq Scan on foo\n" {
		t.Fatalf("unexpected cleanup result: %q", out)
	}
}

package jsonplan

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mickamy/xplain/internal/model"
)

func TestParseUnwrapsTopLevelArray(t *testing.T) {
	src := `[{"Plan": {"Node Type": "Seq Scan"}, "Planning Time": 0.1}]`
	obj, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := obj["Plan"]; !ok {
		t.Fatalf("expected top-level array to unwrap to its single entry, got %v", obj)
	}
}

func TestParseDuplicateKeysMergeObjects(t *testing.T) {
	src := `{"Node Type": "Seq Scan", "Settings": {"work_mem": "4MB"}, "Settings": {"effective_cache_size": "2GB"}}`
	obj, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	settings, ok := obj["Settings"].(map[string]any)
	if !ok {
		t.Fatalf("expected Settings to merge into an object, got %T", obj["Settings"])
	}
	if settings["work_mem"] != "4MB" || settings["effective_cache_size"] != "2GB" {
		t.Fatalf("expected both duplicate Settings keys to survive the merge, got %v", settings)
	}
}

func TestParseDuplicateKeysMergeArraysByIndex(t *testing.T) {
	src := `{"Workers": [{"Worker Number": 0}], "Workers": [{"Actual Rows": 10}]}`
	obj, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	workers, ok := obj["Workers"].([]any)
	if !ok || len(workers) != 1 {
		t.Fatalf("expected a single index-aligned merged worker, got %v", obj["Workers"])
	}
	worker, ok := workers[0].(map[string]any)
	if !ok {
		t.Fatalf("expected merged worker entry to be an object")
	}
	if worker["Worker Number"] != json.Number("0") || worker["Actual Rows"] != json.Number("10") {
		t.Fatalf("expected merged worker to carry fields from both duplicates, got %v", worker)
	}
}

func TestParseDuplicateKeysTypeMismatchOverwrites(t *testing.T) {
	src := `{"Filter": "(a > 0)", "Filter": 1}`
	obj, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["Filter"] != json.Number("1") {
		t.Fatalf("expected the later scalar to overwrite the earlier one, got %v", obj["Filter"])
	}
}

func TestParseSyntaxErrorWrapsSentinel(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"Plan": `))
	if !errors.Is(err, model.ErrJSONSyntax) {
		t.Fatalf("expected ErrJSONSyntax, got %v", err)
	}
}

func TestParseEmptyArrayIsAnError(t *testing.T) {
	_, err := Parse(strings.NewReader(`[]`))
	if !errors.Is(err, model.ErrJSONSyntax) {
		t.Fatalf("expected ErrJSONSyntax for empty top-level array, got %v", err)
	}
}

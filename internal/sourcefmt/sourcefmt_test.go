package sourcefmt

import "testing"

func TestDetectJSONValue(t *testing.T) {
	src := `[{"Plan": {"Node Type": "Seq Scan"}}]`
	format, consumed := Detect(src)
	if format != FormatJSON {
		t.Fatalf("expected FormatJSON, got %v", format)
	}
	if consumed != src {
		t.Fatalf("expected the trimmed source back unchanged, got %q", consumed)
	}
}

func TestDetectYAML(t *testing.T) {
	src := "- Plan:\n    Node Type: \"Seq Scan\"\n    Relation Name: \"foo\"\n"
	format, consumed := Detect(src)
	if format != FormatYAML {
		t.Fatalf("expected FormatYAML, got %v", format)
	}
	if consumed != src {
		t.Fatalf("expected the full source back for YAML, got %q", consumed)
	}
}

func TestDetectPlainText(t *testing.T) {
	src := "Seq Scan on foo  (cost=0.00..1.01 rows=1 width=4)\n"
	format, _ := Detect(src)
	if format != FormatText {
		t.Fatalf("expected FormatText, got %v", format)
	}
}

func TestDetectEmptySource(t *testing.T) {
	format, consumed := Detect("   \n  ")
	if format != FormatText {
		t.Fatalf("expected FormatText for blank input, got %v", format)
	}
	if consumed != "   \n  " {
		t.Fatalf("expected the original source back for blank input")
	}
}

func TestDetectEmbeddedBracket(t *testing.T) {
	src := "Here is the plan:\n[\n  {\n    \"Plan\": {\"Node Type\": \"Seq Scan\"}\n  }\n]\nThanks\n"
	format, consumed := Detect(src)
	if format != FormatJSON {
		t.Fatalf("expected FormatJSON for embedded bracket, got %v", format)
	}
	wantPrefix := "[\n  {"
	if len(consumed) < len(wantPrefix) || consumed[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("expected extracted block to start with %q, got %q", wantPrefix, consumed)
	}
}

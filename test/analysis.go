package test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mickamy/xplain/internal/analyzer"
	"github.com/mickamy/xplain/internal/model"
	"github.com/mickamy/xplain/internal/planparse"
)

var (
	rootPath string
	once     sync.Once
)

// RootPath resolves a path relative to the repository rootPath (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// LoadSamplePlan parses a sample EXPLAIN document relative to the
// repository rootPath, regardless of its wire format.
func LoadSamplePlan(t *testing.T, rel string) *model.Plan {
	t.Helper()
	root := RootPath(t)
	data, err := os.ReadFile(filepath.Join(root, "samples", rel))
	if err != nil {
		t.Fatalf("read plan: %v", err)
	}
	plan, err := planparse.ParseSource(context.Background(), string(data), planparse.SourceOptions{Name: rel})
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	return plan
}

// LoadSampleAnalysis loads, parses and analyzes a plan relative to the
// repository rootPath.
func LoadSampleAnalysis(t *testing.T, rel string) *analyzer.PlanAnalysis {
	t.Helper()
	plan := LoadSamplePlan(t, rel)
	analysis, err := analyzer.Analyze(plan)
	if err != nil {
		t.Fatalf("analyze plan: %v", err)
	}
	return analysis
}

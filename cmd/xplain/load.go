package xplain

import (
	"context"
	"fmt"
	"os"

	"github.com/mickamy/xplain/internal/analyzer"
	"github.com/mickamy/xplain/internal/model"
	"github.com/mickamy/xplain/internal/planparse"
)

func loadPlan(path string) (*model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	plan, err := planparse.ParseSource(context.Background(), string(data), planparse.SourceOptions{Name: path})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return plan, nil
}

func loadAnalysis(path string) (*analyzer.PlanAnalysis, error) {
	plan, err := loadPlan(path)
	if err != nil {
		return nil, err
	}
	return analyzer.Analyze(plan)
}

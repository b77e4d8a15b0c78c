package xplain

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mickamy/xplain/internal/analyzer"
	"github.com/mickamy/xplain/internal/planparse"
	"github.com/mickamy/xplain/internal/render/html"
	"github.com/mickamy/xplain/internal/render/tui"
	"github.com/mickamy/xplain/internal/runner"
)

var (
	analyzeURL      string
	analyzeSQLPath  string
	analyzeQuery    string
	analyzeMode     string
	analyzeOut      string
	analyzeTitle    string
	analyzeColor    bool
	analyzeMaxDepth int
	analyzeWarnings bool
	analyzeCSS      bool
	analyzeTimeout  time.Duration
	analyzeFormat   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run EXPLAIN and render a report in one step",
	RunE: func(cmd *cobra.Command, args []string) error {
		connection := strings.TrimSpace(analyzeURL)
		if connection == "" {
			connection = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if connection == "" {
			return fmt.Errorf("--url is required or set $DATABASE_URL")
		}
		if analyzeSQLPath != "" && analyzeQuery != "" {
			return fmt.Errorf("specify only one of --sql or --query")
		}

		var sqlText string
		switch {
		case analyzeSQLPath != "":
			data, err := os.ReadFile(analyzeSQLPath)
			if err != nil {
				return fmt.Errorf("read sql file: %w", err)
			}
			sqlText = string(data)
		case analyzeQuery != "":
			sqlText = analyzeQuery
		default:
			return fmt.Errorf("--sql or --query is required")
		}

		format, err := parseOutputFormat(analyzeFormat)
		if err != nil {
			return err
		}

		result, err := runner.Run(cmd.Context(), connection, sqlText, runner.Options{
			Timeout: analyzeTimeout,
			Format:  format,
			Analyze: true,
			Buffers: true,
		})
		if err != nil {
			return err
		}

		plan, err := planparse.ParseSource(context.Background(), string(result), planparse.SourceOptions{Name: "analyze"})
		if err != nil {
			return err
		}
		analysis, err := analyzer.Analyze(plan)
		if err != nil {
			return err
		}

		return renderAnalysis(analysis, analyzeMode, analyzeOut, renderOptions{
			Title:        analyzeTitle,
			Color:        analyzeColor,
			MaxDepth:     analyzeMaxDepth,
			ShowWarnings: analyzeWarnings,
			IncludeCSS:   analyzeCSS,
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "PostgreSQL connection string; defaults to $DATABASE_URL")
	analyzeCmd.Flags().StringVar(&analyzeSQLPath, "sql", "", "Path to the SQL file to EXPLAIN")
	analyzeCmd.Flags().StringVar(&analyzeQuery, "query", "", "Inline SQL string to EXPLAIN")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "tui", "Output mode: tui or html")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Output path (stdout if omitted)")
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "xplain report", "Report title (HTML)")
	analyzeCmd.Flags().BoolVar(&analyzeColor, "color", true, "Enable ANSI colors for TUI output")
	analyzeCmd.Flags().IntVar(&analyzeMaxDepth, "max-depth", 0, "Limit tree depth (TUI)")
	analyzeCmd.Flags().BoolVar(&analyzeWarnings, "warnings", true, "Show warnings (TUI)")
	analyzeCmd.Flags().BoolVar(&analyzeCSS, "css", true, "Include inline styles (HTML)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "Optional execution timeout, e.g. 45s")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "EXPLAIN output format to request: json, yaml or text")
}

type renderOptions struct {
	Title        string
	Color        bool
	MaxDepth     int
	ShowWarnings bool
	IncludeCSS   bool
}

func renderAnalysis(analysis *analyzer.PlanAnalysis, mode, outPath string, opts renderOptions) error {
	target := io.Writer(os.Stdout)
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()
		target = file
	}

	switch mode {
	case "tui":
		return tui.Render(target, analysis, tui.Options{
			EnableColor:  opts.Color,
			MaxDepth:     opts.MaxDepth,
			ShowWarnings: opts.ShowWarnings,
		})
	case "html":
		return html.Render(target, analysis, html.Options{
			Title:         opts.Title,
			IncludeStyles: opts.IncludeCSS,
		})
	default:
		return fmt.Errorf("unknown mode %q (expected tui or html)", mode)
	}
}

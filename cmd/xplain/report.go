package xplain

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reportInput    string
	reportOut      string
	reportMode     string
	reportTitle    string
	reportColor    bool
	reportMaxDepth int
	reportWarnings bool
	reportCSS      bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a plan report (TUI or HTML) from a saved EXPLAIN document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportInput == "" {
			return fmt.Errorf("--input is required")
		}

		analysis, err := loadAnalysis(reportInput)
		if err != nil {
			return err
		}

		return renderAnalysis(analysis, reportMode, reportOut, renderOptions{
			Title:        reportTitle,
			Color:        reportColor,
			MaxDepth:     reportMaxDepth,
			ShowWarnings: reportWarnings,
			IncludeCSS:   reportCSS,
		})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportInput, "input", "", "Path to an EXPLAIN document (text, JSON or YAML)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output path (stdout if omitted)")
	reportCmd.Flags().StringVar(&reportMode, "mode", "tui", "Output mode: tui or html")
	reportCmd.Flags().StringVar(&reportTitle, "title", "xplain report", "Report title (HTML)")
	reportCmd.Flags().BoolVar(&reportColor, "color", true, "Enable ANSI colors for TUI output")
	reportCmd.Flags().IntVar(&reportMaxDepth, "max-depth", 0, "Limit tree depth (TUI)")
	reportCmd.Flags().BoolVar(&reportWarnings, "warnings", true, "Show warnings (TUI)")
	reportCmd.Flags().BoolVar(&reportCSS, "css", true, "Include inline styles (HTML)")
}

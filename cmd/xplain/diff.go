package xplain

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mickamy/xplain/internal/diff"
)

var (
	diffBasePath   string
	diffTargetPath string
	diffFormat     string
	diffOut        string
	diffMinDelta   float64
	diffMinPercent float64
	diffMaxItems   int
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two plans and emit a Markdown or JSON summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		if diffBasePath == "" || diffTargetPath == "" {
			return fmt.Errorf("--base and --target are required")
		}

		baseAnalysis, err := loadAnalysis(diffBasePath)
		if err != nil {
			return fmt.Errorf("load base: %w", err)
		}
		targetAnalysis, err := loadAnalysis(diffTargetPath)
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}

		report, err := diff.Compare(baseAnalysis, targetAnalysis, diff.Options{
			MinSelfTimeDeltaMs: diffMinDelta,
			MinPercentChange:   diffMinPercent,
			MaxItems:           diffMaxItems,
		})
		if err != nil {
			return err
		}

		switch diffFormat {
		case "md", "markdown":
			content := report.Markdown()
			if diffOut == "" {
				fmt.Print(content)
				return nil
			}
			return os.WriteFile(diffOut, []byte(content), 0o644)
		case "json":
			payload, err := report.JSON()
			if err != nil {
				return err
			}
			if diffOut == "" {
				os.Stdout.Write(payload)
				os.Stdout.WriteString("\n")
				return nil
			}
			return os.WriteFile(diffOut, payload, 0o644)
		default:
			return fmt.Errorf("unsupported format %q", diffFormat)
		}
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVar(&diffBasePath, "base", "", "Path to the baseline EXPLAIN document")
	diffCmd.Flags().StringVar(&diffTargetPath, "target", "", "Path to the target EXPLAIN document")
	diffCmd.Flags().StringVar(&diffFormat, "format", "md", "Output format: md or json")
	diffCmd.Flags().StringVar(&diffOut, "out", "", "Output path (stdout if omitted)")
	diffCmd.Flags().Float64Var(&diffMinDelta, "min-delta", 0, "Minimum self-time delta in ms to report (default from config)")
	diffCmd.Flags().Float64Var(&diffMinPercent, "min-percent", 0, "Minimum percent change to report (default from config)")
	diffCmd.Flags().IntVar(&diffMaxItems, "limit", 0, "Maximum rows per section (default from config)")
}

package xplain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mickamy/xplain/internal/planparse"
)

var (
	parseInput  string
	parseOutput string
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse an EXPLAIN document (text, JSON or YAML) into the enriched plan model",
	RunE: func(cmd *cobra.Command, args []string) error {
		if parseInput == "" {
			return fmt.Errorf("--input is required")
		}
		data, err := os.ReadFile(parseInput)
		if err != nil {
			return fmt.Errorf("read %s: %w", parseInput, err)
		}
		plan, err := planparse.ParseSource(context.Background(), string(data), planparse.SourceOptions{Name: parseInput})
		if err != nil {
			return err
		}

		payload, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		payload = append(payload, '\n')

		if parseOutput == "" {
			_, err = os.Stdout.Write(payload)
			return err
		}
		return os.WriteFile(parseOutput, payload, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseInput, "input", "", "Path to the EXPLAIN document to parse")
	parseCmd.Flags().StringVar(&parseOutput, "out", "", "Path to write the enriched plan JSON (stdout if omitted)")
}

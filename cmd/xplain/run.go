package xplain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mickamy/xplain/internal/runner"
)

var (
	runURL     string
	runSQLPath string
	runOut     string
	runTimeout time.Duration
	runFormat  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute EXPLAIN for a query against a live database",
	RunE: func(cmd *cobra.Command, args []string) error {
		connection := strings.TrimSpace(runURL)
		if connection == "" {
			connection = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if connection == "" {
			return fmt.Errorf("--url is required or set $DATABASE_URL")
		}
		if runSQLPath == "" {
			return fmt.Errorf("--sql is required")
		}

		sqlBytes, err := os.ReadFile(runSQLPath)
		if err != nil {
			return fmt.Errorf("read sql file: %w", err)
		}

		format, err := parseOutputFormat(runFormat)
		if err != nil {
			return err
		}

		result, err := runner.Run(cmd.Context(), connection, string(sqlBytes), runner.Options{
			Timeout: runTimeout,
			Format:  format,
			Analyze: true,
			Buffers: true,
		})
		if err != nil {
			return err
		}

		payload := result
		if format == runner.OutputJSON {
			payload, err = indentJSON(result)
			if err != nil {
				return err
			}
		}

		if runOut == "" {
			_, err = os.Stdout.Write(payload)
			return err
		}
		return os.WriteFile(runOut, payload, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runURL, "url", "", "PostgreSQL connection string; defaults to $DATABASE_URL")
	runCmd.Flags().StringVar(&runSQLPath, "sql", "", "Path to the SQL file to EXPLAIN")
	runCmd.Flags().StringVar(&runOut, "out", "", "Path to write the result (defaults to stdout)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Optional execution timeout, e.g. 45s")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "EXPLAIN output format: json, yaml or text")
}

func parseOutputFormat(s string) (runner.OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return runner.OutputJSON, nil
	case "yaml":
		return runner.OutputYAML, nil
	case "text":
		return runner.OutputText, nil
	default:
		return 0, fmt.Errorf("unsupported format %q (expected json, yaml or text)", s)
	}
}

func indentJSON(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indent json: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

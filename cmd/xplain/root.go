// Package xplain implements the xplain command-line tool: run EXPLAIN
// against a live database, analyze or diff saved plans, and render reports.
package xplain

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mickamy/xplain/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "xplain",
	Short: "PostgreSQL EXPLAIN analyzer",
	Long: `xplain parses PostgreSQL EXPLAIN output (text, JSON or YAML),
enriches the plan tree with derived timing and buffer metrics, and
renders hotspot, estimate-drift and buffer-churn insights.`,
	SilenceUsage: true,
}

// Execute runs the root command, setting the reported CLI version first.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (YAML/JSON). Falls back to $XPLAIN_CONFIG")
	cobra.OnInitialize(applyConfig)
}

func applyConfig() {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("XPLAIN_CONFIG"))
	}
	if err := config.Apply(path); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		os.Exit(1)
	}
}

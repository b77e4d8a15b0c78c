// Package runner executes EXPLAIN against a live PostgreSQL connection and
// hands the raw wire payload back for parsing.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mickamy/xplain/internal/sourcefmt"
)

// OutputFormat selects the FORMAT clause passed to EXPLAIN.
type OutputFormat int

const (
	// OutputJSON requests FORMAT JSON (the default).
	OutputJSON OutputFormat = iota
	// OutputYAML requests FORMAT YAML.
	OutputYAML
	// OutputText requests FORMAT TEXT, PostgreSQL's default textual form.
	OutputText
)

func (f OutputFormat) clause() string {
	switch f {
	case OutputYAML:
		return "YAML"
	case OutputText:
		return "TEXT"
	default:
		return "JSON"
	}
}

// SourceFormat reports the sourcefmt.Format this output format decodes as.
func (f OutputFormat) SourceFormat() sourcefmt.Format {
	switch f {
	case OutputYAML:
		return sourcefmt.FormatYAML
	case OutputText:
		return sourcefmt.FormatText
	default:
		return sourcefmt.FormatJSON
	}
}

// Options customises how EXPLAIN is executed.
type Options struct {
	Timeout time.Duration
	Format  OutputFormat
	Analyze bool
	Buffers bool
	Verbose bool
}

// Run executes EXPLAIN for the provided SQL statement using opts.Format and
// returns the raw payload as PostgreSQL emitted it (a JSON/YAML document or
// the plain-text table form, depending on opts.Format).
func Run(ctx context.Context, dsn, sqlStatement string, opts Options) ([]byte, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("runner: empty DSN")
	}
	query := strings.TrimSpace(sqlStatement)
	if query == "" {
		return nil, errors.New("runner: empty sql statement")
	}

	explainSQL := fmt.Sprintf("EXPLAIN (%s) %s", explainOptions(opts), query)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("runner: connect: %w", err)
	}
	defer func(conn *pgx.Conn, ctx context.Context) {
		_ = conn.Close(ctx)
	}(conn, ctx)

	rows, err := conn.Query(ctx, explainSQL)
	if err != nil {
		return nil, fmt.Errorf("runner: query: %w", err)
	}
	defer rows.Close()

	// Every format is scanned as one text column per row; the rows are
	// joined with newlines, so FORMAT TEXT's one-line-per-row output and a
	// single-row JSON or YAML document both come back whole.
	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("runner: scan: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runner: rows: %w", err)
	}

	return []byte(strings.Join(lines, "\n")), nil
}

func explainOptions(opts Options) string {
	var parts []string
	if opts.Analyze {
		parts = append(parts, "ANALYZE")
	}
	if opts.Buffers {
		parts = append(parts, "BUFFERS")
	}
	if opts.Verbose {
		parts = append(parts, "VERBOSE")
	}
	parts = append(parts, "FORMAT "+opts.Format.clause())
	return strings.Join(parts, ", ")
}

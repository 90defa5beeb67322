package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.yaml.in/yaml/v3"
)

type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
	OutputYAML  OutputFormat = "yaml"
)

// ParseOutputFormat accepts table, json or yaml.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputTable, OutputJSON, OutputYAML:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want table, json or yaml)", s)
}

type OutputOptions struct {
	Format OutputFormat
	Quiet  bool
	Writer io.Writer
}

func NewOutputOptions() *OutputOptions {
	return &OutputOptions{Format: OutputTable, Writer: os.Stdout}
}

// PrintOutput writes data as JSON or YAML, or as a table drawn by table.
// YAML keys follow the JSON field names.
func PrintOutput(opts *OutputOptions, data any, table func(w io.Writer)) error {
	if opts.Quiet {
		return nil
	}
	switch opts.Format {
	case OutputJSON:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(opts.Writer, string(b))
		return err
	case OutputYAML:
		b, err := toYAML(data)
		if err != nil {
			return err
		}
		_, err = opts.Writer.Write(b)
		return err
	default:
		tw := tabwriter.NewWriter(opts.Writer, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func toYAML(data any) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal YAML: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, fmt.Errorf("marshal YAML: %w", err)
	}
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("marshal YAML: %w", err)
	}
	return out, nil
}

func row(w io.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

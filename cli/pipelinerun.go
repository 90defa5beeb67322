package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/orchestrator/history"
)

func NewPipelineRunCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pipeline-run",
		Aliases: []string{"run", "runs"},
		Short:   "Query, inspect, cancel and archive runs",
	}
	cmd.AddCommand(
		newRunQueryCommand(root),
		newRunShowCommand(root),
		newRunCancelCommand(root),
		newRunArchiveCommand(root),
	)
	return cmd
}

func newRunQueryCommand(root *RootCommand) *cobra.Command {
	var (
		q        RunQuery
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List runs matching a filter",
		Long: `List runs oldest first. --from and --to bound the start time as RFC 3339
timestamps, from inclusive and to exclusive.`,
		Example: `  orchestrator pipeline-run query --pipeline collect-stations --status Failed
  orchestrator pipeline-run query --trigger every-5m --from 2024-05-01T00:00:00Z --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if q.From, err = parseTimeFlag("from", from); err != nil {
				return err
			}
			if q.To, err = parseTimeFlag("to", to); err != nil {
				return err
			}
			if q.Status != "" {
				if _, ok := history.ParseRunStatus(q.Status); !ok {
					return fmt.Errorf("invalid --status %q", q.Status)
				}
			}
			client, err := root.Client()
			if err != nil {
				return err
			}
			runs, err := client.QueryRuns(cmd.Context(), q)
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), runs, func(w io.Writer) {
				row(w, "RUN", "PIPELINE", "TRIGGER", "STATUS", "STARTED", "DURATION")
				now := time.Now()
				for i := range runs {
					r := &runs[i]
					row(w, r.ID, r.Pipeline, orDash(r.Trigger), r.Status, formatTime(&r.StartedAt), r.Duration(now).Round(time.Millisecond))
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Pipeline, "pipeline", "", "Only runs of this pipeline")
	f.StringVar(&q.Trigger, "trigger", "", "Only runs started by this trigger")
	f.StringVar(&q.Status, "status", "", "Only runs in this status (Running, Succeeded, Failed, PartialSuccess)")
	f.StringVar(&from, "from", "", "Earliest start time, RFC 3339")
	f.StringVar(&to, "to", "", "Start time upper bound, RFC 3339")
	f.IntVar(&q.Limit, "limit", 0, "Maximum number of runs (server default when 0)")
	return cmd
}

func newRunShowCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "show <run-id>",
		Short:   "Show a run and its activities",
		Example: "  orchestrator pipeline-run show 1f0c6a9e-2b1d-4b8e-9d4e-5d0c9a1b7e21 -o yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.Client()
			if err != nil {
				return err
			}
			run, err := client.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), run, func(w io.Writer) { printRun(w, run) })
		},
	}
}

func printRun(w io.Writer, r *history.Run) {
	fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	fmt.Fprintf(w, "Pipeline:\t%s\n", r.Pipeline)
	fmt.Fprintf(w, "Trigger:\t%s\n", orDash(r.Trigger))
	if r.ScheduledAt != nil {
		fmt.Fprintf(w, "Scheduled:\t%s (attempt %d)\n", formatTime(r.ScheduledAt), r.Attempt)
	}
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	fmt.Fprintf(w, "Started:\t%s\n", formatTime(&r.StartedAt))
	fmt.Fprintf(w, "Ended:\t%s\n", formatTime(r.EndedAt))
	if r.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
	fmt.Fprintln(w)
	row(w, "ACTIVITY", "STATUS", "HTTP", "ATTEMPTS", "ERROR")
	for _, a := range r.Activities {
		code := "-"
		if a.HTTPStatus != nil {
			code = fmt.Sprint(*a.HTTPStatus)
		}
		row(w, a.Key, a.Status, code, a.AttemptCount, orDash(a.Error))
	}
}

func newRunCancelCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "cancel <run-id>",
		Short:   "Cancel a running run",
		Example: "  orchestrator pipeline-run cancel 1f0c6a9e-2b1d-4b8e-9d4e-5d0c9a1b7e21",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.Client()
			if err != nil {
				return err
			}
			res, err := client.CancelRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Run %s is %s\n", res.RunID, res.Status)
			})
		},
	}
}

func newRunArchiveCommand(root *RootCommand) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export finished runs to archive storage",
		Long: `Write every finished run started in [from, to) to the configured archive
storage as JSON Lines. Both bounds are RFC 3339 timestamps.`,
		Example: "  orchestrator pipeline-run archive --from 2024-05-01T00:00:00Z --to 2024-05-02T00:00:00Z",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTimeFlag("from", from)
			if err != nil {
				return err
			}
			end, err := parseTimeFlag("to", to)
			if err != nil {
				return err
			}
			if start == nil || end == nil {
				return fmt.Errorf("--from and --to are required")
			}
			client, err := root.Client()
			if err != nil {
				return err
			}
			res, err := client.ArchiveRuns(cmd.Context(), *start, *end)
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Archived %d runs to %s\n", res.Runs, res.Path)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Earliest start time, RFC 3339")
	cmd.Flags().StringVar(&to, "to", "", "Start time upper bound, RFC 3339")
	return cmd
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: expected RFC 3339", name, value)
	}
	return &t, nil
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/orchestrator/scheduler"
)

func NewTriggerCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "List, start and stop triggers",
		Long: `Manage the triggers of a running orchestrator. A stopped trigger fires no
runs until started again; with redis enabled the state survives restarts.`,
	}
	cmd.AddCommand(
		newTriggerListCommand(root),
		newTriggerToggleCommand(root, "start", "Activate a trigger"),
		newTriggerToggleCommand(root, "stop", "Deactivate a trigger"),
		newTriggerLastSuccessCommand(root),
	)
	return cmd
}

func newTriggerListCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List triggers and their next fire time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.Client()
			if err != nil {
				return err
			}
			list, err := client.ListTriggers(cmd.Context())
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), list, func(w io.Writer) {
				row(w, "NAME", "PIPELINE", "SCHEDULE", "TIME ZONE", "ACTIVE", "NEXT")
				for _, t := range list {
					row(w, t.Name, t.Pipeline, t.Schedule, t.TimeZone, t.Active, formatTime(t.Next))
				}
			})
		},
	}
}

func newTriggerToggleCommand(root *RootCommand, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:     action + " <name>",
		Short:   short,
		Example: fmt.Sprintf("  orchestrator trigger %s daily-0600", action),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.Client()
			if err != nil {
				return err
			}
			var info *scheduler.TriggerInfo
			if action == "start" {
				info, err = client.StartTrigger(cmd.Context(), args[0])
			} else {
				info, err = client.StopTrigger(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), info, func(w io.Writer) {
				state := "inactive"
				if info.Active {
					state = "active"
				}
				fmt.Fprintf(w, "Trigger %s is %s\n", info.Name, state)
			})
		},
	}
}

func newTriggerLastSuccessCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "last-success <name>",
		Short: "Show the latest successful run of a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.Client()
			if err != nil {
				return err
			}
			run, err := client.LastSuccess(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), run, func(w io.Writer) {
				if run == nil {
					fmt.Fprintf(w, "Trigger %s has no successful run\n", args[0])
					return
				}
				printRun(w, run)
			})
		},
	}
}

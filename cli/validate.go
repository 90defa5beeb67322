package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/orchestrator/definition"
	"github.com/kbukum/orchestrator/trigger"
)

// DefinitionReport summarizes a valid set of definitions.
type DefinitionReport struct {
	Pipelines []PipelineReport `json:"pipelines"`
	Triggers  []TriggerReport  `json:"triggers"`
}

type PipelineReport struct {
	Name       string `json:"name"`
	Activities int    `json:"activities"`
	Parameters int    `json:"parameters"`
}

type TriggerReport struct {
	Name      string `json:"name"`
	Pipeline  string `json:"pipeline"`
	Schedule  string `json:"schedule"`
	TimeZone  string `json:"time_zone,omitempty"`
	Activated bool   `json:"activated"`
}

func NewValidateCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Check pipeline and trigger definitions",
		Long: `Load YAML and HCL definition files, or every definition file under the
given directories, and check pipelines, triggers and the references between
them. Nothing is started.`,
		Example: `  orchestrator validate ./definitions
  orchestrator validate irail.yaml irail.hcl -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := definition.LoadPaths(args...)
			if err != nil {
				return err
			}
			if err := set.Validate(); err != nil {
				return err
			}
			return printDefinitionReport(root.OutputOptions(), report(set))
		},
	}
	return cmd
}

func report(set *definition.Set) DefinitionReport {
	r := DefinitionReport{
		Pipelines: make([]PipelineReport, 0, len(set.Pipelines)),
		Triggers:  make([]TriggerReport, 0, len(set.Triggers)),
	}
	for _, p := range set.Pipelines {
		r.Pipelines = append(r.Pipelines, PipelineReport{
			Name:       p.Name,
			Activities: len(p.Activities),
			Parameters: len(p.Parameters),
		})
	}
	for _, t := range set.Triggers {
		r.Triggers = append(r.Triggers, TriggerReport{
			Name:      t.Name,
			Pipeline:  t.Pipeline,
			Schedule:  trigger.Describe(t.Schedule),
			TimeZone:  t.TimeZone,
			Activated: t.Activated,
		})
	}
	return r
}

func printDefinitionReport(opts *OutputOptions, r DefinitionReport) error {
	return PrintOutput(opts, r, func(w io.Writer) {
		fmt.Fprintf(w, "Definitions are valid: %d pipelines, %d triggers\n\n", len(r.Pipelines), len(r.Triggers))
		row(w, "PIPELINE", "ACTIVITIES", "PARAMETERS")
		for _, p := range r.Pipelines {
			row(w, p.Name, p.Activities, p.Parameters)
		}
		if len(r.Triggers) == 0 {
			return
		}
		fmt.Fprintln(w)
		row(w, "TRIGGER", "PIPELINE", "SCHEDULE", "TIME ZONE", "ACTIVATED")
		for _, t := range r.Triggers {
			row(w, t.Name, t.Pipeline, t.Schedule, orDash(t.TimeZone), t.Activated)
		}
	})
}

package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/orchestrator/pipeline"
)

func NewPipelineCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Inspect pipelines and start on-demand runs",
		Long:  "List the pipelines loaded by a running orchestrator and start runs outside any trigger.",
	}
	cmd.AddCommand(
		newPipelineListCommand(root),
		newPipelineShowCommand(root),
		newPipelineCreateRunCommand(root),
	)
	return cmd
}

func newPipelineListCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List pipelines",
		Example: "  orchestrator pipeline list -o yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.Client()
			if err != nil {
				return err
			}
			list, err := client.ListPipelines(cmd.Context())
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), list, func(w io.Writer) {
				row(w, "NAME", "FOLDER", "ACTIVITIES", "PARAMETERS")
				for _, p := range list {
					row(w, p.Name, orDash(p.Folder), strings.Join(p.Activities, ","), len(p.Parameters))
				}
			})
		},
	}
}

func newPipelineShowCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "show <name>",
		Short:   "Show a pipeline's activities",
		Example: "  orchestrator pipeline show collect-stations -o json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := root.Client()
			if err != nil {
				return err
			}
			p, err := client.GetPipeline(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), p, func(w io.Writer) {
				fmt.Fprintf(w, "Pipeline:\t%s\n", p.Name)
				fmt.Fprintf(w, "Folder:\t%s\n", orDash(p.Folder))
				fmt.Fprintf(w, "Parameters:\t%s\n", orDash(strings.Join(sortedParamNames(p.Parameters), ", ")))
				fmt.Fprintln(w)
				row(w, "ACTIVITY", "KIND", "TARGET", "DEPENDS ON", "ATTEMPTS")
				for _, a := range p.Activities {
					printActivity(w, a, "")
				}
			})
		},
	}
}

func printActivity(w io.Writer, a pipeline.Activity, indent string) {
	target := a.Method + " " + a.URL
	if a.Kind == pipeline.KindForEach {
		target = "over " + a.Items
	}
	deps := make([]string, 0, len(a.DependsOn))
	for _, d := range a.DependsOn {
		deps = append(deps, d.Activity+":"+string(d.Condition))
	}
	row(w, indent+a.Name, a.Kind, strings.TrimSpace(target), orDash(strings.Join(deps, ",")), a.Retry.MaxAttempts)
	for _, child := range a.Activities {
		printActivity(w, child, indent+"  ")
	}
}

func sortedParamNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func newPipelineCreateRunCommand(root *RootCommand) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "create-run <name>",
		Short: "Start an on-demand run",
		Long: `Start a run of the named pipeline immediately. Parameters given with --param
override the pipeline's defaults.`,
		Example: `  orchestrator pipeline create-run collect-stations
  orchestrator pipeline create-run collect-stations --param base_url=http://localhost:9000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			client, err := root.Client()
			if err != nil {
				return err
			}
			created, err := client.CreateRun(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			return PrintOutput(root.OutputOptions(), created, func(w io.Writer) {
				fmt.Fprintf(w, "Run %s of pipeline %s started\n", created.RunID, created.Pipeline)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Run parameter as key=value (repeatable)")
	return cmd
}

// parseParams turns key=value pairs into a map; later keys win.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

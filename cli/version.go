package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/orchestrator/version"
)

func NewVersionCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the version, git commit, build time and Go version of the orchestrator binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			return PrintOutput(root.OutputOptions(), info, func(w io.Writer) {
				v := info.Version
				if info.Dirty {
					v += " (dirty)"
				}
				fmt.Fprintf(w, "orchestrator version %s\n", v)
				fmt.Fprintf(w, "  Commit:\t%s\n", orDash(info.GitCommit))
				fmt.Fprintf(w, "  Built:\t%s\n", orDash(info.BuildTime))
				fmt.Fprintf(w, "  Go:\t%s\n", orDash(info.GoVersion))
			})
		},
	}
	return cmd
}

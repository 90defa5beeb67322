// Package cli implements the orchestrator command line: serve runs the
// process, validate checks definition files, and the remaining commands
// operate a running orchestrator through its API.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kbukum/orchestrator/config"
)

const (
	defaultAPIURL  = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

type RootCommand struct {
	cmd       *cobra.Command
	opts      *OutputOptions
	v         *viper.Viper
	formatStr string
}

func NewRootCommand() *RootCommand {
	root := &RootCommand{
		opts: NewOutputOptions(),
		v:    viper.New(),
	}

	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Schedule and run pipelines of HTTP activities",
		Long: `orchestrator runs pipelines of HTTP activities on interval, tumbling window
and daily triggers, retries failed calls, and records every run.

Start the service with "orchestrator serve"; the other commands talk to a
running instance through its API.`,
		SilenceUsage:      true,
		PersistentPreRunE: root.persistentPreRunE,
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVarP(&root.formatStr, "output", "o", string(OutputTable), "Output format (table, json, yaml)")
	pflags.BoolVarP(&root.opts.Quiet, "quiet", "q", false, "Suppress output")
	pflags.String("config", "", "Config file path (default: ./cmd/orchestrator/config.yml)")
	pflags.String("api", defaultAPIURL, "Base URL of the orchestrator API")
	pflags.Duration("timeout", defaultTimeout, "API request timeout")

	bindFlags(root.v, pflags, map[string]string{
		"config":  "config",
		"api_url": "api",
		"timeout": "timeout",
	})
	root.v.SetEnvPrefix("ORCHESTRATOR")
	_ = root.v.BindEnv("api_url")

	root.cmd = cmd
	root.addSubCommands()
	return root
}

// bindFlags binds viper keys to flags; a set flag wins over the environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if f := fs.Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func (r *RootCommand) addSubCommands() {
	r.cmd.AddCommand(
		NewServeCommand(r),
		NewValidateCommand(r),
		NewVersionCommand(r),
		NewPipelineCommand(r),
		NewPipelineRunCommand(r),
		NewTriggerCommand(r),
	)
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	f, err := ParseOutputFormat(r.formatStr)
	if err != nil {
		return err
	}
	r.opts.Format = f
	if cmd.OutOrStdout() != nil {
		r.opts.Writer = cmd.OutOrStdout()
	}
	return nil
}

func (r *RootCommand) Command() *cobra.Command { return r.cmd }

func (r *RootCommand) OutputOptions() *OutputOptions { return r.opts }

// SetOutput redirects command output, including cobra's own.
func (r *RootCommand) SetOutput(w io.Writer) {
	r.opts.Writer = w
	r.cmd.SetOut(w)
	r.cmd.SetErr(w)
}

func (r *RootCommand) Execute(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

// LoadConfig reads the service configuration for serve.
func (r *RootCommand) LoadConfig() (*Config, error) {
	var opts []config.LoaderOption
	if path := r.v.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &Config{}
	if err := config.LoadConfig("orchestrator", cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Client returns an API client for the configured base URL.
func (r *RootCommand) Client() (*Client, error) {
	return NewClient(r.v.GetString("api_url"), r.v.GetDuration("timeout"))
}

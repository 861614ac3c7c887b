package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vthunder/focuspet/internal/config"
	"github.com/vthunder/focuspet/internal/format"
	"github.com/vthunder/focuspet/internal/store"
)

// app carries state shared by every subcommand
type app struct {
	configPath string
	format     string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "focusctl",
		Short:         "Inspect focus sessions, stats and blocking rules",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default $FOCUS_CONFIG)")
	root.PersistentFlags().StringVarP(&a.format, "format", "o", "table", "Output format: table, plain, json or jsonl")

	root.AddCommand(
		a.sessionsCmd(),
		a.statsCmd(),
		a.rulesCmd(),
		a.replayCmd(),
		a.activityCmd(),
	)
	return root
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.Store.Path, a.cfg.Store.Driver)
}

func (a *app) options(cmd *cobra.Command) format.Options {
	return format.DefaultOptions(cmd.OutOrStdout())
}

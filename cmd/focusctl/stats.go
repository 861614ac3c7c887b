package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/format"
)

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show average score, session count, streak and app totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			summary, err := db.Stats(ctx, time.Now())
			if err != nil {
				return err
			}
			totals, err := db.AppTotals(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.format == "json" || a.format == "jsonl" {
				return json.NewEncoder(out).Encode(struct {
					Summary   focus.Summary    `json:"summary"`
					AppTotals map[string]int64 `json:"appTotals"`
				}{summary, totals})
			}
			opts := a.options(cmd)
			if err := format.WriteSummary(out, summary, opts); err != nil {
				return err
			}
			return format.WriteUsage(out, "App", totals, opts)
		},
	}
}

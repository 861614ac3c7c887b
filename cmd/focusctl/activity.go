package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/format"
)

func (a *app) activityCmd() *cobra.Command {
	var (
		limit     int
		eventType string
		search    string
		sessionID string
		today     bool
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the activity log: sessions, state changes, soft blocks and bypasses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, on := range []bool{eventType != "", search != "", sessionID != "", today} {
				if on {
					set++
				}
			}
			if set > 1 {
				return fmt.Errorf("--type, --search, --session and --today are exclusive")
			}

			log := activity.NewLog(a.cfg.ActivityDir())
			var (
				entries []activity.Entry
				err     error
			)
			switch {
			case eventType != "":
				entries, err = log.ByType(activity.Type(eventType), limit)
			case search != "":
				entries, err = log.Search(search, limit)
			case sessionID != "":
				entries, err = log.BySession(sessionID)
			case today:
				entries, err = log.Today(time.Now())
			default:
				entries, err = log.Recent(limit)
			}
			if err != nil {
				return err
			}
			return format.WriteEntries(cmd.OutOrStdout(), entries, a.format, a.options(cmd))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().StringVar(&eventType, "type", "", "Only entries of this type, newest first (e.g. soft_block, bypass)")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive text search over summaries and data, newest first")
	cmd.Flags().StringVar(&sessionID, "session", "", "All entries of one session")
	cmd.Flags().BoolVar(&today, "today", false, "Entries since local midnight")
	return cmd
}

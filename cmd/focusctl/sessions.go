package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vthunder/focuspet/internal/backend"
	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/format"
	"github.com/vthunder/focuspet/internal/store"
)

func (a *app) sessionsCmd() *cobra.Command {
	var limit int
	var remote bool

	cmd := &cobra.Command{
		Use:   "sessions [--remote [id]]",
		Short: "List recent sessions",
		Long:  "List recent sessions. With --remote, list the backend's sessions for FOCUS_USER_ID, or fetch one by backend id.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !remote {
				return errors.New("an id needs --remote; use 'sessions show' for local sessions")
			}
			var records []focus.Record
			if remote {
				if !a.cfg.HasBackend() {
					return errors.New("--remote needs FOCUS_BACKEND_URL")
				}
				client := backend.NewClient(a.cfg.Backend.URL, a.cfg.Backend.Token)
				if len(args) == 1 {
					rs, err := client.GetSession(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					r := rs.Record()
					out := cmd.OutOrStdout()
					if err := format.WriteSessions(out, []focus.Record{r}, a.format, a.options(cmd)); err != nil {
						return err
					}
					if a.format == "json" || a.format == "jsonl" {
						return nil
					}
					return format.WriteUsage(out, "App", r.Activity, a.options(cmd))
				}
				if a.cfg.UserID == "" {
					return errors.New("--remote listing needs FOCUS_USER_ID")
				}
				remoteSessions, err := client.SessionsByUser(cmd.Context(), a.cfg.UserID)
				if err != nil {
					return err
				}
				for _, rs := range remoteSessions {
					records = append(records, rs.Record())
				}
				records = focus.SortRecent(records, limit)
			} else {
				db, err := a.openStore()
				if err != nil {
					return err
				}
				defer db.Close()
				records, err = db.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}
			return format.WriteSessions(cmd.OutOrStdout(), records, a.format, a.options(cmd))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of sessions to show (0 for all)")
	cmd.Flags().BoolVar(&remote, "remote", false, "List sessions from the backend instead of the local store")

	cmd.AddCommand(a.sessionShowCmd(), a.sessionDeleteCmd())
	return cmd
}

func (a *app) sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session with its app and site breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			r, err := db.Get(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no session %s", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := a.options(cmd)
			if err := format.WriteSessions(out, []focus.Record{r}, a.format, opts); err != nil {
				return err
			}
			if a.format == "json" || a.format == "jsonl" {
				return nil
			}
			if err := format.WriteUsage(out, "App", r.Activity, opts); err != nil {
				return err
			}
			if len(r.Sites) > 0 {
				return format.WriteUsage(out, "Site", r.Sites, opts)
			}
			return nil
		},
	}
}

func (a *app) sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session from the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

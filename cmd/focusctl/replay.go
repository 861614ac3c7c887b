package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/format"
	"github.com/vthunder/focuspet/internal/input"
)

func (a *app) replayCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Run a recorded JSONL event stream through an offline session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			records, st, err := a.replay(cmd.Context(), in, save)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d frames, %d windows, %d controls, %d malformed\n",
				st.Frames, st.Windows, st.Controls, st.Malformed)
			return format.WriteSessions(cmd.OutOrStdout(), records, a.format, a.options(cmd))
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save replayed sessions to the local store")
	return cmd
}

// replay feeds r through a fresh session. A session left open at the end of
// the stream is stopped at the last event's timestamp.
func (a *app) replay(ctx context.Context, r io.Reader, save bool) ([]focus.Record, input.Stats, error) {
	session := focus.NewSession(focus.Config{
		UserID:     a.cfg.UserID,
		Thresholds: a.cfg.Thresholds,
		Browsers:   a.cfg.Browsers,
	}, nil)

	if save {
		db, err := a.openStore()
		if err != nil {
			return nil, input.Stats{}, err
		}
		defer db.Close()
		session.AddSink(db)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()

	f := &input.Feeder{Session: session}
	st, err := f.Feed(ctx, r)
	if err != nil {
		return nil, st, err
	}

	records := st.Sessions
	snap, err := session.Snapshot(ctx, st.Last)
	if err == nil && snap.Running {
		if rec, err := session.Stop(ctx, st.Last); err == nil {
			records = append(records, rec)
		}
	}

	cancel()
	<-done
	return records, st, nil
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/focuspet/internal/filter"
	"github.com/vthunder/focuspet/internal/lists"
)

// listFlags selects lists from flags, falling back to the lists file
type listFlags struct {
	allow []string
	block []string
	file  string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.allow, "allow", nil, "Allow-list pattern (repeatable)")
	cmd.Flags().StringSliceVar(&f.block, "block", nil, "Block-list pattern (repeatable)")
	cmd.Flags().StringVar(&f.file, "lists", "", "YAML lists file (default from config)")
}

func (f *listFlags) load(a *app) (lists.File, error) {
	if len(f.allow) > 0 || len(f.block) > 0 {
		return lists.File{SessionOn: true, Allowlist: f.allow, Blacklist: f.block}, nil
	}
	path := f.file
	if path == "" {
		path = a.cfg.Lists.File
	}
	return lists.LoadFile(path)
}

func (a *app) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Compile and test URL blocking rules",
	}
	cmd.AddCommand(a.rulesCompileCmd(), a.rulesCheckCmd())
	return cmd
}

func (a *app) rulesCompileCmd() *cobra.Command {
	var lf listFlags
	var existing []int

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the rule update for the current lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := lf.load(a)
			if err != nil {
				return err
			}
			batch := filter.Compile(f.Allowlist, f.Blacklist)
			for _, s := range batch.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %q: %s\n", s.Pattern, s.Reason)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(batch.Update(existing))
		},
	}
	lf.register(cmd)
	cmd.Flags().IntSliceVar(&existing, "existing", nil, "Rule ids currently installed, to remove")
	return cmd
}

func (a *app) rulesCheckCmd() *cobra.Command {
	var lf listFlags
	var sessionOff bool
	var bypassAge time.Duration

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Decide whether a navigation would be soft-blocked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := lf.load(a)
			if err != nil {
				return err
			}
			now := time.Now()
			sessionOn := f.SessionOn && !sessionOff
			if len(lf.allow) > 0 || len(lf.block) > 0 {
				sessionOn = !sessionOff
			}

			var bypass *filter.Bypass
			if cmd.Flags().Changed("bypass-age") {
				if bypassAge < 0 {
					return errors.New("--bypass-age must not be negative")
				}
				bypass = &filter.Bypass{SetAt: now.Add(-bypassAge)}
			}

			d := filter.Decide(now, args[0], f.Lists(), sessionOn, bypass)
			if a.format == "json" || a.format == "jsonl" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(d)
			}
			verdict := "allow"
			switch {
			case d.SoftBlock:
				verdict = "soft-block"
			case d.Reason == filter.ReasonHardBlock:
				verdict = "block"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", verdict, d.Reason)
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().BoolVar(&sessionOff, "session-off", false, "Evaluate as if no session were running")
	cmd.Flags().DurationVar(&bypassAge, "bypass-age", 0, "Evaluate with a bypass granted this long ago")
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"remindbot/internal/app"
	"remindbot/internal/config"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// withStore runs fn against the configured store with migrations applied.
func withStore(ctx context.Context, fn func(st storage.Store, cfg *config.Config) error) error {
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return err
	}
	log := logx.NewConsole(cfg.Logging.Level)
	st, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(st, cfg)
}

func displayZone(cfg *config.Config) *time.Location {
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the reminder tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(st storage.Store, cfg *config.Config) error {
				sc, _ := app.MapStorage(cfg)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", sc.Driver)
				return nil
			})
		},
	}
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Print how many active reminders are still in the future",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(st storage.Store, _ *config.Config) error {
				n, err := st.CountPending(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list EXTERNAL_ID",
		Short: "List a user's active reminders, soonest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("external id %q: %w", args[0], err)
			}
			return withStore(cmd.Context(), func(st storage.Store, cfg *config.Config) error {
				uid, err := st.UserIDByExternal(cmd.Context(), ext)
				if errors.Is(err, storage.ErrNotFound) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no such user")
					return nil
				}
				if err != nil {
					return err
				}
				rows, err := st.ListActiveReminders(cmd.Context(), uid)
				if err != nil {
					return err
				}
				return printReminders(cmd.OutOrStdout(), rows, displayZone(cfg))
			})
		},
	}
}

func printReminders(w io.Writer, rows []storage.Reminder, loc *time.Location) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no active reminders")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "JOB ID\tFIRES AT\tTEXT")
	for _, r := range rows {
		when := r.FireDate + " " + r.FireTime + " UTC"
		if at, err := r.FireAt(); err == nil {
			when = at.In(loc).Format("2006-01-02 15:04 MST")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.JobID, when, r.Text)
	}
	return tw.Flush()
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Deactivate a reminder; a running bot skips it at fire time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(st storage.Store, _ *config.Config) error {
				ok, err := st.DeactivateReminder(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not found or already inactive")
					return nil
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return nil
			})
		},
	}
}

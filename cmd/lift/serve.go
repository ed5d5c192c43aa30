// ABOUTME: CLI command for running lift as a long-lived background process.
// ABOUTME: Runs scheduled sync and log jobs, triggered syncs, and the realtime change feed.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/realtime"
	"github.com/harperreed/lift/internal/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run background sync and daily logs",
	Long: `Run lift in the foreground as a background service.

While serving, lift:

  • syncs on sync.schedule (cron spec or @every, e.g. "@every 5m")
  • syncs shortly after local writes when sync.auto_sync is on
  • creates each day's workout log on logs.schedule
  • applies remote changes as they happen when realtime.enabled is on
    and a realtime URL was given to 'lift sync login'

Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serving = true
		defer func() { serving = false }()

		var syncJob scheduler.Syncer
		if syncer != nil {
			syncJob = syncer
		}
		sched, err := scheduler.New(scheduler.Config{
			SyncSchedule: cfg.Sync.Schedule,
			LogSchedule:  cfg.Logs.Schedule,
		}, syncJob, maintainer, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ lift serving"))
		for _, name := range sched.Jobs() {
			fmt.Fprintf(out, "  job %s\n", name)
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return sched.Run(ctx) })

		if syncer != nil {
			g.Go(func() error { return syncer.Start(ctx) })
			syncer.Trigger()
		} else {
			fmt.Fprintln(out, color.YellowString("⚠ Sync is not configured; running local only"))
		}

		if l := newListener(); l != nil {
			fmt.Fprintln(out, "  realtime feed", syncCfg.RealtimeURL)
			g.Go(func() error { return l.Run(ctx) })
		}

		if _, err := maintainer.UpdateLogs(ctx, time.Now()); err != nil {
			logger.Warn("initial log update failed", "error", err)
		}

		err = g.Wait()
		fmt.Fprintln(out, "Stopped.")
		return err
	},
}

// newListener returns the change feed listener, or nil when it is disabled.
func newListener() *realtime.Listener {
	if !cfg.Realtime.Enabled || syncCfg.RealtimeURL == "" || syncCfg.Token == "" {
		return nil
	}
	return realtime.New(realtime.Config{
		URL:          syncCfg.RealtimeURL,
		Token:        syncCfg.Token,
		ReconnectMin: cfg.Realtime.ReconnectMin,
		ReconnectMax: cfg.Realtime.ReconnectMax,
		MaxAttempts:  cfg.Realtime.MaxAttempts,
	}, liftStore, logger)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

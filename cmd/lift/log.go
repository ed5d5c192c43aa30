// ABOUTME: CLI commands for daily workout logs.
// ABOUTME: Supports update, show, complete, and list subcommands.
package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/spf13/cobra"
)

var (
	logDate string
	logFrom string
	logTo   string
)

var logCmd = &cobra.Command{
	Use:     "log",
	Aliases: []string{"l"},
	Short:   "Daily workout logs",
	Long: `Daily workout logs.

Each day the active routine schedules a workout, lift freezes a copy of it
into that day's log. Later edits to the exercises leave past logs untouched.

COMMANDS:

  update     Create logs for days since the last one
  show       Show a day's log (default today)
  complete   Record completed sets for an exercise
  list       List logs in a date range`,
}

var logUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Create missing logs up to today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := maintainer.UpdateLogs(cmd.Context(), time.Now())
		if err != nil {
			return fmt.Errorf("failed to update logs: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ %d workout logs created", created))
		return nil
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show a day's log",
	Long: `Show a day's log. The date is YYYY-MM-DD, "today" or "yesterday".

Logs are brought up to date first, so today's log exists as soon as the
active routine schedules a workout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		now := time.Now()
		arg := ""
		if len(args) == 1 {
			arg = args[0]
		}
		date, err := parseDate(arg, now)
		if err != nil {
			return err
		}
		if _, err := maintainer.UpdateLogs(ctx, now); err != nil {
			logger.Warn("failed to update logs", "error", err)
		}

		l, err := liftStore.Repository().GetLog(ctx, date)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: rest day\n", date)
			return nil
		}
		if err != nil {
			return err
		}
		printLog(cmd, l)
		return nil
	},
}

func printLog(cmd *cobra.Command, l *models.WorkoutLog) {
	out := cmd.OutOrStdout()
	status := color.YellowString("in progress")
	if l.IsComplete() {
		status = color.GreenString("complete")
	}
	fmt.Fprintf(out, "%s %s (%s) %s\n",
		color.New(color.Bold).Sprint(l.Date), l.WorkoutName, l.RoutineName, status)

	ids := make([]string, 0, len(l.Exercises))
	for id := range l.Exercises {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return l.Exercises[ids[i]].Name < l.Exercises[ids[j]].Name
	})

	for _, id := range ids {
		snap := l.Exercises[id]
		done := l.Completion[id].SetsCompleted
		fmt.Fprintf(out, "  %s %s %d/%d sets\n",
			faint.Sprint(shortID(id)),
			padRight(truncate(snap.Name, 24), 24),
			done, len(snap.Sets))
		for i, s := range snap.Sets {
			mark := "○"
			if i < done {
				mark = color.GreenString("●")
			}
			fmt.Fprintf(out, "      %s %s\n", mark, formatSet(snap.VolumeType, snap.IntensityTypes, s))
		}
	}
}

var logCompleteCmd = &cobra.Command{
	Use:   "complete <exercise-id> <sets>",
	Short: "Record completed sets",
	Long: `Record how many sets of an exercise are done in a day's log.

The count is clamped to the logged number of sets.

Examples:
  lift log complete 3f2a 3
  lift log complete 3f2a 0 --date yesterday`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid set count: %s", args[1])
		}
		date, err := parseDate(logDate, time.Now())
		if err != nil {
			return err
		}

		// Logs keep snapshots of exercises deleted since, so fall back to the raw id.
		id, err := liftStore.ResolveID(ctx, models.KindExercise, args[0])
		if err != nil {
			id = args[0]
		}

		l, err := maintainer.CompleteSets(ctx, date, id, n)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("exercise %s is not in the log for %s", args[0], date)
		}
		if err != nil {
			return fmt.Errorf("failed to record sets: %w", err)
		}

		snap := l.Exercises[id]
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ %s: %d/%d sets",
			snap.Name, l.Completion[id].SetsCompleted, len(snap.Sets)))
		if l.IsComplete() {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Workout complete"))
		}
		return nil
	},
}

var logListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List logs",
	Long: `List logs between --from and --to (inclusive, YYYY-MM-DD).

Both bounds are optional.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := "", ""
		var err error
		if logFrom != "" {
			if from, err = parseDate(logFrom, time.Now()); err != nil {
				return err
			}
		}
		if logTo != "" {
			if to, err = parseDate(logTo, time.Now()); err != nil {
				return err
			}
		}

		logs, err := liftStore.Repository().ListLogs(cmd.Context(), from, to)
		if err != nil {
			return fmt.Errorf("failed to list logs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(logs) == 0 {
			fmt.Fprintln(out, "No logs found.")
			return nil
		}
		for _, l := range logs {
			done, total := 0, 0
			for id, snap := range l.Exercises {
				total += len(snap.Sets)
				done += l.Completion[id].SetsCompleted
			}
			mark := " "
			if l.IsComplete() {
				mark = color.GreenString("✓")
			}
			fmt.Fprintf(out, "%s %s %s %d/%d sets\n",
				mark, l.Date, padRight(truncate(l.WorkoutName, 24), 24), done, total)
		}
		return nil
	},
}

func init() {
	logCompleteCmd.Flags().StringVar(&logDate, "date", "", "log date (default today)")
	logListCmd.Flags().StringVar(&logFrom, "from", "", "first date")
	logListCmd.Flags().StringVar(&logTo, "to", "", "last date")

	logCmd.AddCommand(logUpdateCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logCompleteCmd)
	logCmd.AddCommand(logListCmd)
	rootCmd.AddCommand(logCmd)
}

// ABOUTME: CLI commands for managing weekly routines.
// ABOUTME: Supports add, list, show, activate, and delete subcommands.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/spf13/cobra"
)

// routineDays holds the --sun..--sat flag values, indexed by weekday.
var routineDays [models.DaysPerWeek]string

var dayFlags = [models.DaysPerWeek]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

var routineCmd = &cobra.Command{
	Use:     "routine",
	Aliases: []string{"r"},
	Short:   "Manage weekly routines",
	Long: `Manage routines: a weekly schedule with one workout or a rest day per weekday.

The active routine decides which workout lands in each day's log.

COMMANDS:

  add        Create a routine
  list       List routines
  show       Show a routine's week
  activate   Make a routine the active one
  delete     Delete a routine`,
}

var routineAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a routine",
	Long: `Add a routine. Days without a workout are rest days.

Example:
  lift routine add "Push pull" --mon 3f2a --wed 9bc1 --fri 3f2a`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r := models.NewRoutine(args[0])
		for day, prefix := range routineDays {
			if prefix == "" {
				continue
			}
			id, err := liftStore.ResolveID(ctx, models.KindWorkout, prefix)
			if err != nil {
				return fmt.Errorf("workout not found for --%s: %s", dayFlags[day], prefix)
			}
			r.WorkoutIDs[day] = id
		}

		if err := liftStore.SaveRoutine(ctx, r); err != nil {
			return fmt.Errorf("failed to save routine: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Added routine %s (%d training days)", r.Name, trainingDays(r)))
		fmt.Fprintf(out, "  ID: %s\n", shortID(r.ID))
		return nil
	},
}

func trainingDays(r *models.Routine) int {
	n := 0
	for _, id := range r.WorkoutIDs {
		if id != "" {
			n++
		}
	}
	return n
}

var routineListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List routines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		routines, err := liftStore.PullRoutines(ctx, storage.All, false)
		if err != nil {
			return fmt.Errorf("failed to list routines: %w", err)
		}
		user, err := liftStore.Repository().GetUser(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(routines) == 0 {
			fmt.Fprintln(out, "No routines found.")
			return nil
		}
		for _, r := range routines {
			marker := " "
			if r.ID == user.ActiveRoutineID {
				marker = color.GreenString("●")
			}
			fmt.Fprintf(out, "%s %s %s %d training days\n",
				marker,
				faint.Sprint(shortID(r.ID)),
				padRight(truncate(r.Name, 24), 24),
				trainingDays(r))
		}
		return nil
	},
}

var routineShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a routine's week",
	Long:  `Show a routine's week. Without an ID, shows the active routine.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var id string
		if len(args) == 1 {
			var err error
			id, err = liftStore.ResolveID(ctx, models.KindRoutine, args[0])
			if err != nil {
				return fmt.Errorf("routine not found: %s", args[0])
			}
		} else {
			user, err := liftStore.Repository().GetUser(ctx)
			if err != nil {
				return err
			}
			if user.ActiveRoutineID == "" {
				return fmt.Errorf("no active routine; run 'lift routine activate <id>'")
			}
			id = user.ActiveRoutineID
		}

		r, err := liftStore.PullRoutine(ctx, id, true)
		if err != nil {
			return fmt.Errorf("routine not found: %s", id)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.New(color.Bold).Sprint(r.Name))
		fmt.Fprintf(out, "  ID: %s\n", r.ID)
		for day := range models.DaysPerWeek {
			name := faint.Sprint("rest")
			if w := r.Workouts[day]; w != nil {
				name = fmt.Sprintf("%s %s", w.Name, faint.Sprint(shortID(w.ID)))
			}
			fmt.Fprintf(out, "  %s %s\n", padRight(time.Weekday(day).String(), 10), name)
		}
		return nil
	},
}

var routineActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a routine the active one",
	Long: `Make a routine the active one and bring the workout logs up to date.

Pass "none" to clear the active routine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo := liftStore.Repository()
		out := cmd.OutOrStdout()

		if args[0] == "none" {
			if err := repo.SetActiveRoutine(ctx, ""); err != nil {
				return err
			}
			fmt.Fprintln(out, color.YellowString("✓ No active routine"))
			return nil
		}

		id, err := liftStore.ResolveID(ctx, models.KindRoutine, args[0])
		if err != nil {
			return fmt.Errorf("routine not found: %s", args[0])
		}
		if err := repo.SetActiveRoutine(ctx, id); err != nil {
			return fmt.Errorf("failed to activate routine: %w", err)
		}
		created, err := maintainer.UpdateLogs(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("failed to update logs: %w", err)
		}

		fmt.Fprintln(out, color.GreenString("✓ Activated routine %s", shortID(id)))
		if created > 0 {
			fmt.Fprintf(out, "  %d workout logs created\n", created)
		}
		return nil
	},
}

var routineDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a routine",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteEntity(cmd, models.KindRoutine, args[0])
	},
}

func init() {
	for day, name := range dayFlags {
		routineAddCmd.Flags().StringVar(&routineDays[day], name, "",
			fmt.Sprintf("workout ID for %s", time.Weekday(day)))
	}
	routineDeleteCmd.Flags().BoolVar(&deleteLocalOnly, "local", false, "delete on this device only")

	routineCmd.AddCommand(routineAddCmd)
	routineCmd.AddCommand(routineListCmd)
	routineCmd.AddCommand(routineShowCmd)
	routineCmd.AddCommand(routineActivateCmd)
	routineCmd.AddCommand(routineDeleteCmd)
	rootCmd.AddCommand(routineCmd)
}

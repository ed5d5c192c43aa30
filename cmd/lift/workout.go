// ABOUTME: CLI commands for managing workouts.
// ABOUTME: Supports add, list, show, and delete subcommands.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/spf13/cobra"
)

var workoutCmd = &cobra.Command{
	Use:     "workout",
	Aliases: []string{"wo", "w"},
	Short:   "Manage workouts",
	Long: `Manage workouts: an ordered list of exercises.

COMMANDS:

  add      Create a workout from exercise IDs
  list     List workouts
  show     Show a workout with its exercises
  delete   Delete a workout`,
}

var workoutAddCmd = &cobra.Command{
	Use:   "add <name> [exercise-id...]",
	Short: "Add a workout",
	Long: `Add a workout made of existing exercises, in order.

Exercise IDs may be given as prefixes.

Example:
  lift workout add "Leg day" 3f2a 9bc1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ids := make([]string, 0, len(args)-1)
		for _, prefix := range args[1:] {
			id, err := liftStore.ResolveID(ctx, models.KindExercise, prefix)
			if err != nil {
				return fmt.Errorf("exercise not found: %s", prefix)
			}
			ids = append(ids, id)
		}

		w := models.NewWorkout(args[0], ids...)
		if err := liftStore.SaveWorkout(ctx, w); err != nil {
			return fmt.Errorf("failed to save workout: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Added workout %s (%d exercises)", w.Name, len(ids)))
		fmt.Fprintf(out, "  ID: %s\n", shortID(w.ID))
		return nil
	},
}

var workoutListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		workouts, err := liftStore.PullWorkouts(cmd.Context(), storage.All, false)
		if err != nil {
			return fmt.Errorf("failed to list workouts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(workouts) == 0 {
			fmt.Fprintln(out, "No workouts found.")
			return nil
		}
		for _, w := range workouts {
			dirty := ""
			if w.Dirty {
				dirty = color.YellowString(" *")
			}
			fmt.Fprintf(out, "%s %s %d exercises%s\n",
				faint.Sprint(shortID(w.ID)),
				padRight(truncate(w.Name, 24), 24),
				len(w.ExerciseIDs),
				dirty)
		}
		return nil
	},
}

var workoutShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a workout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := liftStore.ResolveID(ctx, models.KindWorkout, args[0])
		if err != nil {
			return fmt.Errorf("workout not found: %s", args[0])
		}
		w, err := liftStore.PullWorkout(ctx, id, true)
		if err != nil {
			return fmt.Errorf("workout not found: %s", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.New(color.Bold).Sprint(w.Name))
		fmt.Fprintf(out, "  ID: %s\n", w.ID)
		for i, e := range w.Exercises {
			if e == nil {
				continue
			}
			fmt.Fprintf(out, "  %d. %s %s %s\n", i+1,
				faint.Sprint(shortID(e.ID)),
				padRight(truncate(e.Name, 24), 24),
				fmt.Sprintf("%d sets", len(e.Sets)))
		}
		return nil
	},
}

var workoutDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a workout",
	Long: `Delete a workout by its ID or ID prefix.

Routines that schedule it get a rest day in its place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteEntity(cmd, models.KindWorkout, args[0])
	},
}

func init() {
	workoutDeleteCmd.Flags().BoolVar(&deleteLocalOnly, "local", false, "delete on this device only")

	workoutCmd.AddCommand(workoutAddCmd)
	workoutCmd.AddCommand(workoutListCmd)
	workoutCmd.AddCommand(workoutShowCmd)
	workoutCmd.AddCommand(workoutDeleteCmd)
	rootCmd.AddCommand(workoutCmd)
}

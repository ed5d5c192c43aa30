// ABOUTME: CLI commands for managing exercises.
// ABOUTME: Supports add, list, show, sets, and delete subcommands.
package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exerciseVolume     string
	exerciseIntensity  []string
	exerciseSets       []string
	exerciseNotes      string
	exerciseCategories []string
	exerciseCategory   string
	deleteLocalOnly    bool
)

var exerciseCmd = &cobra.Command{
	Use:     "exercise",
	Aliases: []string{"ex", "e"},
	Short:   "Manage exercises",
	Long: `Manage exercises: a movement with its planned sets.

Every set has a volume (reps, distance, time or calories) and one value for
each intensity type the exercise tracks (weight, speed, incline, resistance,
level). Sets are given as comma-separated values, volume first:

  --intensity weight --set 5,100          5 reps at 100
  --intensity speed,incline --set 600,10,2  600 seconds at speed 10, incline 2

COMMANDS:

  add      Create an exercise
  list     List exercises
  show     Show an exercise with its sets
  sets     Replace an exercise's planned sets
  delete   Delete an exercise`,
}

var exerciseAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an exercise",
	Long: `Add an exercise.

Examples:
  lift exercise add Squat --intensity weight --set 5,100 --set 5,105 --set 5,110
  lift exercise add Row --volume distance --set 2000 --category cardio`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		volume := models.VolumeType(strings.ToLower(exerciseVolume))
		if !volume.IsValid() {
			return fmt.Errorf("unknown volume type: %s\nValid types: reps, distance, time, calories", exerciseVolume)
		}
		intensity, err := parseIntensity(exerciseIntensity)
		if err != nil {
			return err
		}
		sets, err := parseSets(exerciseSets, intensity)
		if err != nil {
			return err
		}

		e := models.NewExercise(args[0], volume, intensity...).
			WithNotes(exerciseNotes).
			WithCategories(exerciseCategories...)
		e.Sets = sets

		if err := liftStore.SaveExercise(cmd.Context(), e); err != nil {
			return fmt.Errorf("failed to save exercise: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Added exercise %s", e.Name))
		fmt.Fprintf(out, "  ID: %s\n", shortID(e.ID))
		return nil
	},
}

var exerciseListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List exercises",
	RunE: func(cmd *cobra.Command, args []string) error {
		exercises, err := liftStore.PullExercises(cmd.Context(), storage.All)
		if err != nil {
			return fmt.Errorf("failed to list exercises: %w", err)
		}

		out := cmd.OutOrStdout()
		shown := 0
		for _, e := range exercises {
			if exerciseCategory != "" && !hasCategory(e, exerciseCategory) {
				continue
			}
			shown++
			dirty := ""
			if e.Dirty {
				dirty = color.YellowString(" *")
			}
			fmt.Fprintf(out, "%s %s %s %d sets%s\n",
				faint.Sprint(shortID(e.ID)),
				padRight(truncate(e.Name, 24), 24),
				padRight(string(e.VolumeType), 9),
				len(e.Sets),
				dirty)
		}
		if shown == 0 {
			fmt.Fprintln(out, "No exercises found.")
		}
		return nil
	},
}

func hasCategory(e *models.Exercise, category string) bool {
	for _, c := range e.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

var exerciseShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := liftStore.ResolveID(ctx, models.KindExercise, args[0])
		if err != nil {
			return fmt.Errorf("exercise not found: %s", args[0])
		}
		e, err := liftStore.PullExercise(ctx, id)
		if err != nil {
			return fmt.Errorf("exercise not found: %s", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.New(color.Bold).Sprint(e.Name))
		fmt.Fprintf(out, "  ID:        %s\n", e.ID)
		fmt.Fprintf(out, "  Volume:    %s\n", e.VolumeType)
		fmt.Fprintf(out, "  Intensity: %s\n", joinIntensity(e.IntensityTypes))
		if len(e.Categories) > 0 {
			fmt.Fprintf(out, "  Category:  %s\n", strings.Join(e.Categories, ", "))
		}
		if e.Notes != "" {
			fmt.Fprintf(out, "  Notes:     %s\n", e.Notes)
		}
		fmt.Fprintf(out, "  Modified:  %s\n", e.LastModified.Local().Format("2006-01-02 15:04"))
		for i, s := range e.Sets {
			fmt.Fprintf(out, "  %d. %s\n", i+1, formatSet(e.VolumeType, e.IntensityTypes, s))
		}
		return nil
	},
}

var exerciseSetsCmd = &cobra.Command{
	Use:   "sets <id>",
	Short: "Replace an exercise's planned sets",
	Long: `Replace the planned sets of an exercise.

Today's log keeps its frozen copy of the exercise until the change is applied
to it, which this command does automatically.

Examples:
  lift exercise sets abc123 --set 3,120 --set 3,125`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := liftStore.ResolveID(ctx, models.KindExercise, args[0])
		if err != nil {
			return fmt.Errorf("exercise not found: %s", args[0])
		}
		e, err := liftStore.PullExercise(ctx, id)
		if err != nil {
			return fmt.Errorf("exercise not found: %s", args[0])
		}
		e.Sets, err = parseSets(exerciseSets, e.IntensityTypes)
		if err != nil {
			return err
		}
		if err := liftStore.SaveExercise(ctx, e); err != nil {
			return fmt.Errorf("failed to save exercise: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Updated %s: %d sets", e.Name, len(e.Sets)))

		today := time.Now().Format(models.DateLayout)
		_, err = maintainer.ApplySetChanges(ctx, today, e.ID)
		switch {
		case err == nil:
			fmt.Fprintln(out, "  Today's log updated.")
		case !errors.Is(err, storage.ErrNotFound):
			fmt.Fprintln(out, color.YellowString("⚠ Today's log not updated: %v", err))
		}
		return nil
	},
}

var exerciseDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete an exercise",
	Long: `Delete an exercise by its ID or ID prefix.

Workouts that use it lose the reference. The delete reaches other devices on
the next sync, or immediately when the remote is reachable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteEntity(cmd, models.KindExercise, args[0])
	},
}

// deleteEntity resolves a prefix and deletes through the store.
func deleteEntity(cmd *cobra.Command, kind models.Kind, idOrPrefix string) error {
	ctx := cmd.Context()
	id, err := liftStore.ResolveID(ctx, kind, idOrPrefix)
	if err != nil {
		return fmt.Errorf("%s not found: %s", kind, idOrPrefix)
	}
	if err := liftStore.Delete(ctx, kind, id, deleteLocalOnly); err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("✗ Deleted %s %s", kind, shortID(id)))
	return nil
}

func init() {
	exerciseAddCmd.Flags().StringVar(&exerciseVolume, "volume", "reps", "volume type (reps, distance, time, calories)")
	exerciseAddCmd.Flags().StringSliceVar(&exerciseIntensity, "intensity", nil, "intensity types tracked per set")
	exerciseAddCmd.Flags().StringArrayVar(&exerciseSets, "set", nil, "a set as volume[,intensity...] (repeatable)")
	exerciseAddCmd.Flags().StringVar(&exerciseNotes, "notes", "", "notes")
	exerciseAddCmd.Flags().StringSliceVar(&exerciseCategories, "category", nil, "category tags")

	exerciseListCmd.Flags().StringVarP(&exerciseCategory, "category", "c", "", "filter by category")

	exerciseSetsCmd.Flags().StringArrayVar(&exerciseSets, "set", nil, "a set as volume[,intensity...] (repeatable)")
	exerciseDeleteCmd.Flags().BoolVar(&deleteLocalOnly, "local", false, "delete on this device only")

	exerciseCmd.AddCommand(exerciseAddCmd)
	exerciseCmd.AddCommand(exerciseListCmd)
	exerciseCmd.AddCommand(exerciseShowCmd)
	exerciseCmd.AddCommand(exerciseSetsCmd)
	exerciseCmd.AddCommand(exerciseDeleteCmd)
	rootCmd.AddCommand(exerciseCmd)
}

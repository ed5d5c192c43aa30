// ABOUTME: CLI commands for sharing entity graphs as YAML or JSON bundles.
// ABOUTME: Export packs an exercise, workout or routine; import saves a fresh copy.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/share"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export <exercise|workout|routine> <id>",
	Short: "Export an exercise, workout or routine",
	Long: `Export an entity with everything it references as a shareable bundle.

A routine bundle carries its workouts and their exercises, a workout bundle
carries its exercises.

FORMATS:

  yaml   Human-readable (default)
  json   Compact and machine-friendly

With --output the format follows the file extension unless --format is set.

EXAMPLES:

  lift export routine 3f2a                 # YAML to stdout
  lift export workout 9bc1 -o legs.json    # JSON file`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"exercise", "workout", "routine"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind := models.Kind(args[0])
		id, err := liftStore.ResolveID(ctx, kind, args[1])
		if err != nil {
			return fmt.Errorf("%s not found: %s", args[0], args[1])
		}

		var b *share.Bundle
		switch kind {
		case models.KindExercise:
			e, err := liftStore.PullExercise(ctx, id)
			if err != nil {
				return err
			}
			b = share.PackExercise(e)
		case models.KindWorkout:
			w, err := liftStore.PullWorkout(ctx, id, true)
			if err != nil {
				return err
			}
			if b, err = share.PackWorkout(w); err != nil {
				return err
			}
		case models.KindRoutine:
			r, err := liftStore.PullRoutine(ctx, id, true)
			if err != nil {
				return err
			}
			if b, err = share.PackRoutine(r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown type: %s (use exercise, workout, or routine)", args[0])
		}

		format := share.Format(exportFormat)
		if format == "" {
			format = share.FormatYAML
			if exportOutput != "" {
				format = share.FormatFor(exportOutput)
			}
		}
		data, err := share.Encode(b, format)
		if err != nil {
			return err
		}

		if exportOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString("✓ Exported %d exercises, %d workouts, %d routines to %s",
			len(b.Exercises), len(b.Workouts), len(b.Routines), exportOutput))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a shared bundle",
	Long: `Import a bundle written by 'lift export'.

Everything is saved under new IDs, so importing a bundle never overwrites
existing data. The format follows the file extension (.json or YAML).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		b, err := share.Decode(data, share.FormatFor(args[0]))
		if err != nil {
			return err
		}
		res, err := share.Import(cmd.Context(), liftStore, b)
		if err != nil {
			return fmt.Errorf("failed to import: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Imported %d exercises, %d workouts, %d routines",
			res.Exercises, res.Workouts, res.Routines))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "yaml or json")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

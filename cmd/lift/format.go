// ABOUTME: Shared CLI helpers for parsing arguments and formatting output.
// ABOUTME: Covers dates, set specs, id prefixes and column padding.
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
)

var faint = color.New(color.Faint)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// parseDate accepts YYYY-MM-DD, "today" or "yesterday"; empty means today.
func parseDate(s string, now time.Time) (string, error) {
	switch strings.ToLower(s) {
	case "", "today":
		return now.Format(models.DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(models.DateLayout), nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", s)
	}
	return t.Format(models.DateLayout), nil
}

// parseSet reads "volume[,intensity...]" with one value per intensity type,
// in order, e.g. "5,100" for reps with weight.
func parseSet(spec string, intensity []models.IntensityType) (models.Set, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != len(intensity)+1 {
		return models.Set{}, fmt.Errorf("set %q: expected %d values (volume then %s)",
			spec, len(intensity)+1, joinIntensity(intensity))
	}

	vol, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Set{}, fmt.Errorf("set %q: invalid volume %q", spec, parts[0])
	}
	set := models.NewSet(vol)
	for i, t := range intensity {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return models.Set{}, fmt.Errorf("set %q: invalid %s %q", spec, t, parts[i+1])
		}
		set = set.With(t, v)
	}
	return set, nil
}

func parseSets(specs []string, intensity []models.IntensityType) ([]models.Set, error) {
	sets := make([]models.Set, 0, len(specs))
	for _, spec := range specs {
		s, err := parseSet(spec, intensity)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, nil
}

func parseIntensity(names []string) ([]models.IntensityType, error) {
	var types []models.IntensityType
	for _, n := range names {
		t := models.IntensityType(strings.ToLower(strings.TrimSpace(n)))
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown intensity type: %s\nValid types: weight, speed, incline, resistance, level", n)
		}
		types = append(types, t)
	}
	return types, nil
}

func joinIntensity(types []models.IntensityType) string {
	if len(types) == 0 {
		return "nothing"
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatSet renders a set as "5 reps @ 100 weight".
func formatSet(volume models.VolumeType, intensity []models.IntensityType, s models.Set) string {
	out := formatFloat(s.Volume) + " " + string(volume)
	var parts []string
	for _, t := range intensity {
		parts = append(parts, formatFloat(s.Intensity[t])+" "+string(t))
	}
	if len(parts) > 0 {
		out += " @ " + strings.Join(parts, ", ")
	}
	return out
}

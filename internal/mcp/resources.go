// ABOUTME: MCP resource implementations for lift.
// ABOUTME: Provides lift://today and lift://routine resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerResources() {
	// lift://today - Today's workout log with progress
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "lift://today",
		Name:        "Today's Workout",
		Description: "Today's workout log with set progress, or a rest day",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	// lift://routine - The active routine's weekly schedule
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "lift://routine",
		Name:        "Active Routine",
		Description: "Weekly schedule of the active routine",
		MIMEType:    "application/json",
	}, s.handleRoutineResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	date := s.now().Format(models.DateLayout)

	l, err := s.todayLog(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		return jsonResource("lift://today", map[string]any{
			"date":     date,
			"rest_day": true,
		})
	}
	if err != nil {
		return nil, err
	}

	out := toLogOutput(l)
	return jsonResource("lift://today", map[string]any{
		"date":         out.Date,
		"rest_day":     false,
		"routine_name": out.RoutineName,
		"workout_name": out.WorkoutName,
		"exercises":    out.Exercises,
		"complete":     out.Complete,
		"generated_at": s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleRoutineResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	_, out, err := s.handleGetRoutine(ctx, nil, getRoutineInput{})
	if err != nil {
		return nil, err
	}
	return jsonResource("lift://routine", out)
}

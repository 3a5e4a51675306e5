package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/agi-mcp/internal/goals"
	"github.com/HendryAvila/agi-mcp/internal/modification"
	"github.com/HendryAvila/agi-mcp/internal/skills"
)

// StatusURI addresses the state snapshot.
const StatusURI = "agi://status"

// SkillReader lists skills with their active version and A/B tests.
type SkillReader interface {
	Skills(ctx context.Context) ([]string, error)
	ActiveVersion(ctx context.Context, name string) (*skills.SkillVersion, error)
	Tests(ctx context.Context, name string) ([]skills.ABTest, error)
}

// GoalLister reports the progress of every goal.
type GoalLister interface {
	Goals(ctx context.Context) ([]goals.Progress, error)
}

// BaselineReader returns the most recent self-modification baseline.
type BaselineReader interface {
	LatestBaseline(ctx context.Context) (*modification.Baseline, error)
}

// StatusSources is what the status resource reads from.
type StatusSources struct {
	StorePath string
	Skills    SkillReader
	Goals     GoalLister
	Baseline  BaselineReader
}

// SkillStatus is one skill in the snapshot.
type SkillStatus struct {
	Name          string          `json:"name"`
	ActiveVersion string          `json:"active_version,omitempty"`
	ABTests       []skills.ABTest `json:"ab_tests"`
}

// Snapshot is the persisted state of the subsystems.
type Snapshot struct {
	StorePath string                 `json:"store_path"`
	Baseline  *modification.Baseline `json:"baseline"`
	Skills    []SkillStatus          `json:"skills"`
	Goals     []goals.Progress       `json:"goals"`
}

// StatusHandler serves the status resource.
type StatusHandler struct {
	src StatusSources
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(src StatusSources) *StatusHandler {
	return &StatusHandler{src: src}
}

// StatusResource returns the MCP resource definition for the snapshot.
func (h *StatusHandler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"AGI State Snapshot",
		mcp.WithResourceDescription("Registered skills with their active version and A/B tests, goal progress and the self-modification baseline"),
		mcp.WithMIMEType("application/json"),
	)
}

// Snapshot collects the current state.
func (h *StatusHandler) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{StorePath: h.src.StorePath, Skills: []SkillStatus{}, Goals: []goals.Progress{}}

	if h.src.Baseline != nil {
		b, err := h.src.Baseline.LatestBaseline(ctx)
		if err != nil {
			return nil, err
		}
		snap.Baseline = b
	}

	if h.src.Skills != nil {
		names, err := h.src.Skills.Skills(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			st := SkillStatus{Name: name, ABTests: []skills.ABTest{}}
			active, err := h.src.Skills.ActiveVersion(ctx, name)
			switch {
			case err == nil:
				st.ActiveVersion = active.Version
			case !errors.Is(err, skills.ErrSkillNotFound):
				return nil, err
			}
			tests, err := h.src.Skills.Tests(ctx, name)
			if err != nil {
				return nil, err
			}
			if tests != nil {
				st.ABTests = tests
			}
			snap.Skills = append(snap.Skills, st)
		}
	}

	if h.src.Goals != nil {
		progress, err := h.src.Goals.Goals(ctx)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			snap.Goals = progress
		}
	}
	return snap, nil
}

// HandleStatus returns the snapshot as JSON.
func (h *StatusHandler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := h.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting status: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// Package store persists extraction runs. A run is written when an
// extraction starts and finalized exactly once, succeeded or failed.
package store

import (
	"context"

	"github.com/platewise/recipe-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
	Platform  model.Platform  `json:"platform,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction runs.
type Store interface {
	CreateRun(ctx context.Context, sourceURL string, platform model.Platform) (*model.Run, error)
	AttachPreflight(ctx context.Context, runID string, pf *model.PreflightResult) error
	CompleteRun(ctx context.Context, runID string, method model.ExtractionMethod, retryCount int, recipe *model.Recipe) error
	FailRun(ctx context.Context, runID string, retryCount int, failure model.FailureReason, detail string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// GetRunBySourceURL returns the most recent run for a source URL, or
	// nil when the URL has never been attempted. Callers use it to skip
	// re-extraction of already-succeeded sources.
	GetRunBySourceURL(ctx context.Context, sourceURL string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

package interfaces

import (
	"context"

	"github.com/bobmcallan/psxlens/internal/models"
)

// StateStore persists per-step pipeline snapshots.
type StateStore interface {
	// Setup creates the state directory for a symbol and model pair and
	// removes snapshots from previous runs.
	Setup(symbol, extractionModel, analysisModel string) error

	// Save writes the snapshot for the named step. Failures are logged and
	// swallowed; a snapshot write error never aborts the pipeline.
	Save(state *models.AnalysisState, step string)
}

// StateReader exposes snapshots for progress monitoring.
type StateReader interface {
	// GetCurrentStates returns all step snapshots currently on disk for a
	// symbol and model pair, with overall progress derived from the furthest
	// step reached.
	GetCurrentStates(symbol, extractionModel, analysisModel string) (*models.StateOverview, error)

	// StreamStates polls for snapshot changes and emits events until the
	// final step appears, the time budget lapses, or ctx is cancelled.
	StreamStates(ctx context.Context, symbol, extractionModel, analysisModel string) (<-chan models.StateEvent, error)
}

// ResultStore caches finished analysis reports keyed by symbol, statement
// name, and model pair.
type ResultStore interface {
	Get(symbol, statementName, extractionModel, analysisModel string) (string, bool)
	Save(symbol, statementName, extractionModel, analysisModel, report string) error
}

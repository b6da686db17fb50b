package analysisfs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

const (
	// DefaultPollInterval is how often StreamStates re-scans the directory.
	DefaultPollInterval = 1500 * time.Millisecond

	// DefaultStreamTimeout bounds how long a stream waits for the final step.
	DefaultStreamTimeout = 300 * time.Second
)

// StateReader polls snapshot directories written by StateStore. It shares no
// memory with the writer; the filesystem is the only channel between them.
type StateReader struct {
	baseDir       string
	pollInterval  time.Duration
	streamTimeout time.Duration
	logger        *common.Logger
}

// ReaderOption configures the reader
type ReaderOption func(*StateReader)

// WithPollInterval sets the directory scan interval
func WithPollInterval(interval time.Duration) ReaderOption {
	return func(r *StateReader) {
		r.pollInterval = interval
	}
}

// WithStreamTimeout sets the stream time budget
func WithStreamTimeout(timeout time.Duration) ReaderOption {
	return func(r *StateReader) {
		r.streamTimeout = timeout
	}
}

// NewStateReader creates a reader over the same root as the state store.
func NewStateReader(baseDir string, logger *common.Logger, opts ...ReaderOption) *StateReader {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	r := &StateReader{
		baseDir:       baseDir,
		pollInterval:  DefaultPollInterval,
		streamTimeout: DefaultStreamTimeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *StateReader) statesDir(symbol, extractionModel, analysisModel string) string {
	return filepath.Join(r.baseDir, strings.ToUpper(symbol), ModelKey(extractionModel, analysisModel), "states")
}

// readSnapshots loads every parseable snapshot in the directory, keyed by
// step name. Unreadable or half-written files are skipped; the next poll
// picks them up once the writer finishes.
func (r *StateReader) readSnapshots(dir string) map[string]*models.StateSnapshot {
	paths, err := filepath.Glob(filepath.Join(dir, "*_state.json"))
	if err != nil {
		return nil
	}
	sort.Strings(paths)

	snapshots := make(map[string]*models.StateSnapshot)
	for _, path := range paths {
		step := strings.TrimSuffix(filepath.Base(path), "_state.json")

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var snap models.StateSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			// File may be mid-write; treat as not yet available.
			continue
		}
		snapshots[step] = &snap
	}
	return snapshots
}

// GetCurrentStates returns every snapshot on disk for a run, with progress
// taken from the furthest step reached.
func (r *StateReader) GetCurrentStates(symbol, extractionModel, analysisModel string) (*models.StateOverview, error) {
	symbol = strings.ToUpper(symbol)
	overview := &models.StateOverview{
		Symbol:   symbol,
		ModelKey: ModelKey(extractionModel, analysisModel),
		States:   map[string]*models.StateSnapshot{},
	}

	dir := r.statesDir(symbol, extractionModel, analysisModel)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return overview, nil
	}

	snapshots := r.readSnapshots(dir)
	if len(snapshots) == 0 {
		return overview, nil
	}

	steps := make([]string, 0, len(snapshots))
	for step := range snapshots {
		steps = append(steps, step)
	}
	sort.Strings(steps)

	latest := steps[len(steps)-1]
	overview.States = snapshots
	overview.LatestStep = latest
	overview.Progress = models.StepProgress(latest)
	_, overview.Complete = snapshots[models.StepFinal]

	return overview, nil
}

// StreamStates emits one event per newly observed snapshot until the final
// step arrives, the time budget lapses, or ctx is cancelled. The channel is
// closed when the stream ends.
func (r *StateReader) StreamStates(ctx context.Context, symbol, extractionModel, analysisModel string) (<-chan models.StateEvent, error) {
	dir := r.statesDir(symbol, extractionModel, analysisModel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	events := make(chan models.StateEvent)
	go func() {
		defer close(events)

		seen := make(map[string]bool)
		deadline := time.NewTimer(r.streamTimeout)
		defer deadline.Stop()
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			snapshots := r.readSnapshots(dir)
			steps := make([]string, 0, len(snapshots))
			for step := range snapshots {
				steps = append(steps, step)
			}
			sort.Strings(steps)

			for _, step := range steps {
				if seen[step] {
					continue
				}
				seen[step] = true
				snap := snapshots[step]

				select {
				case events <- models.StateEvent{
					Type:     models.EventState,
					Step:     step,
					Progress: models.StepProgress(step),
					Snapshot: snap,
				}:
				case <-ctx.Done():
					return
				}

				if step == models.StepFinal {
					select {
					case events <- models.StateEvent{
						Type:     models.EventComplete,
						Step:     step,
						Progress: models.StepProgress(step),
						Snapshot: snap,
						Message:  "Analysis complete",
					}:
					case <-ctx.Done():
					}
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				select {
				case events <- models.StateEvent{
					Type:    models.EventTimeout,
					Message: "Analysis timeout - no updates received",
				}:
				case <-ctx.Done():
				}
				return
			case <-ticker.C:
			}
		}
	}()

	return events, nil
}

// Ensure StateReader implements the read-side contract
var _ interfaces.StateReader = (*StateReader)(nil)

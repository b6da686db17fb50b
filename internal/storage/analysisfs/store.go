package analysisfs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

// StateStore writes per-step pipeline snapshots. One run owns one directory;
// there is never more than one writer per directory.
type StateStore struct {
	baseDir string
	logger  *common.Logger

	mu           sync.Mutex
	ephemeralDir string // timestamp-keyed directory for runs without a symbol
}

// NewStateStore creates a snapshot store rooted at baseDir
// (typically data/results).
func NewStateStore(baseDir string, logger *common.Logger) *StateStore {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &StateStore{baseDir: baseDir, logger: logger}
}

// statesDir returns data/results/{SYMBOL}/{model_key}/states. Two fallbacks
// for ephemeral runs: no model combination drops the model_key segment, and no
// symbol resolves to the timestamp-keyed directory minted by Setup.
func (s *StateStore) statesDir(symbol, extractionModel, analysisModel string) string {
	if symbol == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ephemeralDir == "" {
			s.ephemeralDir = filepath.Join(s.baseDir, time.Now().UTC().Format("20060102_150405"), "states")
		}
		return s.ephemeralDir
	}
	if extractionModel == "" && analysisModel == "" {
		return filepath.Join(s.baseDir, strings.ToUpper(symbol), "states")
	}
	return filepath.Join(s.baseDir, strings.ToUpper(symbol), ModelKey(extractionModel, analysisModel), "states")
}

// Setup creates the snapshot directory for a run and clears snapshots left by
// previous runs of the same symbol and model pair. A run without a symbol gets
// a fresh timestamp-keyed directory each time.
func (s *StateStore) Setup(symbol, extractionModel, analysisModel string) error {
	if symbol == "" {
		s.mu.Lock()
		s.ephemeralDir = filepath.Join(s.baseDir, time.Now().UTC().Format("20060102_150405"), "states")
		s.mu.Unlock()
	}
	dir := s.statesDir(symbol, extractionModel, analysisModel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create states directory: %w", err)
	}

	stale, err := filepath.Glob(filepath.Join(dir, "*_state.json"))
	if err != nil {
		return fmt.Errorf("failed to list stale snapshots: %w", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove stale snapshot")
		}
	}

	return nil
}

// Save writes the snapshot for one step. Write failures are logged and
// swallowed: losing a progress snapshot must never abort the pipeline.
func (s *StateStore) Save(state *models.AnalysisState, step string) {
	dir := s.statesDir(state.Symbol, state.ExtractionModel, state.AnalysisModel)
	path := filepath.Join(dir, step+"_state.json")

	data, err := json.MarshalIndent(state.Snapshot(step), "", "  ")
	if err != nil {
		s.logger.Warn().Err(err).Str("step", step).Msg("Failed to marshal state snapshot")
		return
	}

	if err := writeFileAtomic(path, data); err != nil {
		s.logger.Warn().Err(err).Str("step", step).Str("path", path).Msg("Failed to save state snapshot")
		return
	}

	s.logger.Debug().Str("symbol", state.Symbol).Str("step", step).Msg("Saved state snapshot")
}

// writeFileAtomic writes via a temp file and rename so a polling reader never
// observes a half-written snapshot.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure StateStore implements the write-side contract
var _ interfaces.StateStore = (*StateStore)(nil)


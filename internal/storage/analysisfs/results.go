package analysisfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
)

// ResultStore caches finished reports as plain text files, one per statement
// per model pair, alongside the run's states directory.
type ResultStore struct {
	baseDir string
	logger  *common.Logger
}

// NewResultStore creates a result cache rooted at baseDir
// (typically data/results).
func NewResultStore(baseDir string, logger *common.Logger) *ResultStore {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &ResultStore{baseDir: baseDir, logger: logger}
}

func (s *ResultStore) resultPath(symbol, statementName, extractionModel, analysisModel string) string {
	return filepath.Join(
		s.baseDir,
		strings.ToUpper(symbol),
		ModelKey(extractionModel, analysisModel),
		"result_"+statementName+".txt",
	)
}

// Get returns the cached report for a statement, if one exists.
func (s *ResultStore) Get(symbol, statementName, extractionModel, analysisModel string) (string, bool) {
	data, err := os.ReadFile(s.resultPath(symbol, statementName, extractionModel, analysisModel))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Save persists a finished report to the cache.
func (s *ResultStore) Save(symbol, statementName, extractionModel, analysisModel, report string) error {
	path := s.resultPath(symbol, statementName, extractionModel, analysisModel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	if err := writeFileAtomic(path, []byte(report)); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Debug().Str("symbol", symbol).Str("statement", statementName).Msg("Cached analysis result")
	return nil
}

// Ensure ResultStore implements the cache contract
var _ interfaces.ResultStore = (*ResultStore)(nil)

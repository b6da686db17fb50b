package analyzer

import (
	"context"
	"strings"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

// Service orchestrates the analysis pipeline. Steps run strictly in sequence;
// a step failure degrades its output to an empty default and is reported once
// at the end, never mid-run.
type Service struct {
	llm     interfaces.LLMClient
	states  interfaces.StateStore
	prompts *PromptManager
	catalog common.ModelsConfig
	logger  *common.Logger
}

// NewService creates the pipeline orchestrator.
func NewService(llm interfaces.LLMClient, states interfaces.StateStore, prompts *PromptManager, catalog common.ModelsConfig, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		llm:     llm,
		states:  states,
		prompts: prompts,
		catalog: catalog,
		logger:  logger,
	}
}

// Analyze runs the full pipeline for one statement and returns the formatted
// report with the run's token usage. When any step degraded, the report is
// still produced but an LLMAnalysisError aggregating every step failure is
// returned alongside it.
func (s *Service) Analyze(ctx context.Context, req interfaces.AnalyzeRequest) (string, *models.TokenUsage, error) {
	if strings.TrimSpace(req.PDFText) == "" && req.PDFPath == "" {
		return "", nil, &models.LLMAnalysisError{Op: "analysis", Detail: "no PDF text or PDF path provided"}
	}

	state := &models.AnalysisState{
		Symbol:          strings.ToUpper(req.Symbol),
		PDFText:         req.PDFText,
		PDFPath:         req.PDFPath,
		StockPrice:      req.StockPrice,
		Currency:        req.Currency,
		ExtractionModel: s.catalog.Resolve(common.RoleExtraction, req.ExtractionModel),
		AnalysisModel:   s.catalog.Resolve(common.RoleAnalysis, req.AnalysisModel),
		TokenUsage:      models.NewTokenUsage(),
		UserProfile:     req.UserProfile,
		StockContext:    req.StockContext,
	}

	if err := s.states.Setup(state.Symbol, state.ExtractionModel, state.AnalysisModel); err != nil {
		// Snapshots are progress reporting, not pipeline input; run anyway.
		s.logger.Warn().Err(err).Str("symbol", state.Symbol).Msg("Failed to set up state directory")
	}
	s.states.Save(state, models.StepInitial)

	s.logger.Info().
		Str("symbol", state.Symbol).
		Str("extraction_model", state.ExtractionModel).
		Str("analysis_model", state.AnalysisModel).
		Msg("Starting analysis pipeline")

	s.runExtract(ctx, state)
	s.runCalculate(state)
	s.runValidate(state)
	s.runAnalyze(ctx, state)
	s.runFormat(state)

	s.states.Save(state, models.StepFinal)

	if len(state.Errors) > 0 {
		s.logger.Warn().Str("symbol", state.Symbol).Int("errors", len(state.Errors)).Msg("Pipeline completed with errors")
		return state.FinalReport, state.TokenUsage, &models.LLMAnalysisError{
			Op:     "analysis",
			Detail: "Analysis errors: " + strings.Join(state.Errors, "; "),
		}
	}

	report := state.FinalReport
	if report == "" {
		report = "Analysis completed but no report generated."
	}

	s.logger.Info().Str("symbol", state.Symbol).Int("total_tokens", state.TokenUsage.Cumulative.TotalTokens).Msg("Analysis pipeline complete")
	return report, state.TokenUsage, nil
}

// Ensure Service implements AnalyzerService
var _ interfaces.AnalyzerService = (*Service)(nil)

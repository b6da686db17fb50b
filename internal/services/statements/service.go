// Package statements coordinates statement discovery, download, result
// caching, and analysis for PSX symbols.
package statements

import (
	"context"
	"strings"

	"github.com/bobmcallan/psxlens/internal/clients/psx"
	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
	"github.com/bobmcallan/psxlens/internal/storage/analysisfs"
)

// defaultCurrency is assumed when the statement text carries no recognizable
// currency marker. PSX listings report in rupees.
const defaultCurrency = "PKR"

// Service ties the document source, price source, result cache, and analysis
// pipeline together for one-symbol requests.
type Service struct {
	docs     interfaces.DocumentSource
	prices   interfaces.PriceSource
	results  interfaces.ResultStore
	analyzer interfaces.AnalyzerService
	catalog  common.ModelsConfig
	logger   *common.Logger
}

// NewService creates the statement service.
func NewService(docs interfaces.DocumentSource, prices interfaces.PriceSource, results interfaces.ResultStore, analyzer interfaces.AnalyzerService, catalog common.ModelsConfig, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		docs:     docs,
		prices:   prices,
		results:  results,
		analyzer: analyzer,
		catalog:  catalog,
		logger:   logger,
	}
}

// AnalyzeStock runs the full flow for a symbol: latest report lookup, cache
// check, PDF download and text extraction, then the analysis pipeline. The
// result is cached per statement and model pair.
func (s *Service) AnalyzeStock(ctx context.Context, symbol string, opts interfaces.AnalyzeOptions) (*models.AnalysisOutcome, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	report, err := s.docs.GetLatestReport(ctx, symbol)
	if err != nil {
		return s.errorOutcome(symbol, "", err), err
	}
	if report == nil {
		return &models.AnalysisOutcome{
			Symbol:  symbol,
			Status:  models.OutcomeNoReport,
			Message: "No financial report found",
		}, nil
	}

	statementName := analysisfs.StatementName(report.ReportType, report.PeriodEnded)

	// Model ids are normalized before the cache lookup so "auto" and the
	// concrete default share one cache entry.
	extractionModel := s.catalog.Normalize(opts.ExtractionModel, common.RoleExtraction)
	analysisModel := s.catalog.Normalize(opts.AnalysisModel, common.RoleAnalysis)

	if cached, ok := s.results.Get(symbol, statementName, extractionModel, analysisModel); ok {
		s.logger.Info().Str("symbol", symbol).Str("statement", statementName).Msg("Serving cached analysis")
		return &models.AnalysisOutcome{
			Symbol:        symbol,
			Status:        models.OutcomeCached,
			StatementName: statementName,
			Result:        cached,
		}, nil
	}

	pdfPath, err := s.docs.DownloadPDF(ctx, report.ReportURL, symbol)
	if err != nil {
		return s.errorOutcome(symbol, statementName, err), err
	}

	// Extraction failures leave the text empty; the pipeline falls back to
	// multimodal extraction over the PDF itself.
	pdfText, err := s.docs.ExtractText(pdfPath)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Str("path", pdfPath).Msg("PDF text extraction failed, relying on multimodal path")
		pdfText = ""
	}

	price, err := s.prices.GetCurrentPrice(ctx, symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Price lookup failed, valuation metrics will be skipped")
		price = nil
	}

	currency := psx.DetectCurrency(pdfText)
	if currency == "" {
		currency = defaultCurrency
	}

	result, usage, err := s.analyzer.Analyze(ctx, interfaces.AnalyzeRequest{
		Symbol:          symbol,
		PDFText:         pdfText,
		PDFPath:         pdfPath,
		StockPrice:      price,
		Currency:        currency,
		ExtractionModel: extractionModel,
		AnalysisModel:   analysisModel,
		UserProfile:     opts.UserProfile,
		StockContext:    opts.StockContext,
	})
	if err != nil {
		// Degraded runs are not cached: a retry may produce a clean report.
		outcome := s.errorOutcome(symbol, statementName, err)
		outcome.Result = result
		outcome.TokenUsage = usage
		return outcome, err
	}

	if err := s.results.Save(symbol, statementName, extractionModel, analysisModel, result); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Str("statement", statementName).Msg("Failed to cache analysis result")
	}

	return &models.AnalysisOutcome{
		Symbol:        symbol,
		Status:        models.OutcomeAnalyzed,
		StatementName: statementName,
		Result:        result,
		TokenUsage:    usage,
	}, nil
}

// CheckLatestReport reports whether the newest statement for a symbol already
// has a cached analysis for the given model pair, without running anything.
func (s *Service) CheckLatestReport(ctx context.Context, symbol string, opts interfaces.AnalyzeOptions) (*models.AnalysisOutcome, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	report, err := s.docs.GetLatestReport(ctx, symbol)
	if err != nil {
		return s.errorOutcome(symbol, "", err), err
	}
	if report == nil {
		return &models.AnalysisOutcome{
			Symbol:  symbol,
			Status:  models.OutcomeNoReport,
			Message: "No financial report found",
		}, nil
	}

	statementName := analysisfs.StatementName(report.ReportType, report.PeriodEnded)
	extractionModel := s.catalog.Normalize(opts.ExtractionModel, common.RoleExtraction)
	analysisModel := s.catalog.Normalize(opts.AnalysisModel, common.RoleAnalysis)

	if cached, ok := s.results.Get(symbol, statementName, extractionModel, analysisModel); ok {
		return &models.AnalysisOutcome{
			Symbol:        symbol,
			Status:        models.OutcomeCached,
			StatementName: statementName,
			Result:        cached,
		}, nil
	}

	return &models.AnalysisOutcome{
		Symbol:        symbol,
		Status:        models.OutcomeNotAnalyzed,
		StatementName: statementName,
	}, nil
}

func (s *Service) errorOutcome(symbol, statementName string, err error) *models.AnalysisOutcome {
	return &models.AnalysisOutcome{
		Symbol:        symbol,
		Status:        models.OutcomeError,
		StatementName: statementName,
		Message:       err.Error(),
	}
}

var _ interfaces.StatementService = (*Service)(nil)

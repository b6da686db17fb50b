package interfaces

import (
	"context"

	"github.com/bobmcallan/psxlens/internal/models"
)

// AnalyzeRequest carries everything the pipeline needs for one run.
type AnalyzeRequest struct {
	Symbol          string
	PDFText         string
	PDFPath         string
	StockPrice      *float64
	Currency        string
	ExtractionModel string
	AnalysisModel   string
	UserProfile     *models.UserProfile
	StockContext    string
}

// AnalyzerService runs the five-step analysis pipeline and returns the
// formatted report. Step failures are accumulated and surfaced as a single
// error after the report is produced.
type AnalyzerService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (string, *models.TokenUsage, error)
}

// AnalyzeOptions tunes a statement analysis run.
type AnalyzeOptions struct {
	ExtractionModel string
	AnalysisModel   string
	UserProfile     *models.UserProfile
	StockContext    string
}

// StatementService coordinates report discovery, download, caching, and
// pipeline execution for a stock symbol.
type StatementService interface {
	// AnalyzeStock finds the latest report for a symbol, serves a cached
	// result when one exists for the model pair, and otherwise runs the
	// full pipeline.
	AnalyzeStock(ctx context.Context, symbol string, opts AnalyzeOptions) (*models.AnalysisOutcome, error)

	// CheckLatestReport reports whether the newest statement for a symbol
	// has already been analyzed with the given model pair.
	CheckLatestReport(ctx context.Context, symbol string, opts AnalyzeOptions) (*models.AnalysisOutcome, error)
}

// JobManager queues analysis jobs onto a bounded worker pool.
type JobManager interface {
	Submit(job *models.AnalysisJob) error
	Get(id string) (*models.AnalysisJob, bool)
	Start(ctx context.Context)
	Stop()
}

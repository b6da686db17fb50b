// Package models defines the data types shared across PSXLens services.
package models

import "time"

// Pipeline step names. The zero-padded numeric prefix gives snapshots a total
// order so a plain lexicographic directory listing recovers pipeline progress.
const (
	StepInitial   = "00_initial"
	StepExtract   = "01_extract"
	StepCalculate = "02_calculate"
	StepValidate  = "03_validate"
	StepAnalyze   = "04_analyze"
	StepFormat    = "05_format"
	StepFinal     = "99_final"
)

// stepProgress maps each step to its completion percentage.
var stepProgress = map[string]int{
	StepInitial:   0,
	StepExtract:   20,
	StepCalculate: 40,
	StepValidate:  60,
	StepAnalyze:   80,
	StepFormat:    90,
	StepFinal:     100,
}

// StepProgress returns the progress percentage for a step name, or 0 for an
// unknown step.
func StepProgress(step string) int {
	return stepProgress[step]
}

// ValidationIssue is a single finding from the financial metrics validator.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResults is the outcome of all cross-statement consistency checks.
// IsValid is true iff no error-severity findings occurred; warnings never
// affect validity.
type ValidationResults struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// AnalysisState is the single record threaded through the analysis pipeline.
// It is created once per run, mutated in place by each step in strict
// sequence, and has no concurrent writers. A nil/empty output field means the
// producing step has not run or failed; downstream steps proceed with empty
// defaults rather than crashing.
type AnalysisState struct {
	Symbol     string
	PDFText    string
	PDFPath    string
	StockPrice *float64
	Currency   string

	ExtractedData     map[string]any
	CalculatedMetrics map[string]float64
	ValidationResults *ValidationResults
	AnalysisResults   map[string]any
	FinalReport       string

	// Errors is append-only; any step failure appends one entry and never
	// propagates past the orchestrator.
	Errors []string

	ExtractionModel string
	AnalysisModel   string
	TokenUsage      *TokenUsage

	UserProfile  *UserProfile
	StockContext string
}

// AddError appends a step failure to the error log.
func (s *AnalysisState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// StateSnapshot is the JSON shape persisted after every pipeline step.
type StateSnapshot struct {
	Step              string             `json:"step"`
	Timestamp         time.Time          `json:"timestamp"`
	StockPrice        *float64           `json:"stock_price"`
	Currency          string             `json:"currency"`
	ExtractedData     map[string]any     `json:"extracted_data"`
	CalculatedMetrics map[string]float64 `json:"calculated_metrics"`
	ValidationResults *ValidationResults `json:"validation_results"`
	AnalysisResults   map[string]any     `json:"analysis_results"`
	FinalReport       string             `json:"final_report"`
	Errors            []string           `json:"errors"`
	TokenUsage        *TokenUsage        `json:"token_usage"`
	PDFTextLength     int                `json:"pdf_text_length,omitempty"`
	PDFTextPreview    string             `json:"pdf_text_preview,omitempty"`
}

// Snapshot captures the current state under a step name. The raw PDF text is
// never persisted; only its length and a short preview.
func (s *AnalysisState) Snapshot(step string) *StateSnapshot {
	snap := &StateSnapshot{
		Step:              step,
		Timestamp:         time.Now(),
		StockPrice:        s.StockPrice,
		Currency:          s.Currency,
		ExtractedData:     s.ExtractedData,
		CalculatedMetrics: s.CalculatedMetrics,
		ValidationResults: s.ValidationResults,
		AnalysisResults:   s.AnalysisResults,
		FinalReport:       s.FinalReport,
		Errors:            s.Errors,
		TokenUsage:        s.TokenUsage,
	}
	if snap.Errors == nil {
		snap.Errors = []string{}
	}
	if s.PDFText != "" {
		snap.PDFTextLength = len(s.PDFText)
		preview := s.PDFText
		if len(preview) > 500 {
			preview = preview[:500]
		}
		snap.PDFTextPreview = preview
	}
	return snap
}

// UserProfile carries investor context injected into analysis prompts.
// Zero-valued fields are treated as absent.
type UserProfile struct {
	Age               int    `json:"age,omitempty"`
	RiskTolerance     string `json:"risk_tolerance,omitempty"`
	InvestmentStyle   string `json:"investment_style,omitempty"`
	InvestmentHorizon string `json:"investment_horizon,omitempty"`
	InvestmentGoals   string `json:"investment_goals,omitempty"`
}

// Empty reports whether no profile fields are set.
func (p *UserProfile) Empty() bool {
	if p == nil {
		return true
	}
	return p.Age == 0 && p.RiskTolerance == "" && p.InvestmentStyle == "" &&
		p.InvestmentHorizon == "" && p.InvestmentGoals == ""
}

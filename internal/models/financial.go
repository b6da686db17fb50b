package models

import "time"

// FinancialReport describes one published company report on the PSX data
// portal.
type FinancialReport struct {
	Symbol      string    `json:"symbol"`
	ReportType  string    `json:"report_type"`
	PeriodEnded string    `json:"period_ended"`
	PostingDate time.Time `json:"posting_date"`
	ReportURL   string    `json:"report_url"`
}

// AnalysisOutcome is the result of an end-to-end statement analysis request.
type AnalysisOutcome struct {
	Symbol        string      `json:"symbol"`
	Status        string      `json:"status"`
	StatementName string      `json:"statement_name,omitempty"`
	Result        string      `json:"result,omitempty"`
	Message       string      `json:"message,omitempty"`
	TokenUsage    *TokenUsage `json:"token_usage,omitempty"`
}

// Analysis outcome statuses.
const (
	OutcomeAnalyzed    = "analyzed"
	OutcomeCached      = "cached"
	OutcomeNoReport    = "no_report"
	OutcomeNotAnalyzed = "not_analyzed"
	OutcomeError       = "error"
)

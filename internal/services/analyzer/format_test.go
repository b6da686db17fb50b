package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/psxlens/internal/models"
)

func renderReport(t *testing.T, state *models.AnalysisState) string {
	t.Helper()
	service := &Service{states: &fakeStateStore{}}
	service.runFormat(state)
	return state.FinalReport
}

func TestFormatEmptyStateFallsBackToNA(t *testing.T) {
	state := &models.AnalysisState{Symbol: "HBL"}

	report := renderReport(t, state)

	// The fixed sections all render with defaults.
	assert.Contains(t, report, "COMPANY INFORMATION:")
	assert.Contains(t, report, "- Company Name: N/A")
	assert.Contains(t, report, "- Fiscal Year: N/A")
	assert.Contains(t, report, "GROWTH METRICS:")
	assert.Contains(t, report, "- Revenue Growth: N/A")
	assert.Contains(t, report, "VALUATION METRICS:")
	assert.Contains(t, report, "FINANCIAL HEALTH:")

	// Data-driven sections are omitted entirely.
	assert.NotContains(t, report, "BUSINESS MODEL:")
	assert.NotContains(t, report, "RED FLAGS:")
	assert.NotContains(t, report, "INVESTOR SUMMARY:")
	assert.NotContains(t, report, "HOLDING COMPANY FOCUS AREAS:")
}

func TestFormatFullState(t *testing.T) {
	state := &models.AnalysisState{
		Symbol: "HBL",
		ExtractedData: map[string]any{
			"company_name": "Habib Bank Limited",
			"fiscal_year":  "2024",
			"currency":     "PKR",
			"eps":          10.5,
			"business_model": []any{
				map[string]any{"name": "Retail Banking", "description": "Branch network deposits and lending"},
			},
			"investor_statements": []string{"Deposit growth remains strong"},
		},
		CalculatedMetrics: map[string]float64{
			"revenue_growth_pct": 12.345,
			"working_capital":    250000,
			"quick_ratio":        1.2,
		},
		AnalysisResults: map[string]any{
			"company_type":        "holding",
			"holding_focus_areas": []any{"Subsidiary dividends"},
			"investor_summary":    "Well capitalized bank.",
			"red_flags":           []any{"Concentrated loan book"},
			"dividend_analysis": map[string]any{
				"payout_ratio":         "40",
				"dividend_explanation": "Payout maintained despite rate cycle.",
			},
			"valuation_metrics": map[string]any{"pe_ratio": 5.25},
		},
	}

	report := renderReport(t, state)

	assert.Contains(t, report, "- Company Name: Habib Bank Limited")
	assert.Contains(t, report, "BUSINESS MODEL:")
	assert.Contains(t, report, "- Retail Banking: Branch network deposits and lending")
	assert.Contains(t, report, "KEY INVESTOR STATEMENTS:")
	assert.Contains(t, report, "- Revenue Growth: 12.35%")
	assert.Contains(t, report, "- Working Capital: 250000")
	assert.Contains(t, report, "HOLDING COMPANY FOCUS AREAS:")
	assert.Contains(t, report, "- Subsidiary dividends")
	assert.Contains(t, report, "- Payout Ratio: 40%")
	assert.Contains(t, report, "Dividend Explanation: Payout maintained despite rate cycle.")
	assert.Contains(t, report, "- P/E Ratio: 5.25")
	assert.Contains(t, report, "INVESTOR SUMMARY:\nWell capitalized bank.")
	assert.Contains(t, report, "RED FLAGS:")
	assert.Contains(t, report, "- Concentrated loan book")
}

func TestFormatSectionOrder(t *testing.T) {
	state := &models.AnalysisState{
		Symbol:          "HBL",
		AnalysisResults: map[string]any{"investor_summary": "Summary.", "red_flags": []any{"x"}},
	}

	report := renderReport(t, state)

	company := strings.Index(report, "COMPANY INFORMATION:")
	growth := strings.Index(report, "GROWTH METRICS:")
	valuation := strings.Index(report, "VALUATION METRICS:")
	summary := strings.Index(report, "INVESTOR SUMMARY:")
	flags := strings.Index(report, "RED FLAGS:")

	require.True(t, company >= 0 && growth > company)
	require.True(t, valuation > growth)
	require.True(t, summary > valuation)
	require.True(t, flags > summary)
}

func TestFormatHoldingSectionGatedOnCompanyType(t *testing.T) {
	state := &models.AnalysisState{
		Symbol: "ENGRO",
		AnalysisResults: map[string]any{
			"company_type":        "operating",
			"holding_focus_areas": []any{"should not appear"},
		},
	}

	report := renderReport(t, state)

	assert.NotContains(t, report, "HOLDING COMPANY FOCUS AREAS")
}

func TestTrimFloat(t *testing.T) {
	assert.Equal(t, "10.5", trimFloat(10.5))
	assert.Equal(t, "10", trimFloat(10.0))
	assert.Equal(t, "12.35", trimFloat(12.345))
}

package analyzer

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/psxlens/internal/models"
)

// runFormat assembles the final plain-text report. The section order is
// fixed and every field falls back to "N/A" when absent so the report shape
// stays stable regardless of how degraded the run was.
func (s *Service) runFormat(state *models.AnalysisState) {
	extracted := state.ExtractedData
	if extracted == nil {
		extracted = map[string]any{}
	}
	calculated := state.CalculatedMetrics
	if calculated == nil {
		calculated = map[string]float64{}
	}
	analysis := state.AnalysisResults
	if analysis == nil {
		analysis = map[string]any{}
	}

	r := &reportBuilder{extracted: extracted, calculated: calculated, analysis: analysis}
	r.companyInfo()
	r.businessModel()
	r.investorStatements()
	r.investmentGrowthAreas()
	r.holdingFocusAreas()
	r.lossCausingAreas()
	r.growthMetrics()
	r.investmentAnalysis()
	r.dividendAnalysis()
	r.valuationMetrics()
	r.financialHealth()
	r.initiatives()
	r.investorSummary()
	r.redFlags()

	state.FinalReport = r.String()
	s.states.Save(state, models.StepFormat)
}

type reportBuilder struct {
	extracted  map[string]any
	calculated map[string]float64
	analysis   map[string]any
	lines      []string
}

func (r *reportBuilder) String() string {
	return strings.Join(r.lines, "\n")
}

func (r *reportBuilder) add(line string) {
	r.lines = append(r.lines, line)
}

// field renders any extracted/analysis value, defaulting to "N/A".
func field(data map[string]any, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return "N/A"
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "N/A"
		}
		return v
	case float64:
		return trimFloat(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// metric renders a calculated metric with N/A fallback.
func (r *reportBuilder) metric(label, key, format, suffix string) {
	value, ok := r.calculated[key]
	if !ok {
		r.add(fmt.Sprintf("- %s: N/A", label))
		return
	}
	r.add(fmt.Sprintf("- %s: %s%s", label, fmt.Sprintf(format, value), suffix))
}

func trimFloat(v float64) string {
	out := fmt.Sprintf("%.2f", v)
	out = strings.TrimRight(out, "0")
	return strings.TrimRight(out, ".")
}

// listSection renders a titled bullet list, skipping blank items. Nothing is
// emitted for an empty list.
func (r *reportBuilder) listSection(title string, items []string) {
	if len(items) == 0 {
		return
	}
	r.add(title + ":")
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			r.add("- " + item)
		}
	}
	r.add("")
}

func (r *reportBuilder) analysisSection(key string) map[string]any {
	if section, ok := r.analysis[key].(map[string]any); ok {
		return section
	}
	return map[string]any{}
}

func (r *reportBuilder) companyInfo() {
	r.add("COMPANY INFORMATION:")
	r.add("- Company Name: " + field(r.extracted, "company_name"))
	r.add("- Fiscal Year: " + field(r.extracted, "fiscal_year"))
	r.add("- Currency: " + field(r.extracted, "currency"))
	r.add("")
}

func (r *reportBuilder) businessModel() {
	segments, ok := r.extracted["business_model"].([]any)
	if !ok || len(segments) == 0 {
		return
	}

	r.add("BUSINESS MODEL:")
	for _, raw := range segments {
		segment, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := segment["name"].(string)
		description, _ := segment["description"].(string)
		if name != "" && description != "" {
			r.add(fmt.Sprintf("- %s: %s", name, description))
		}
	}
	r.add("")
}

func (r *reportBuilder) investorStatements() {
	r.listSection("KEY INVESTOR STATEMENTS", toStringList(r.extracted["investor_statements"]))
}

func (r *reportBuilder) investmentGrowthAreas() {
	r.listSection("INVESTMENT & GROWTH AREAS", toStringList(r.analysis["investment_growth_areas"]))
}

func (r *reportBuilder) holdingFocusAreas() {
	companyType, _ := r.analysis["company_type"].(string)
	if companyType != "holding" && companyType != "mixed" {
		return
	}
	r.listSection("HOLDING COMPANY FOCUS AREAS", toStringList(r.analysis["holding_focus_areas"]))
}

func (r *reportBuilder) lossCausingAreas() {
	r.listSection("LOSS-CAUSING AREAS", toStringList(r.analysis["loss_causing_areas"]))
}

func (r *reportBuilder) growthMetrics() {
	r.add("GROWTH METRICS:")
	r.metric("Revenue Growth", "revenue_growth_pct", "%.2f", "%")
	r.metric("Net Income Growth", "net_income_growth_pct", "%.2f", "%")
	r.add("")
}

func (r *reportBuilder) investmentAnalysis() {
	section := r.analysisSection("investment_analysis")
	r.add("INVESTMENT ANALYSIS:")
	r.add("- Capital Expenditures: " + field(r.extracted, "capital_expenditures"))
	r.add("- CapEx as % of Revenue: " + field(section, "capex_pct_revenue") + "%")
	r.add("- Investment Trend: " + field(section, "investment_trend"))
	r.add("- EPS (Latest): " + field(r.extracted, "eps"))
	r.add("")
}

func (r *reportBuilder) dividendAnalysis() {
	section := r.analysisSection("dividend_analysis")
	r.add("DIVIDEND ANALYSIS:")
	r.add("- Dividends Paid: " + field(r.extracted, "dividends_paid"))
	r.add("- Payout Ratio: " + field(section, "payout_ratio") + "%")
	r.add("- FCF Coverage: " + field(section, "fcf_coverage") + "x")
	r.add("- Strategy: " + field(section, "strategy"))

	if statements := toStringList(section["dividend_statements"]); len(statements) > 0 {
		r.add("")
		r.listSection("Dividend Policy Statements", statements)
	}
	if explanation, ok := section["dividend_explanation"].(string); ok && strings.TrimSpace(explanation) != "" {
		r.add("")
		r.add("Dividend Explanation: " + explanation)
	}
	r.add("")
}

func (r *reportBuilder) valuationMetrics() {
	section := r.analysisSection("valuation_metrics")
	r.add("VALUATION METRICS:")
	r.add("- P/E Ratio: " + field(section, "pe_ratio"))

	if value, ok := numberField(r.extracted, "book_value_per_share"); ok {
		r.add("- Book Value per Share: " + trimFloat(value))
	} else {
		r.metric("Book Value per Share", "book_value_per_share", "%.2f", "")
	}

	r.add("- P/B Ratio: " + field(section, "pb_ratio"))
	r.metric("P/S Ratio", "ps_ratio", "%.2f", "")
	r.add("- EPS: " + field(r.extracted, "eps"))
	r.add("- EV/EBITDA: " + field(section, "ev_ebitda"))
	r.add("- FCF Yield: " + field(section, "fcf_yield") + "%")
	r.add("")
}

func (r *reportBuilder) financialHealth() {
	r.add("FINANCIAL HEALTH:")
	r.metric("Working Capital", "working_capital", "%.0f", "")
	r.metric("Cash per Share", "cash_per_share", "%.2f", "")
	r.metric("Debt-to-Assets Ratio", "debt_to_assets", "%.3f", "")
	r.metric("Quick Ratio", "quick_ratio", "%.2f", "")
	r.metric("Gross Margin", "gross_margin_pct", "%.2f", "%")
	r.metric("Interest Coverage", "interest_coverage", "%.2f", "x")
	r.add("")
}

func (r *reportBuilder) initiatives() {
	r.listSection("NEW INITIATIVES", toStringList(r.analysis["new_initiatives"]))
}

func (r *reportBuilder) investorSummary() {
	summary, _ := r.analysis["investor_summary"].(string)
	if summary == "" {
		return
	}
	r.add("INVESTOR SUMMARY:")
	r.add(summary)
	r.add("")
}

func (r *reportBuilder) redFlags() {
	r.listSection("RED FLAGS", toStringList(r.analysis["red_flags"]))
}

package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bobmcallan/psxlens/internal/models"
)

// criticalMetrics must all be present in the merged extracted+calculated data
// for a statement to be considered analyzable.
var criticalMetrics = []string{
	"revenue",
	"net_income",
	"total_assets",
	"total_liabilities",
	"shareholders_equity",
	"operating_cash_flow",
	"free_cash_flow",
}

// flowTolerance is the comparison tolerance for cash-flow items: 1% relative
// with an absolute floor of 1000, absorbing rounding and reporting-unit noise
// without masking real inconsistencies.
func flowTolerance(reference float64) float64 {
	return math.Max(math.Abs(reference)*0.01, 1000)
}

// ValidateAll runs every cross-statement consistency check against the merged
// extracted and calculated data. Pure function; severity taxonomy: errors
// invalidate the statement, warnings never do.
func ValidateAll(data map[string]any) *models.ValidationResults {
	results := &models.ValidationResults{
		Errors:   []models.ValidationIssue{},
		Warnings: []models.ValidationIssue{},
	}

	validateCriticalMetrics(data, results)
	validateBalanceSheet(data, results)
	validateCashFlowReconciliation(data, results)
	validateNetIncomeConsistency(data, results)
	validateFreeCashFlow(data, results)

	results.IsValid = len(results.Errors) == 0
	return results
}

func validateCriticalMetrics(data map[string]any, results *models.ValidationResults) {
	var missing []string
	for _, metric := range criticalMetrics {
		if _, ok := numberField(data, metric); !ok {
			missing = append(missing, metric)
		}
	}
	if len(missing) > 0 {
		results.Errors = append(results.Errors, models.ValidationIssue{
			Field:   "critical_metrics",
			Message: "Missing critical metrics: " + strings.Join(missing, ", "),
		})
	}
}

// validateBalanceSheet checks Assets = Liabilities + Equity within 1% of
// total assets. Missing operands are an error: the balance sheet cannot be
// validated at all.
func validateBalanceSheet(data map[string]any, results *models.ValidationResults) {
	assets, okA := numberField(data, "total_assets")
	liabilities, okL := numberField(data, "total_liabilities")
	equity, okE := numberField(data, "shareholders_equity")

	if !okA || !okL || !okE {
		results.Errors = append(results.Errors, models.ValidationIssue{
			Field:   "balance_sheet",
			Message: "Missing required balance sheet components",
		})
		return
	}

	difference := math.Abs(assets - (liabilities + equity))
	if difference > assets*0.01 {
		results.Errors = append(results.Errors, models.ValidationIssue{
			Field: "balance_sheet",
			Message: fmt.Sprintf("Balance sheet does not balance. Assets (%v) != Liabilities (%v) + Equity (%v). Difference: %v",
				assets, liabilities, equity, difference),
		})
	}
}

// validateCashFlowReconciliation checks Beginning Cash + Net Change = Ending
// Cash. Missing operands only warn; a real mismatch is an error.
func validateCashFlowReconciliation(data map[string]any, results *models.ValidationResults) {
	beginning, okB := numberField(data, "beginning_cash")
	netChange, okN := numberField(data, "net_change_cash")
	ending, okE := numberField(data, "ending_cash")

	if !okB || !okN || !okE {
		results.Warnings = append(results.Warnings, models.ValidationIssue{
			Field:   "cash_flow",
			Message: "Missing cash flow components for reconciliation",
		})
		return
	}

	difference := math.Abs(ending - (beginning + netChange))
	if difference > flowTolerance(beginning) {
		results.Errors = append(results.Errors, models.ValidationIssue{
			Field: "cash_flow",
			Message: fmt.Sprintf("Cash flow does not reconcile. Beginning (%v) + Net Change (%v) != Ending (%v). Difference: %v",
				beginning, netChange, ending, difference),
		})
	}
}

// validateNetIncomeConsistency compares net income between the income
// statement and the cash flow statement. Adjustments can legitimately cause
// divergence, so a mismatch is only a warning.
func validateNetIncomeConsistency(data map[string]any, results *models.ValidationResults) {
	incomeNI, okI := numberField(data, "net_income")
	cashFlowNI, okC := numberField(data, "cash_flow_net_income")

	if !okI || !okC {
		results.Warnings = append(results.Warnings, models.ValidationIssue{
			Field:   "net_income",
			Message: "Missing net income from one or both statements",
		})
		return
	}

	difference := math.Abs(incomeNI - cashFlowNI)
	if difference > flowTolerance(incomeNI) {
		results.Warnings = append(results.Warnings, models.ValidationIssue{
			Field: "net_income",
			Message: fmt.Sprintf("Net Income mismatch: Income Statement (%v) vs Cash Flow (%v). Difference: %v",
				incomeNI, cashFlowNI, difference),
		})
	}
}

// validateFreeCashFlow checks FCF = Operating CF − |CapEx|. CapEx is usually
// reported negative, hence the absolute value.
func validateFreeCashFlow(data map[string]any, results *models.ValidationResults) {
	operating, okO := numberField(data, "operating_cash_flow")
	capex, okC := numberField(data, "capital_expenditures")
	fcf, okF := numberField(data, "free_cash_flow")

	if !okO || !okC || !okF {
		results.Warnings = append(results.Warnings, models.ValidationIssue{
			Field:   "fcf",
			Message: "Missing components for FCF validation",
		})
		return
	}

	difference := math.Abs(fcf - (operating - math.Abs(capex)))
	if difference > flowTolerance(operating) {
		results.Warnings = append(results.Warnings, models.ValidationIssue{
			Field: "fcf",
			Message: fmt.Sprintf("FCF calculation mismatch: Operating CF (%v) - CapEx (%v) != FCF (%v). Difference: %v",
				operating, capex, fcf, difference),
		})
	}
}

// numberField extracts a numeric value. LLM output arrives as generic JSON,
// so values may be float64, int, json.Number, or a {current, previous} pair,
// in which case current is used.
func numberField(data map[string]any, key string) (float64, bool) {
	value, ok := data[key]
	if !ok || value == nil {
		return 0, false
	}
	return asNumber(value)
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case map[string]any:
		if current, ok := v["current"]; ok {
			return asNumber(current)
		}
		return 0, false
	default:
		return 0, false
	}
}

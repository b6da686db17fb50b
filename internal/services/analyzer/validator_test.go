package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/psxlens/internal/models"
)

func completeStatement() map[string]any {
	return map[string]any{
		"revenue":             500000.0,
		"net_income":          100000.0,
		"total_assets":        1000000.0,
		"total_liabilities":   600000.0,
		"shareholders_equity": 400000.0,
		"operating_cash_flow": 150000.0,
		"free_cash_flow":      120000.0,
	}
}

func issuesFor(issues []models.ValidationIssue, field string) []models.ValidationIssue {
	var matched []models.ValidationIssue
	for _, issue := range issues {
		if issue.Field == field {
			matched = append(matched, issue)
		}
	}
	return matched
}

func TestValidateAllClean(t *testing.T) {
	results := ValidateAll(completeStatement())

	assert.True(t, results.IsValid)
	assert.Empty(t, results.Errors)
}

func TestValidateMissingCriticalMetric(t *testing.T) {
	data := completeStatement()
	delete(data, "free_cash_flow")

	results := ValidateAll(data)

	require.False(t, results.IsValid)
	critical := issuesFor(results.Errors, "critical_metrics")
	require.Len(t, critical, 1)
	assert.Contains(t, critical[0].Message, "free_cash_flow")
}

func TestValidateBalanceSheetTolerance(t *testing.T) {
	// 1% of assets = 10, so a gap of 9 passes and a gap of 50 fails.
	data := completeStatement()
	data["total_assets"] = 1000.0
	data["total_liabilities"] = 600.0
	data["shareholders_equity"] = 391.0

	results := ValidateAll(data)
	assert.True(t, results.IsValid)

	data["shareholders_equity"] = 350.0
	results = ValidateAll(data)

	require.False(t, results.IsValid)
	assert.NotEmpty(t, issuesFor(results.Errors, "balance_sheet"))
}

func TestValidateBalanceSheetMissingOperand(t *testing.T) {
	data := completeStatement()
	delete(data, "total_liabilities")

	results := ValidateAll(data)

	// Missing critical metric plus an unverifiable balance sheet.
	assert.False(t, results.IsValid)
	assert.NotEmpty(t, issuesFor(results.Errors, "critical_metrics"))
	assert.NotEmpty(t, issuesFor(results.Errors, "balance_sheet"))
}

func TestValidateCashFlowReconciliation(t *testing.T) {
	data := completeStatement()
	data["beginning_cash"] = 50000.0
	data["net_change_cash"] = 10000.0
	data["ending_cash"] = 60000.0

	results := ValidateAll(data)
	assert.True(t, results.IsValid)
	assert.Empty(t, issuesFor(results.Warnings, "cash_flow"))

	// A real mismatch escalates to an error, not a warning.
	data["ending_cash"] = 90000.0
	results = ValidateAll(data)

	assert.False(t, results.IsValid)
	assert.NotEmpty(t, issuesFor(results.Errors, "cash_flow"))
}

func TestValidateCashFlowMissingIsWarning(t *testing.T) {
	data := completeStatement()
	data["beginning_cash"] = 50000.0
	// ending_cash and net_change_cash absent.

	results := ValidateAll(data)

	assert.True(t, results.IsValid)
	assert.NotEmpty(t, issuesFor(results.Warnings, "cash_flow"))
}

func TestValidateFreeCashFlowDerivation(t *testing.T) {
	data := completeStatement()
	data["capital_expenditures"] = -30000.0

	// 150000 - 30000 matches free_cash_flow exactly.
	results := ValidateAll(data)
	assert.Empty(t, issuesFor(results.Warnings, "fcf"))

	data["free_cash_flow"] = 50000.0
	results = ValidateAll(data)

	assert.True(t, results.IsValid, "derivation mismatch is a warning only")
	assert.NotEmpty(t, issuesFor(results.Warnings, "fcf"))
}

func TestValidateNetIncomeConsistency(t *testing.T) {
	data := completeStatement()
	data["cash_flow_net_income"] = 100500.0

	// Within 1% of 100000: consistent.
	results := ValidateAll(data)
	assert.Empty(t, issuesFor(results.Warnings, "net_income"))

	data["cash_flow_net_income"] = 150000.0
	results = ValidateAll(data)

	assert.True(t, results.IsValid)
	assert.NotEmpty(t, issuesFor(results.Warnings, "net_income"))
}

func TestFlowTolerance(t *testing.T) {
	assert.Equal(t, 1000.0, flowTolerance(0))
	assert.Equal(t, 1000.0, flowTolerance(50000))
	assert.Equal(t, 2000.0, flowTolerance(200000))
	assert.Equal(t, 2000.0, flowTolerance(-200000))
}

func TestNumberFieldCoercions(t *testing.T) {
	data := map[string]any{
		"a": 1.5,
		"b": 42,
		"c": int64(7),
		"d": map[string]any{"current": 9.0, "previous": 4.0},
		"e": "not a number",
		"f": nil,
	}

	v, ok := numberField(data, "a")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = numberField(data, "b")
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)

	v, ok = numberField(data, "c")
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	v, ok = numberField(data, "d")
	assert.True(t, ok)
	assert.Equal(t, 9.0, v)

	_, ok = numberField(data, "e")
	assert.False(t, ok)

	_, ok = numberField(data, "f")
	assert.False(t, ok)

	_, ok = numberField(data, "missing")
	assert.False(t, ok)
}

package analyzer

import (
	"math"

	"github.com/bobmcallan/psxlens/internal/models"
)

// runCalculate executes the metric derivation step. Pure arithmetic, no LLM
// call; a missing operand silently skips that metric.
func (s *Service) runCalculate(state *models.AnalysisState) {
	if state.ExtractedData == nil {
		state.AddError("Cannot calculate metrics: extraction data is missing")
		state.CalculatedMetrics = map[string]float64{}
		s.states.Save(state, models.StepCalculate)
		return
	}

	extracted := state.ExtractedData
	calculated := map[string]float64{}

	var stockPrice float64
	if state.StockPrice != nil {
		stockPrice = *state.StockPrice
	}

	calculateShareMetrics(extracted, calculated, stockPrice)
	calculateValuationMetrics(extracted, calculated, stockPrice)
	calculateGrowthMetrics(extracted, calculated)
	calculateHealthMetrics(extracted, calculated)

	state.CalculatedMetrics = calculated
	s.logger.Debug().Str("symbol", state.Symbol).Int("metrics", len(calculated)).Msg("Calculated derived metrics")
	s.states.Save(state, models.StepCalculate)
}

func calculateShareMetrics(extracted map[string]any, calculated map[string]float64, stockPrice float64) {
	if _, ok := numberField(extracted, "shares_outstanding"); !ok {
		netIncome, okN := numberField(extracted, "net_income")
		eps, okE := numberField(extracted, "eps")
		if okN && okE && eps > 0 {
			calculated["shares_outstanding"] = netIncome / eps
		}
	}

	shares, hasShares := sharesOutstanding(extracted, calculated)

	if stockPrice > 0 && hasShares {
		calculated["market_cap"] = stockPrice * shares
	}

	if _, ok := numberField(extracted, "book_value_per_share"); !ok {
		equity, okE := numberField(extracted, "shareholders_equity")
		if okE && hasShares && shares > 0 {
			calculated["book_value_per_share"] = equity / shares
		}
	}
}

func calculateValuationMetrics(extracted map[string]any, calculated map[string]float64, stockPrice float64) {
	if eps, ok := numberField(extracted, "eps"); ok && stockPrice > 0 && eps > 0 {
		calculated["pe_ratio"] = stockPrice / eps
	}

	bookValue, hasBV := numberField(extracted, "book_value_per_share")
	if !hasBV {
		bookValue, hasBV = calculated["book_value_per_share"], hasMetric(calculated, "book_value_per_share")
	}
	if stockPrice > 0 && hasBV && bookValue > 0 {
		calculated["pb_ratio"] = stockPrice / bookValue
	}

	marketCap, hasMC := calculated["market_cap"], hasMetric(calculated, "market_cap")
	revenue, hasRev := numberField(extracted, "revenue")

	if hasMC && hasRev && revenue > 0 {
		calculated["ps_ratio"] = marketCap / revenue
	}

	ebitda, okEB := numberField(extracted, "ebitda")
	cash, okCash := numberField(extracted, "cash")
	totalDebt, okDebt := numberField(extracted, "total_debt")
	if hasMC && okDebt && okCash && okEB && ebitda > 0 {
		calculated["ev_ebitda"] = (marketCap + totalDebt - cash) / ebitda
	}

	if fcf, ok := numberField(extracted, "free_cash_flow"); ok && hasMC && marketCap > 0 {
		calculated["fcf_yield"] = (fcf / marketCap) * 100
	}
}

func calculateGrowthMetrics(extracted map[string]any, calculated map[string]float64) {
	if revenueData, ok := extracted["revenue"].(map[string]any); ok {
		current, okC := asNumber(revenueData["current"])
		previous, okP := asNumber(revenueData["previous"])
		if okC && okP && previous > 0 {
			calculated["revenue_growth_pct"] = ((current - previous) / previous) * 100
		}
	}

	netIncome, okN := numberField(extracted, "net_income")
	previous, okP := numberField(extracted, "net_income_previous")
	if okN && okP && previous > 0 {
		calculated["net_income_growth_pct"] = ((netIncome - previous) / previous) * 100
	}
}

func calculateHealthMetrics(extracted map[string]any, calculated map[string]float64) {
	netIncome, okNI := numberField(extracted, "net_income")
	equity, okEq := numberField(extracted, "shareholders_equity")
	if okNI && okEq && equity > 0 {
		calculated["roe"] = (netIncome / equity) * 100
	}

	totalAssets, okTA := numberField(extracted, "total_assets")
	if okNI && okTA && totalAssets > 0 {
		calculated["roa"] = (netIncome / totalAssets) * 100
	}

	totalDebt, okTD := numberField(extracted, "total_debt")
	if okTD && okEq && equity > 0 {
		calculated["debt_to_equity"] = totalDebt / equity
	}

	currentAssets, okCA := numberField(extracted, "current_assets")
	currentLiabilities, okCL := numberField(extracted, "current_liabilities")
	if okCA && okCL && currentLiabilities > 0 {
		calculated["current_ratio"] = currentAssets / currentLiabilities
	}
	if okCA && okCL {
		calculated["working_capital"] = currentAssets - currentLiabilities
	}

	revenue, okRev := numberField(extracted, "revenue")
	operatingIncome, okOI := numberField(extracted, "operating_income")
	if okOI && okRev && revenue > 0 {
		calculated["operating_margin"] = (operatingIncome / revenue) * 100
	}
	if okNI && okRev && revenue > 0 {
		calculated["net_margin"] = (netIncome / revenue) * 100
	}

	capex, okCX := numberField(extracted, "capital_expenditures")
	if okCX && okRev && revenue > 0 {
		calculated["capex_pct_revenue"] = (math.Abs(capex) / revenue) * 100
	}

	dividends, okDiv := numberField(extracted, "dividends_paid")
	if okDiv && okNI && netIncome > 0 {
		calculated["payout_ratio"] = (dividends / netIncome) * 100
	}

	fcf, okFCF := numberField(extracted, "free_cash_flow")
	if okDiv && okFCF && dividends != 0 {
		calculated["fcf_coverage"] = fcf / math.Abs(dividends)
	}

	cash, okCash := numberField(extracted, "cash")
	shares, hasShares := sharesOutstanding(extracted, calculated)
	if okCash && hasShares && shares > 0 {
		calculated["cash_per_share"] = cash / shares
	}

	if okTD && okTA && totalAssets > 0 {
		calculated["debt_to_assets"] = totalDebt / totalAssets
	}

	receivables, okAR := numberField(extracted, "accounts_receivable")
	if okAR && okCL && currentLiabilities > 0 {
		quickAssets := receivables
		if okCash {
			quickAssets += cash
		}
		calculated["quick_ratio"] = quickAssets / currentLiabilities
	}

	cogs, okCOGS := numberField(extracted, "cogs")
	if okCOGS && okRev && revenue > 0 {
		calculated["gross_margin_pct"] = ((revenue - cogs) / revenue) * 100
	}

	interest, okInt := numberField(extracted, "interest_expense")
	if okOI && okInt && interest > 0 {
		calculated["interest_coverage"] = operatingIncome / interest
	}
}

// sharesOutstanding prefers the extracted figure, falling back to the derived
// one from net_income/eps.
func sharesOutstanding(extracted map[string]any, calculated map[string]float64) (float64, bool) {
	if shares, ok := numberField(extracted, "shares_outstanding"); ok && shares > 0 {
		return shares, true
	}
	if shares, ok := calculated["shares_outstanding"]; ok && shares > 0 {
		return shares, true
	}
	return 0, false
}

func hasMetric(calculated map[string]float64, key string) bool {
	_, ok := calculated[key]
	return ok
}

package analyzer

import (
	"github.com/bobmcallan/psxlens/internal/models"
)

// runValidate executes the cross-statement consistency checks against the
// merged extracted and calculated data. If extraction produced nothing, the
// step short-circuits to an invalid result without running the checks.
func (s *Service) runValidate(state *models.AnalysisState) {
	if len(state.ExtractedData) == 0 {
		state.AddError("Cannot validate: extraction data is missing or empty")
		state.ValidationResults = &models.ValidationResults{
			IsValid:  false,
			Errors:   []models.ValidationIssue{{Field: "extracted_data", Message: "No data to validate"}},
			Warnings: []models.ValidationIssue{},
		}
		s.states.Save(state, models.StepValidate)
		return
	}

	merged := make(map[string]any, len(state.ExtractedData)+len(state.CalculatedMetrics))
	for k, v := range state.ExtractedData {
		merged[k] = v
	}
	for k, v := range state.CalculatedMetrics {
		merged[k] = v
	}

	state.ValidationResults = ValidateAll(merged)

	s.logger.Debug().
		Str("symbol", state.Symbol).
		Bool("is_valid", state.ValidationResults.IsValid).
		Int("errors", len(state.ValidationResults.Errors)).
		Int("warnings", len(state.ValidationResults.Warnings)).
		Msg("Validation complete")
	s.states.Save(state, models.StepValidate)
}

package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/psxlens/internal/llmjson"
	"github.com/bobmcallan/psxlens/internal/models"
)

const stepAnalyzeKey = "analyze"

// runAnalyze executes the qualitative analysis step inside the soft-fail
// boundary.
func (s *Service) runAnalyze(ctx context.Context, state *models.AnalysisState) {
	if err := s.analyze(ctx, state); err != nil {
		state.AddError(fmt.Sprintf("Analysis error: %v", err))
		state.AnalysisResults = map[string]any{}
	}
	s.states.Save(state, models.StepAnalyze)
}

func (s *Service) analyze(ctx context.Context, state *models.AnalysisState) error {
	analysisPrompt, err := s.prompts.LoadAnalysisPrompt(state.UserProfile)
	if err != nil {
		return err
	}

	messages := []models.ChatMessage{
		models.TextMessage("system", s.prompts.LoadSystemPrompt(state.UserProfile)),
		models.TextMessage("user", buildAnalysisUserPrompt(analysisPrompt, state)),
	}

	response, usage, err := s.llm.Call(ctx, messages, state.AnalysisModel, models.JSONResponseFormat())
	if err != nil {
		return err
	}

	results, err := llmjson.Parse(response)
	if err != nil {
		return fmt.Errorf("failed to parse analysis response: %w", err)
	}

	state.AnalysisResults = results
	state.TokenUsage.Record(stepAnalyzeKey, usage, state.AnalysisModel)

	s.logger.Debug().Str("symbol", state.Symbol).Str("model", state.AnalysisModel).Msg("Analysis complete")
	return nil
}

// buildAnalysisUserPrompt embeds the structured pipeline outputs into the
// analysis request.
func buildAnalysisUserPrompt(analysisPrompt string, state *models.AnalysisState) string {
	var sb strings.Builder
	sb.WriteString(analysisPrompt)

	sb.WriteString("\n\nExtracted Data:\n")
	sb.WriteString(marshalForPrompt(state.ExtractedData))

	sb.WriteString("\n\nCalculated Metrics:\n")
	sb.WriteString(marshalForPrompt(state.CalculatedMetrics))

	if statements := stringListField(state.ExtractedData, "dividend_statements"); len(statements) > 0 {
		sb.WriteString("\n\nDividend Policy Statements from the report:\n")
		for _, statement := range statements {
			sb.WriteString("- ")
			sb.WriteString(statement)
			sb.WriteString("\n")
		}
	}
	if statements := stringListField(state.ExtractedData, "investor_statements"); len(statements) > 0 {
		sb.WriteString("\n\nKey Investor Statements from the report:\n")
		for _, statement := range statements {
			sb.WriteString("- ")
			sb.WriteString(statement)
			sb.WriteString("\n")
		}
	}

	if strings.TrimSpace(state.StockContext) != "" {
		sb.WriteString("\n\nAdditional Financial Context (from exchange stock page):\n")
		sb.WriteString(state.StockContext)
		sb.WriteString("\n")
	}

	sb.WriteString("\n\nProvide investor-focused analysis as structured JSON. Return ONLY valid JSON, no additional text.")
	return sb.String()
}

func marshalForPrompt(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func stringListField(data map[string]any, key string) []string {
	if data == nil {
		return nil
	}
	return toStringList(data[key])
}

package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/psxlens/internal/llmjson"
	"github.com/bobmcallan/psxlens/internal/models"
)

const stepExtractKey = "extract"

// minTextLength is the threshold below which extracted PDF text is considered
// unusable (scanned document) and extraction switches to the multimodal path.
const minTextLength = 100

// runExtract executes the extraction step inside the soft-fail boundary.
func (s *Service) runExtract(ctx context.Context, state *models.AnalysisState) {
	if err := s.extract(ctx, state); err != nil {
		state.AddError(fmt.Sprintf("Extraction error: %v", err))
		state.ExtractedData = map[string]any{}
	}
	s.states.Save(state, models.StepExtract)
}

func (s *Service) extract(ctx context.Context, state *models.AnalysisState) error {
	model := state.ExtractionModel

	var (
		data      map[string]any
		usage     models.TokenCounts
		usedModel string
		err       error
	)

	if s.catalog.IsMultimodal(model) || len(strings.TrimSpace(state.PDFText)) < minTextLength {
		if state.PDFPath == "" {
			return fmt.Errorf("PDF text too short for text extraction and no PDF path available for multimodal extraction")
		}
		data, usage, usedModel, err = s.extractMultimodal(ctx, state, model)
	} else {
		data, usage, err = s.extractFromText(ctx, state, model)
		usedModel = model
	}
	if err != nil {
		return err
	}

	normalizeStatementLists(data)
	state.ExtractedData = data
	state.TokenUsage.Record(stepExtractKey, usage, usedModel)

	s.logger.Debug().Str("symbol", state.Symbol).Str("model", usedModel).Int("fields", len(data)).Msg("Extraction complete")
	return nil
}

// extractFromText performs a structured-JSON extraction call over already
// extracted statement text.
func (s *Service) extractFromText(ctx context.Context, state *models.AnalysisState, model string) (map[string]any, models.TokenCounts, error) {
	extractionPrompt, err := s.prompts.LoadExtractionPrompt()
	if err != nil {
		return nil, models.TokenCounts{}, err
	}

	messages := []models.ChatMessage{
		models.TextMessage("system", s.prompts.LoadSystemPrompt(nil)),
		models.TextMessage("user", buildExtractionUserPrompt(extractionPrompt, state)),
	}

	response, usage, err := s.llm.Call(ctx, messages, model, models.JSONResponseFormat())
	if err != nil {
		return nil, usage, err
	}

	data, err := llmjson.Parse(response)
	if err != nil {
		return nil, usage, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return data, usage, nil
}

// extractMultimodal sends the PDF itself to a multimodal model, trying the
// preferred model first when it can accept attachments, then the configured
// fallback list. Quota errors and other failures both move on to the next
// candidate; only the last error surfaces when every model fails.
func (s *Service) extractMultimodal(ctx context.Context, state *models.AnalysisState, preferred string) (map[string]any, models.TokenCounts, string, error) {
	extractionPrompt, err := s.prompts.LoadExtractionPrompt()
	if err != nil {
		return nil, models.TokenCounts{}, "", err
	}

	messages := []models.ChatMessage{
		models.TextMessage("system", s.prompts.LoadSystemPrompt(nil)),
		models.TextMessage("user", buildExtractionUserPrompt(extractionPrompt, state)+
			"\n\nThe financial statement PDF is attached. Extract the data directly from the document."),
	}

	// A text-only preferred model cannot read the attachment; skip straight
	// to the multimodal list.
	if !s.catalog.IsMultimodal(preferred) {
		preferred = ""
	}

	candidates := multimodalCandidates(preferred, s.catalog.Multimodal)
	if len(candidates) == 0 {
		return nil, models.TokenCounts{}, "", fmt.Errorf("no multimodal models configured for PDF extraction")
	}

	var lastErr error
	for _, model := range candidates {
		response, usage, err := s.llm.CallWithPDF(ctx, state.PDFPath, messages, model, models.JSONResponseFormat())
		if err != nil {
			if isQuotaError(err) {
				s.logger.Warn().Str("model", model).Msg("Quota exceeded, trying next multimodal model")
			} else {
				s.logger.Warn().Err(err).Str("model", model).Msg("Multimodal extraction failed, trying next model")
			}
			lastErr = err
			continue
		}

		data, err := llmjson.Parse(response)
		if err != nil {
			s.logger.Warn().Err(err).Str("model", model).Msg("Multimodal response unparseable, trying next model")
			lastErr = err
			continue
		}

		return data, usage, model, nil
	}

	return nil, models.TokenCounts{}, "", fmt.Errorf("all multimodal models failed for PDF extraction: %w", lastErr)
}

// multimodalCandidates orders the preferred model ahead of the fallback list,
// dropping duplicates.
func multimodalCandidates(preferred string, fallbacks []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, model := range append([]string{preferred}, fallbacks...) {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		out = append(out, model)
	}
	return out
}

func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

// buildExtractionUserPrompt assembles the extraction request around the
// statement text, with hard delimiters so the model cannot confuse document
// content with instructions.
func buildExtractionUserPrompt(extractionPrompt string, state *models.AnalysisState) string {
	delimiter := strings.Repeat("=", 80)

	priceLine := ""
	if state.StockPrice != nil {
		if state.Currency != "" {
			priceLine = fmt.Sprintf("\n\n**Current Stock Price: %s %.2f**", state.Currency, *state.StockPrice)
		} else {
			priceLine = fmt.Sprintf("\n\n**Current Stock Price: %.2f**", *state.StockPrice)
		}
	}

	var sb strings.Builder
	sb.WriteString(extractionPrompt)
	sb.WriteString(priceLine)
	if strings.TrimSpace(state.PDFText) != "" {
		sb.WriteString("\n\n")
		sb.WriteString(delimiter)
		sb.WriteString("\nEXTRACTED FINANCIAL STATEMENT TEXT (PDF has already been converted to text):\n")
		sb.WriteString(delimiter)
		sb.WriteString("\n\n")
		sb.WriteString(state.PDFText)
		sb.WriteString("\n\n")
		sb.WriteString(delimiter)
		sb.WriteString("\nEND OF EXTRACTED TEXT\n")
		sb.WriteString(delimiter)
	}
	sb.WriteString(`

**YOUR TASK:**
Extract all financial data and return it as a valid JSON object matching the required schema.

**CRITICAL REQUIREMENTS:**
1. Return ONLY valid JSON - no markdown code blocks, no explanations, no additional text
2. Use numbers (not strings) for all monetary values
3. Use null for missing values (never use 0 or empty string as placeholder)
4. Search ALL sections: Income Statement, Balance Sheet, Cash Flow Statement, Notes
5. Extract exact values as stated in the document - do not estimate or calculate unless explicitly instructed

Return the JSON object now:`)

	return sb.String()
}

// normalizeStatementLists coerces dividend_statements and investor_statements
// to string slices. Models sometimes return a bare string or omit them.
func normalizeStatementLists(data map[string]any) {
	for _, key := range []string{"dividend_statements", "investor_statements"} {
		data[key] = toStringList(data[key])
	}
}

func toStringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}
		}
		return []string{v}
	default:
		return []string{}
	}
}

package psx

import (
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/bobmcallan/psxlens/internal/models"
)

// ExtractText extracts plain text from a local PDF file. Scanned documents
// legitimately yield little or no text; callers use the short-text signal to
// switch to multimodal extraction rather than treating it as fatal here.
func (c *Client) ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", &models.ExtractionError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	var sb strings.Builder
	totalPages := r.NumPage()

	for i := 1; i <= totalPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// DetectCurrency guesses the reporting currency from statement text.
func DetectCurrency(pdfText string) string {
	upper := strings.ToUpper(pdfText)
	switch {
	case strings.Contains(upper, "PKR") || strings.Contains(upper, "PAKISTAN"):
		return "PKR"
	case strings.Contains(upper, "USD") || strings.Contains(pdfText, "$"):
		return "USD"
	case strings.Contains(upper, "EUR") || strings.Contains(pdfText, "€"):
		return "EUR"
	case strings.Contains(upper, "GBP") || strings.Contains(pdfText, "£"):
		return "GBP"
	default:
		return ""
	}
}

// Package interfaces defines service contracts for PSXLens
package interfaces

import (
	"context"

	"github.com/bobmcallan/psxlens/internal/models"
)

// LLMClient sends chat-completion requests to the LLM gateway.
// Neither call retries; fallback across models is the caller's policy.
type LLMClient interface {
	// Call sends a text-only chat completion and returns the raw content
	// plus token usage. Usage fields are zero when the gateway omits them.
	Call(ctx context.Context, messages []models.ChatMessage, model string, format *models.ResponseFormat) (string, models.TokenCounts, error)

	// CallWithPDF embeds the file at pdfPath as a base64 attachment in each
	// message and sends a multimodal chat completion.
	CallWithPDF(ctx context.Context, pdfPath string, messages []models.ChatMessage, model string, format *models.ResponseFormat) (string, models.TokenCounts, error)
}

// DocumentSource lists and fetches company report documents.
type DocumentSource interface {
	// GetLatestReport returns the newest published report for a symbol, or
	// nil when none exists.
	GetLatestReport(ctx context.Context, symbol string) (*models.FinancialReport, error)

	// DownloadPDF downloads a report PDF (cached on disk) and returns the
	// local file path.
	DownloadPDF(ctx context.Context, url, symbol string) (string, error)

	// ExtractText extracts plain text from a local PDF. May legitimately
	// return empty or very short text, which triggers the multimodal
	// extraction path.
	ExtractText(path string) (string, error)
}

// PriceSource provides best-effort current stock prices.
type PriceSource interface {
	// GetCurrentPrice returns the current price for a symbol, or nil when
	// unavailable. The pipeline proceeds with a nil price on failure.
	GetCurrentPrice(ctx context.Context, symbol string) (*float64, error)
}

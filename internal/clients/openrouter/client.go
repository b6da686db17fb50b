// Package openrouter provides a client for the OpenRouter chat-completion API
package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

const (
	DefaultBaseURL      = "https://openrouter.ai/api/v1"
	DefaultTimeout      = 300 * time.Second
	DefaultMaxTokens    = 8000
	DefaultPDFMaxTokens = 16000
)

// Client implements the LLMClient interface against OpenRouter. It does not
// retry; model fallback is the caller's policy.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	maxTokens    int
	pdfMaxTokens int
	logger       *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxTokens sets the completion budget for text calls
func WithMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// WithPDFMaxTokens sets the completion budget for PDF calls
func WithPDFMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) {
		c.pdfMaxTokens = maxTokens
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new OpenRouter client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	c := &Client{
		baseURL:      DefaultBaseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		maxTokens:    DefaultMaxTokens,
		pdfMaxTokens: DefaultPDFMaxTokens,
		logger:       common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type chatRequest struct {
	Model          string                 `json:"model"`
	Messages       []models.ChatMessage   `json:"messages"`
	Temperature    float64                `json:"temperature"`
	MaxTokens      int                    `json:"max_tokens"`
	ResponseFormat *models.ResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Call sends a text chat completion and returns the content with token usage.
func (c *Client) Call(ctx context.Context, messages []models.ChatMessage, model string, format *models.ResponseFormat) (string, models.TokenCounts, error) {
	c.logger.Debug().Str("model", model).Int("messages", len(messages)).Msg("Calling OpenRouter")

	req := chatRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    0,
		MaxTokens:      c.maxTokens,
		ResponseFormat: format,
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", models.TokenCounts{}, err
	}

	if len(resp.Choices) == 0 {
		return "", models.TokenCounts{}, &models.LLMAnalysisError{Op: "openrouter call", Detail: "no choices in response"}
	}

	return resp.Choices[0].Message.Content, usageOf(resp), nil
}

// CallWithPDF embeds the PDF at pdfPath as a base64 data URL in every message
// and sends a multimodal chat completion. A finish_reason of "length" is a
// hard truncation error, never returned as partial content.
func (c *Client) CallWithPDF(ctx context.Context, pdfPath string, messages []models.ChatMessage, model string, format *models.ResponseFormat) (string, models.TokenCounts, error) {
	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", models.TokenCounts{}, &models.LLMAnalysisError{Op: "read PDF", Detail: pdfPath, Err: err}
	}

	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)
	filePart := models.ContentPart{
		Type: "file",
		File: &models.FilePart{
			Filename: filepath.Base(pdfPath),
			FileData: dataURL,
		},
	}

	attached := make([]models.ChatMessage, len(messages))
	for i, msg := range messages {
		attached[i] = models.ChatMessage{
			Role:    msg.Role,
			Content: append(normalizeContent(msg.Content), filePart),
		}
	}

	c.logger.Debug().Str("model", model).Str("pdf", pdfPath).Int("pdf_bytes", len(pdfBytes)).Msg("Calling OpenRouter with PDF")

	req := chatRequest{
		Model:          model,
		Messages:       attached,
		Temperature:    0,
		MaxTokens:      c.pdfMaxTokens,
		ResponseFormat: format,
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", models.TokenCounts{}, err
	}

	if len(resp.Choices) == 0 {
		return "", models.TokenCounts{}, &models.LLMAnalysisError{Op: "openrouter PDF call", Detail: "no choices in response"}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return "", models.TokenCounts{}, &models.LLMAnalysisError{
			Op:     "openrouter PDF call",
			Detail: fmt.Sprintf("response truncated at max_tokens limit, %d characters returned", len(choice.Message.Content)),
		}
	}
	if choice.Message.Content == "" {
		return "", models.TokenCounts{}, &models.LLMAnalysisError{
			Op:     "openrouter PDF call",
			Detail: fmt.Sprintf("empty response, finish_reason=%q", choice.FinishReason),
		}
	}

	return choice.Message.Content, usageOf(resp), nil
}

func (c *Client) send(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &models.LLMAnalysisError{Op: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &models.LLMAnalysisError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &models.LLMAnalysisError{Op: "openrouter request", Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &models.LLMAnalysisError{Op: "read response", Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &models.LLMAnalysisError{
			Op:     "openrouter request",
			Detail: fmt.Sprintf("status %d: %s", httpResp.StatusCode, preview(respBody, 200)),
		}
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &models.LLMAnalysisError{Op: "decode response", Detail: preview(respBody, 200), Err: err}
	}

	return &resp, nil
}

// normalizeContent coerces any message content shape into a list of parts so
// a file attachment can be appended uniformly.
func normalizeContent(content any) []models.ContentPart {
	switch v := content.(type) {
	case string:
		return []models.ContentPart{{Type: "text", Text: v}}
	case []models.ContentPart:
		return append([]models.ContentPart(nil), v...)
	case models.ContentPart:
		return []models.ContentPart{v}
	default:
		return []models.ContentPart{{Type: "text", Text: fmt.Sprint(v)}}
	}
}

func usageOf(resp *chatResponse) models.TokenCounts {
	if resp.Usage == nil {
		return models.TokenCounts{}
	}
	return models.TokenCounts{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
}

func preview(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

// Ensure Client implements LLMClient
var _ interfaces.LLMClient = (*Client)(nil)

// Disabled returns an LLMClient whose calls always fail with reason. It stands
// in when the real client cannot be constructed (no API key) so the rest of
// the service graph still starts; analysis requests then fail through the
// pipeline's normal error path instead of dereferencing a nil client.
func Disabled(reason string) interfaces.LLMClient {
	return disabledClient{reason: reason}
}

type disabledClient struct {
	reason string
}

func (d disabledClient) Call(_ context.Context, _ []models.ChatMessage, _ string, _ *models.ResponseFormat) (string, models.TokenCounts, error) {
	return "", models.TokenCounts{}, fmt.Errorf("openrouter client unavailable: %s", d.reason)
}

func (d disabledClient) CallWithPDF(_ context.Context, _ string, _ []models.ChatMessage, _ string, _ *models.ResponseFormat) (string, models.TokenCounts, error) {
	return "", models.TokenCounts{}, fmt.Errorf("openrouter client unavailable: %s", d.reason)
}

var _ interfaces.LLMClient = disabledClient{}

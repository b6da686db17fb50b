package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/psxlens/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)
	return client
}

func writeTestPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644))
	return path
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
}

func TestDisabledClientFailsCalls(t *testing.T) {
	client := Disabled("openrouter API key is required")

	_, _, err := client.Call(context.Background(), nil, "openai/gpt-4o", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Contains(t, err.Error(), "API key is required")

	_, _, err = client.CallWithPDF(context.Background(), "/tmp/report.pdf", nil, "openai/gpt-4o", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestCall(t *testing.T) {
	var captured chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"revenue": 100}`}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
		})
	})

	messages := []models.ChatMessage{models.TextMessage("user", "extract the data")}
	content, usage, err := client.Call(context.Background(), messages, "openai/gpt-4o-mini", models.JSONResponseFormat())
	require.NoError(t, err)

	assert.Equal(t, `{"revenue": 100}`, content)
	assert.Equal(t, models.TokenCounts{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}, usage)

	assert.Equal(t, "openai/gpt-4o-mini", captured.Model)
	assert.Equal(t, float64(0), captured.Temperature)
	assert.Equal(t, DefaultMaxTokens, captured.MaxTokens)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestCallMissingUsageDefaultsToZero(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}, "finish_reason": "stop"},
			},
		})
	})

	_, usage, err := client.Call(context.Background(), []models.ChatMessage{models.TextMessage("user", "hi")}, "m", nil)
	require.NoError(t, err)
	assert.Equal(t, models.TokenCounts{}, usage)
}

func TestCallEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, _, err := client.Call(context.Background(), []models.ChatMessage{models.TextMessage("user", "hi")}, "m", nil)
	require.Error(t, err)

	var llmErr *models.LLMAnalysisError
	require.ErrorAs(t, err, &llmErr)
}

func TestCallHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
	})

	_, _, err := client.Call(context.Background(), []models.ChatMessage{models.TextMessage("user", "hi")}, "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCallWithPDFAttachesFilePart(t *testing.T) {
	var rawBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rawBody))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"ok": true}`}, "finish_reason": "stop"},
			},
		})
	})

	pdfPath := writeTestPDF(t)
	messages := []models.ChatMessage{models.TextMessage("user", "extract from the attached report")}
	content, _, err := client.CallWithPDF(context.Background(), pdfPath, messages, "google/gemini-3-flash-preview", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, content)

	assert.Equal(t, float64(DefaultPDFMaxTokens), rawBody["max_tokens"])

	msgs := rawBody["messages"].([]any)
	require.Len(t, msgs, 1)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)

	textPart := parts[0].(map[string]any)
	assert.Equal(t, "text", textPart["type"])
	assert.Equal(t, "extract from the attached report", textPart["text"])

	filePart := parts[1].(map[string]any)
	assert.Equal(t, "file", filePart["type"])
	file := filePart["file"].(map[string]any)
	assert.Equal(t, "report.pdf", file["filename"])
	assert.True(t, strings.HasPrefix(file["file_data"].(string), "data:application/pdf;base64,"))
}

func TestCallWithPDFNormalizesPartsContent(t *testing.T) {
	var rawBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rawBody))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}, "finish_reason": "stop"},
			},
		})
	})

	messages := []models.ChatMessage{{
		Role:    "user",
		Content: []models.ContentPart{{Type: "text", Text: "first"}, {Type: "text", Text: "second"}},
	}}
	_, _, err := client.CallWithPDF(context.Background(), writeTestPDF(t), messages, "m", nil)
	require.NoError(t, err)

	parts := rawBody["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, "file", parts[2].(map[string]any)["type"])
}

func TestCallWithPDFLengthFinishIsTruncation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"partial`}, "finish_reason": "length"},
			},
		})
	})

	_, _, err := client.CallWithPDF(context.Background(), writeTestPDF(t), []models.ChatMessage{models.TextMessage("user", "go")}, "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestCallWithPDFMissingFile(t *testing.T) {
	client, err := NewClient("test-key")
	require.NoError(t, err)

	_, _, err = client.CallWithPDF(context.Background(), "/nonexistent/report.pdf", []models.ChatMessage{models.TextMessage("user", "go")}, "m", nil)
	require.Error(t, err)

	var llmErr *models.LLMAnalysisError
	require.ErrorAs(t, err, &llmErr)
}

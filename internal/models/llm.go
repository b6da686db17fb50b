package models

// ChatMessage is a single message in an OpenRouter chat-completion request.
// Content is either a plain string or a []ContentPart once a file attachment
// has been injected.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multi-part message content list.
type ContentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *FilePart `json:"file,omitempty"`
}

// FilePart carries a base64-encoded document as a data URL.
type FilePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// TextMessage builds a plain text chat message.
func TextMessage(role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

// ResponseFormat requests a structured output mode from the gateway.
type ResponseFormat struct {
	Type string `json:"type"`
}

// JSONResponseFormat requests a JSON object response.
func JSONResponseFormat() *ResponseFormat {
	return &ResponseFormat{Type: "json_object"}
}

// TokenCounts holds token accounting for a single LLM call.
// All fields default to zero when the gateway omits usage data.
type TokenCounts struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates counts from another call.
func (t *TokenCounts) Add(other TokenCounts) {
	t.PromptTokens += other.PromptTokens
	t.CompletionTokens += other.CompletionTokens
	t.TotalTokens += other.TotalTokens
}

// StepTokenUsage records the usage of one pipeline step, tagged with the
// concrete model that served it.
type StepTokenUsage struct {
	TokenCounts
	Model string `json:"model"`
}

// TokenUsage aggregates per-step and cumulative token accounting for one
// analysis run. Cumulative always equals the sum of all step entries.
type TokenUsage struct {
	Steps      map[string]StepTokenUsage `json:"steps"`
	Cumulative TokenCounts               `json:"cumulative"`
}

// NewTokenUsage creates an empty usage record.
func NewTokenUsage() *TokenUsage {
	return &TokenUsage{Steps: make(map[string]StepTokenUsage)}
}

// Record stores usage for a step and folds it into the cumulative totals.
func (u *TokenUsage) Record(step string, counts TokenCounts, model string) {
	if u.Steps == nil {
		u.Steps = make(map[string]StepTokenUsage)
	}
	u.Steps[step] = StepTokenUsage{TokenCounts: counts, Model: model}
	u.Cumulative.Add(counts)
}

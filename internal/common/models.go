package common

// ModelRole identifies the logical role a model serves in the pipeline.
type ModelRole string

// Logical model roles.
const (
	RoleExtraction ModelRole = "extraction"
	RoleAnalysis   ModelRole = "analysis"
	RoleDecision   ModelRole = "decision"
)

// ModelAuto is the user-facing token that resolves to the role's configured
// default model.
const ModelAuto = "auto"

// ModelsConfig maps logical roles to concrete gateway model identifiers and
// carries the allow-list of models that accept embedded file attachments.
type ModelsConfig struct {
	Extraction string   `toml:"extraction"`
	Analysis   string   `toml:"analysis"`
	Decision   string   `toml:"decision"`
	Multimodal []string `toml:"multimodal"`
}

// NewDefaultModelsConfig returns the default role-to-model mapping.
// Extraction favors a fast, cheap model for structured JSON output; analysis
// and decision favor stronger reasoning.
func NewDefaultModelsConfig() ModelsConfig {
	return ModelsConfig{
		Extraction: "openai/gpt-4o-mini",
		Analysis:   "openai/gpt-4o",
		Decision:   "openai/gpt-4o",
		Multimodal: []string{
			"google/gemini-3-pro-preview",
			"google/gemini-3-flash-preview",
		},
	}
}

// defaultFor returns the configured default model for a role.
func (m *ModelsConfig) defaultFor(role ModelRole) string {
	switch role {
	case RoleAnalysis:
		return m.Analysis
	case RoleDecision:
		return m.Decision
	default:
		return m.Extraction
	}
}

// Resolve maps a user-supplied model value to a concrete model id. Empty and
// "auto" resolve to the role's default; anything else passes through
// unchanged.
func (m *ModelsConfig) Resolve(role ModelRole, userValue string) string {
	if userValue == "" || userValue == ModelAuto {
		return m.defaultFor(role)
	}
	return userValue
}

// Normalize is Resolve applied for cache/state key construction. "auto" must
// always normalize to the same concrete id the pipeline will use, or cache
// lookups and state snapshots desynchronize.
func (m *ModelsConfig) Normalize(value string, role ModelRole) string {
	return m.Resolve(role, value)
}

// IsMultimodal reports whether a model accepts embedded file attachments.
func (m *ModelsConfig) IsMultimodal(modelID string) bool {
	for _, id := range m.Multimodal {
		if id == modelID {
			return true
		}
	}
	return false
}

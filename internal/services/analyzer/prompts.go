// Package analyzer runs the multi-step financial statement analysis pipeline:
// extract, calculate, validate, analyze, format.
package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bobmcallan/psxlens/internal/models"
)

const (
	systemPromptFile     = "system_prompt.md"
	extractionPromptFile = "extraction_prompt.md"
	analysisPromptFile   = "analysis_prompt.md"

	// Used when no system prompt file is installed; the pipeline still runs.
	builtinSystemPrompt = "You are a financial data extraction and analysis specialist. Extract accurate numerical data and provide insightful analysis."
)

// PromptManager loads the three prompt templates once and caches them for the
// life of the process.
type PromptManager struct {
	dir string

	mu         sync.Mutex
	system     string
	extraction string
	analysis   string
}

// NewPromptManager creates a prompt manager over the given directory.
func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{dir: dir}
}

// LoadSystemPrompt returns the system prompt, falling back to a built-in
// instruction when the file is missing. A supplied user profile appends a
// tailoring context block.
func (p *PromptManager) LoadSystemPrompt(profile *models.UserProfile) string {
	p.mu.Lock()
	if p.system == "" {
		data, err := os.ReadFile(filepath.Join(p.dir, systemPromptFile))
		if err != nil {
			p.system = builtinSystemPrompt
		} else {
			p.system = string(data)
		}
	}
	prompt := p.system
	p.mu.Unlock()

	return prompt + profileContext(profile)
}

// LoadExtractionPrompt returns the extraction prompt. A missing file is a
// hard failure: extraction cannot proceed without its schema instructions.
func (p *PromptManager) LoadExtractionPrompt() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.extraction == "" {
		path := filepath.Join(p.dir, extractionPromptFile)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("extraction prompt file not found: %s: %w", path, err)
		}
		p.extraction = string(data)
	}
	return p.extraction, nil
}

// LoadAnalysisPrompt returns the analysis prompt, with an optional profile
// context block appended. A missing file is a hard failure.
func (p *PromptManager) LoadAnalysisPrompt(profile *models.UserProfile) (string, error) {
	p.mu.Lock()
	if p.analysis == "" {
		path := filepath.Join(p.dir, analysisPromptFile)
		data, err := os.ReadFile(path)
		if err != nil {
			p.mu.Unlock()
			return "", fmt.Errorf("analysis prompt file not found: %s: %w", path, err)
		}
		p.analysis = string(data)
	}
	prompt := p.analysis
	p.mu.Unlock()

	return prompt + profileContext(profile), nil
}

// profileContext renders the "User Profile Context" block. Only present
// fields are listed; an empty profile yields no block at all.
func profileContext(profile *models.UserProfile) string {
	if profile.Empty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\n## User Profile Context\n")
	if profile.Age > 0 {
		fmt.Fprintf(&sb, "- Age: %d\n", profile.Age)
	}
	if profile.RiskTolerance != "" {
		fmt.Fprintf(&sb, "- Risk Tolerance: %s\n", profile.RiskTolerance)
	}
	if profile.InvestmentStyle != "" {
		fmt.Fprintf(&sb, "- Investment Style: %s\n", profile.InvestmentStyle)
	}
	if profile.InvestmentHorizon != "" {
		fmt.Fprintf(&sb, "- Investment Horizon: %s\n", profile.InvestmentHorizon)
	}
	if profile.InvestmentGoals != "" {
		fmt.Fprintf(&sb, "- Investment Goals: %s\n", profile.InvestmentGoals)
	}
	sb.WriteString("\nTailor the analysis to this investor profile where relevant.")
	return sb.String()
}

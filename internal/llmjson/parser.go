// Package llmjson recovers a JSON object from raw LLM text output that may
// carry markdown fences, surrounding prose, or truncation.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ParseError reports why no JSON object could be recovered. Offset and
// Context point at the failing position in the cleaned text.
type ParseError struct {
	Msg       string
	Offset    int64
	Context   string
	Length    int
	Truncated bool
}

func (e *ParseError) Error() string {
	if e.Truncated {
		return fmt.Sprintf("llmjson: %s (position %d of %d, ends with %q)", e.Msg, e.Offset, e.Length, e.Context)
	}
	return fmt.Sprintf("llmjson: %s (position %d, response length %d, context %q)", e.Msg, e.Offset, e.Length, e.Context)
}

// Parse extracts a JSON object from a raw LLM response. It strips a fenced
// code block, slices to the outermost brace pair, and falls back through
// progressively more aggressive recovery passes. Truncated responses fail
// with an explicit diagnosis instead of a partial object.
func Parse(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Msg: "empty response"}
	}

	clean := stripFence(strings.TrimSpace(raw))

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")

	if start >= 0 && end <= start {
		// No closing brace. When the text ends inside a value the response
		// was cut off mid-generation.
		lastComma := strings.LastIndex(clean, ",")
		lastColon := strings.LastIndex(clean, ":")
		if lastColon > lastComma && lastColon > start {
			return nil, &ParseError{
				Msg:       "response appears truncated, no closing brace found",
				Offset:    int64(len(clean)),
				Context:   tail(clean, 100),
				Length:    len(clean),
				Truncated: true,
			}
		}
	}

	if start < 0 || end <= start {
		if m, ok := synthesizeFromLines(clean); ok {
			return m, nil
		}
		return nil, &ParseError{
			Msg:     "no JSON object found",
			Context: head(clean, 200),
			Length:  len(clean),
		}
	}

	clean = strings.TrimSpace(clean[start : end+1])

	var result map[string]any
	err := json.Unmarshal([]byte(clean), &result)
	if err == nil {
		return result, nil
	}

	offset := errorOffset(err)
	if offset >= int64(len(clean))-10 {
		return nil, &ParseError{
			Msg:       "JSON appears truncated",
			Offset:    offset,
			Context:   tail(clean, 200),
			Length:    len(clean),
			Truncated: true,
		}
	}

	if m, ok := parseBalancedBlock(raw); ok {
		return m, nil
	}

	return nil, &ParseError{
		Msg:     fmt.Sprintf("JSON parsing failed after all cleanup attempts: %v", err),
		Offset:  offset,
		Context: head(clean, 500),
		Length:  len(raw),
	}
}

// stripFence removes a single markdown code fence, preferring ```json.
func stripFence(s string) string {
	for _, marker := range []string{"```json", "```"} {
		if idx := strings.Index(s, marker); idx >= 0 {
			body := s[idx+len(marker):]
			if end := strings.Index(body, "```"); end >= 0 {
				return strings.TrimSpace(body[:end])
			}
			return s
		}
	}
	return s
}

// synthesizeFromLines wraps bullet or bare key:value lines in braces. Best
// effort for near-miss output that dropped the object delimiters entirely.
func synthesizeFromLines(s string) (map[string]any, bool) {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		stripped = strings.TrimSpace(strings.TrimPrefix(stripped, "- "))
		lines = append(lines, stripped)
	}
	if len(lines) == 0 {
		return nil, false
	}

	candidate := strings.Join(lines, "\n")
	if !strings.HasPrefix(candidate, "{") {
		candidate = "{\n" + candidate
	}
	if !strings.HasSuffix(strings.TrimRight(candidate, " \t\r\n"), "}") {
		candidate = strings.TrimRight(strings.TrimRight(candidate, " \t\r\n"), ",") + "\n}"
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, false
	}
	return result, true
}

// parseBalancedBlock re-scans the original response line by line, counting
// brace depth from the first opening brace to isolate a structurally
// balanced block.
func parseBalancedBlock(raw string) (map[string]any, bool) {
	var block []string
	depth := 0
	inJSON := false

	for _, line := range strings.Split(raw, "\n") {
		if !inJSON {
			stripped := strings.TrimSpace(line)
			pos := strings.Index(stripped, "{")
			if pos < 0 {
				continue
			}
			frag := stripped[pos:]
			block = []string{frag}
			depth = strings.Count(frag, "{") - strings.Count(frag, "}")
			inJSON = true
			if depth <= 0 {
				var result map[string]any
				if err := json.Unmarshal([]byte(frag), &result); err == nil {
					return result, true
				}
			}
			continue
		}
		block = append(block, line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			break
		}
	}

	if len(block) == 0 {
		return nil, false
	}

	candidate := strings.Join(block, "\n")
	var result map[string]any
	if err := json.Unmarshal([]byte(candidate), &result); err == nil {
		return result, true
	}

	// Trim to the outermost braces and let the repairer fix dangling commas
	// or unquoted keys as a last resort.
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate = candidate[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &result); err == nil {
		return result, true
	}
	repaired, err := jsonrepair.RepairJSON(candidate)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, false
	}
	return result, true
}

func errorOffset(err error) int64 {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return syn.Offset
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		return typ.Offset
	}
	return 0
}

func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func tail(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

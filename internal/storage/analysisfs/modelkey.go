// Package analysisfs persists analysis results and pipeline snapshots on the
// local filesystem under data/results/{SYMBOL}/{model_key}/.
package analysisfs

import (
	"regexp"
	"strings"
)

var (
	unsafeChars       = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	repeatUnderscores = regexp.MustCompile(`_+`)
	nameUnsafe        = regexp.MustCompile(`[^\w\s-]`)
	nameSeparators    = regexp.MustCompile(`[\s_-]+`)
)

// ModelKey derives the directory key for an extraction/analysis model pair.
// Both the result cache and the state store use this key, so a cached result
// and its run snapshots always land in the same directory. Callers must
// resolve "auto" to a concrete model id before calling, or cache lookups for
// the same effective pair will miss.
func ModelKey(extractionModel, analysisModel string) string {
	if extractionModel == "" {
		extractionModel = "default"
	}
	if analysisModel == "" {
		analysisModel = "default"
	}

	key := extractionModel + "_" + analysisModel
	key = strings.ReplaceAll(key, "/", "_")
	key = unsafeChars.ReplaceAllString(key, "_")
	key = repeatUnderscores.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

// StatementName builds a filesystem-friendly name identifying one published
// statement, from its report type and period.
func StatementName(reportType, periodEnded string) string {
	typePart := sanitizeNamePart(reportType)
	periodPart := sanitizeNamePart(periodEnded)
	if periodPart != "" {
		return typePart + "_" + periodPart
	}
	return typePart
}

func sanitizeNamePart(value string) string {
	text := strings.TrimSpace(value)
	text = nameUnsafe.ReplaceAllString(text, "")
	text = nameSeparators.ReplaceAllString(text, "_")
	return strings.Trim(text, "_")
}

package models

import "fmt"

// DownloadError indicates the source document was unreachable. Fatal for the
// run; not retried at this layer.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download PDF from %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError indicates text extraction yielded no or insufficient
// content. Callers use it to trigger the multimodal fallback path rather
// than aborting.
type ExtractionError struct {
	Path   string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("PDF extraction failed for %s: %s", e.Path, e.Reason)
}

// LLMAnalysisError is the umbrella error for gateway transport failures,
// empty responses, length-truncated responses, and parse failures after all
// recovery attempts. Detail carries the diagnostic context (response preview,
// length) needed to debug model drift.
type LLMAnalysisError struct {
	Op     string
	Detail string
	Err    error
}

func (e *LLMAnalysisError) Error() string {
	msg := e.Op
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += "\n" + e.Detail
	}
	return msg
}

func (e *LLMAnalysisError) Unwrap() error { return e.Err }

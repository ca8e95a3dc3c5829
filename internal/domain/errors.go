package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError reports a transport or status failure while fetching a feed or page.
type FetchError struct {
	Stage      string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch %s: status %d", e.Stage, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s fetch %s: %v", e.Stage, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StageAttempt records the outcome of a single extractor stage.
type StageAttempt struct {
	Method    ExtractionMethod
	WordCount int
	Threshold int
	Err       string
}

// ExtractionExhaustedError means no extractor stage produced enough text.
type ExtractionExhaustedError struct {
	URL      string
	Attempts []StageAttempt
}

func (e *ExtractionExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", a.Method, a.Err))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d/%d words", a.Method, a.WordCount, a.Threshold))
	}
	return fmt.Sprintf("extraction exhausted for %s (%s)", e.URL, strings.Join(parts, "; "))
}

// ValidationRejectedError means the text did not look like article prose.
type ValidationRejectedError struct {
	Reason string
}

func (e *ValidationRejectedError) Error() string {
	return "validation rejected: " + e.Reason
}

// SummaryUnavailableError means neither the model nor the extractive fallback produced a usable summary.
type SummaryUnavailableError struct {
	Reason string
	Err    error
}

func (e *SummaryUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("summary unavailable: %s: %v", e.Reason, e.Err)
	}
	return "summary unavailable: " + e.Reason
}

func (e *SummaryUnavailableError) Unwrap() error { return e.Err }

// DuplicateKeyError reports a record that collides on a unique field.
type DuplicateKeyError struct {
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Field, e.Value)
}

// IsDuplicate reports whether err carries a DuplicateKeyError.
func IsDuplicate(err error) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup)
}

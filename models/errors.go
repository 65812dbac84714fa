package models

import (
	"errors"
	"fmt"
)

// Error codes used in logs, reports and metrics labels.
const (
	// Fatal: the run aborts before (or instead of) writing output.
	ErrCodeMissingColumn = "MISSING_INPUT_COLUMN"
	ErrCodeInputRead     = "INPUT_READ_FAILED"
	ErrCodeOutputWrite   = "OUTPUT_WRITE_FAILED"
	ErrCodeInvalidInput  = "INVALID_INPUT"

	// Per-row: the row passes through unmodified and the run continues.
	ErrCodeTimeout      = "FETCH_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInterrupted  = "RUN_INTERRUPTED"

	// Informational: extraction found nothing structured.
	ErrCodeNoStructuredData = "NO_STRUCTURED_DATA"

	// Status server.
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"

	ErrCodeInternal = "INTERNAL_ERROR"
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first ScrapeError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsFatal reports whether err carries one of the codes that abort a run.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case ErrCodeMissingColumn, ErrCodeInputRead, ErrCodeOutputWrite, ErrCodeInvalidInput:
		return true
	}
	return false
}

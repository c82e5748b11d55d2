package mapping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDetectorUnavailable marks an external detector that could not answer.
	ErrDetectorUnavailable = errors.New("detector unavailable")
	// ErrAmbiguousMapping marks a column claimed by two fields with equal confidence.
	ErrAmbiguousMapping = errors.New("ambiguous mapping")
	// ErrRequiredFieldUnresolved is returned when account or product cannot be mapped.
	ErrRequiredFieldUnresolved = errors.New("required field unresolved")
	// ErrLearningPersistence marks a failed write to the history or synonym store.
	ErrLearningPersistence = errors.New("learning persistence failure")
	// ErrInvalidResponse marks a classifier response that deviates from the contract.
	ErrInvalidResponse = errors.New("invalid classifier response")
	// ErrNoHeaders is returned when a detection is requested without headers.
	ErrNoHeaders = errors.New("no headers supplied")
)

// RequiredFieldError lists the unresolved required fields together with
// what was detected, so an operator can map the columns by hand.
type RequiredFieldError struct {
	Missing  []CanonicalField
	Headers  []string
	Detected ColumnMapping
}

func (e *RequiredFieldError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		missing[i] = string(f)
	}
	detected := make([]string, 0, len(e.Detected))
	for _, f := range e.Detected.Fields() {
		detected = append(detected, fmt.Sprintf("%s=%q", f, e.Detected[f].SourceColumn))
	}
	return fmt.Sprintf("required field unresolved: missing [%s]; detected [%s]; headers %q",
		strings.Join(missing, ", "), strings.Join(detected, ", "), e.Headers)
}

func (e *RequiredFieldError) Unwrap() error { return ErrRequiredFieldUnresolved }

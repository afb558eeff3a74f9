package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEcus is the fatal condition of a system without ECU instances.
	ErrNoEcus = errors.New("no ECUs")
	// ErrNoSignals is the fatal condition of a system without signals.
	ErrNoSignals = errors.New("no signals")
	// ErrUnsupportedCompu marks a compu method category without a translation.
	ErrUnsupportedCompu = errors.New("unsupported compu method category")
)

// ExtractionError aborts the extraction of one system.
type ExtractionError struct {
	System string
	Stage  string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.System, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError creates an ExtractionError.
func NewExtractionError(system, stage string, err error) *ExtractionError {
	return &ExtractionError{System: system, Stage: stage, Err: err}
}

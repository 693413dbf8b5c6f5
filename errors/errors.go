package errors

import "fmt"

// ParseError wraps a specific error with context about where it occurred.
type ParseError struct {
	Line   int
	Record []string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %v (record: %v)", e.Line, e.Err, e.Record)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Define specific error types for better error handling
var (
	ErrInvalidFieldCount = fmt.Errorf("invalid field count")
	ErrInvalidWeight     = fmt.Errorf("invalid seniority weight")
	ErrInvalidSequence   = fmt.Errorf("invalid sequence number")
	ErrInvalidValue      = fmt.Errorf("invalid opportunity value")
	ErrUnknownTier       = fmt.Errorf("unknown supplier tier")
	ErrEmptyRecord       = fmt.Errorf("empty record")

	// ErrUnknownSessionType signals a structural contract violation from
	// the ingestion layer. It is the only scheduling-input error that
	// aborts a run instead of surfacing in the validation report.
	ErrUnknownSessionType = fmt.Errorf("unknown session type")

	ErrNoDays        = fmt.Errorf("calendar has no days")
	ErrDuplicateSlot = fmt.Errorf("duplicate slot label within day")
	ErrUnknownSlot   = fmt.Errorf("unknown day or slot label")
	ErrBadCapacity   = fmt.Errorf("capacity must be positive")
)

package helper

import (
	"errors"
	"strings"
)

// Error categories. Wrapped errors keep these reachable via errors.Is.
var (
	// ErrConfiguration marks problems that are fatal at initialization:
	// malformed graph files, vocabulary gaps, unknown ablation modes.
	ErrConfiguration = errors.New("configuration error")
	// ErrShape marks batches or tensors that violate the input contract.
	ErrShape = errors.New("shape error")
)

// Error is an error with a trace of the operations it passed through.
type Error struct {
	Original error
	Trace    []string
}

// NewError wraps err with the name of the operation that failed.
// Wrapping an *Error again prepends to its trace instead of nesting.
func NewError(trace string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Original: e.Original,
			Trace:    append([]string{trace}, e.Trace...),
		}
	}

	return &Error{
		Original: err,
		Trace:    []string{trace},
	}
}

func (e *Error) Error() string {
	if len(e.Trace) == 0 {
		return e.Original.Error()
	}
	return strings.Join(e.Trace, ": ") + ": " + e.Original.Error()
}

func (e *Error) Unwrap() error {
	return e.Original
}

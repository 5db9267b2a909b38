package fidelity

import "errors"

// #region sentinels
var (
	// ErrInvalidInput matches every InvalidInputError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDegenerateInput matches every DegenerateInputError via errors.Is.
	ErrDegenerateInput = errors.New("degenerate input")
)

// #endregion sentinels

// #region invalid-input
// InvalidInputError reports a prediction pair that violates the scoring contract:
// mismatched lengths, fewer than two points, or a non-finite value.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// #endregion invalid-input

// #region degenerate-input
// DegenerateInputError reports a pair for which correlation is undefined.
type DegenerateInputError struct {
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return "degenerate input: " + e.Reason
}

func (e *DegenerateInputError) Is(target error) bool {
	return target == ErrDegenerateInput
}

// #endregion degenerate-input

// #region kind
// Kind returns a short machine-readable label for a scoring error,
// or "" if err is not one of this package's errors.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDegenerateInput):
		return "degenerate_input"
	default:
		return ""
	}
}

// #endregion kind

package reminder

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a reminder id that has no record, or one owned by a
// different user (ownership failures are indistinguishable from absence on
// purpose).
var ErrNotFound = errors.New("reminder not found")

// ErrUnchanged reports an edit whose new text equals the stored text.
var ErrUnchanged = errors.New("reminder text unchanged")

// ValidationError reports user input that can never become a valid
// reminder: empty text, out-of-range clock values, a past date-time.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a user-input problem rather than an
// infrastructure failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

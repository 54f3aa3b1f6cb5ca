package services

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRequired          = errors.New("required")
	ErrUnknownRecipient  = errors.New("unknown_recipient")
	ErrRecipientRejected = errors.New("recipient_rejected")
)

// ValidationError is a field level failure that callers surface next to the
// offending input.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Code is the machine readable reason, e.g. "unknown_recipient".
func (e *ValidationError) Code() string {
	if e.Err == nil {
		return "invalid"
	}
	return e.Err.Error()
}

func invalidRecipient(err error) error {
	return &ValidationError{Field: "recipient", Message: "There is no user with this username.", Err: err}
}

package paystack

import (
	"errors"
	"fmt"
)

const CodeTransferUnavailable = "transfer_unavailable"

// Error is returned for non-2xx responses and for bodies with status=false.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("paystack: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.StatusCode)
}

// IsCode reports whether err wraps a provider error with the given code.
func IsCode(err error, code string) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}

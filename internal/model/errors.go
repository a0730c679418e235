package model

import (
	"time"

	"github.com/google/uuid"
)

// SignInPath is where the storefront sends a session whose authentication
// was dropped.
const SignInPath = "/signin"

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
	Redirect      string `json:"redirect,omitempty"`
}

// ErrorReport is what the generic error screen renders after an unexpected
// failure. Stack is only filled when stack traces are exposed.
type ErrorReport struct {
	ID            uuid.UUID `json:"id"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Stack         string    `json:"stack,omitempty"`
}

func NewErrorReport(message, correlationID string, stack []byte, now time.Time) ErrorReport {
	r := ErrorReport{
		ID:            uuid.New(),
		Message:       message,
		Timestamp:     now.UTC(),
		CorrelationID: correlationID,
	}
	if len(stack) > 0 {
		r.Stack = string(stack)
	}
	return r
}

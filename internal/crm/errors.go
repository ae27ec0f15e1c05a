package crm

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers timeouts, connection failures and non-2xx replies without a CRM envelope.
	ErrTransport = errors.New("crm transport failure")
	// ErrMalformedResponse indicates a 2xx reply that could not be decoded.
	ErrMalformedResponse = errors.New("crm malformed response")
	// ErrInvalidCredential indicates the CRM rejected the API key.
	ErrInvalidCredential = errors.New("crm invalid credential")
)

// APIError is a business failure reported by the CRM (success=false).
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Errors     map[string]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "crm operation failed"
	}
	if len(e.Errors) > 0 {
		return fmt.Sprintf("crm %s: %s (%s)", e.Endpoint, msg, formatFieldErrors(e.Errors))
	}
	return fmt.Sprintf("crm %s: %s", e.Endpoint, msg)
}

// Detail is the message shown to facade callers.
func (e *APIError) Detail() string {
	msg := e.Message
	if msg == "" {
		msg = "CRM operation failed"
	}
	if len(e.Errors) > 0 {
		return msg + ". Errors: " + formatFieldErrors(e.Errors)
	}
	return msg
}

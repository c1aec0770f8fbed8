package mpesa

import (
	"encoding/json"
	"fmt"
)

// TokenError is a failed OAuth exchange. Body holds the upstream response,
// decoded when it was JSON.
type TokenError struct {
	StatusCode int
	Body       any
	Err        error
}

func (e *TokenError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("mpesa token request failed: %v", e.Err)
	}
	return fmt.Sprintf("mpesa token request failed with status %d: %s", e.StatusCode, describe(e.Body, e.Err))
}

func (e *TokenError) Unwrap() error { return e.Err }

// UpstreamError is a failed STK push. Payload is what Daraja answered with and
// is surfaced to the caller as error details.
type UpstreamError struct {
	StatusCode int
	Payload    any
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("mpesa request failed: %v", e.Err)
	}
	return fmt.Sprintf("mpesa returned status %d: %s", e.StatusCode, describe(e.Payload, e.Err))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Details is the value reported back to API clients.
func (e *UpstreamError) Details() any {
	if e.Payload != nil {
		return e.Payload
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return nil
}

func describe(body any, err error) string {
	if body != nil {
		if s, ok := body.(string); ok {
			return s
		}
		if b, mErr := json.Marshal(body); mErr == nil {
			return string(b)
		}
	}
	if err != nil {
		return err.Error()
	}
	return "no response body"
}

// Package telegram — error taxonomy.
//
// The Bot API can fail two ways: the platform answers with a structured
// rejection (ok=false plus error_code/description), or the transport itself
// fails (timeout, connection reset). Rejections surface as *APIError so
// callers can branch with errors.As; transport failures are wrapped with the
// method name and remain errors.Is-compatible with their cause (e.g.
// context.DeadlineExceeded).
package telegram

import "fmt"

// APIError is a structured rejection returned by the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: api error %d: %s", e.Method, e.Code, e.Description)
}

package policy

import "net/http"

// Error is a terminal policy decision: the request is denied with the carried
// HTTP status and message, and no mutation occurs.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Forbidden builds a 403 denial.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

// NotFound builds a 404 denial for an absent target resource.
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

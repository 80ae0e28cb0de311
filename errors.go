package micropub

import "net/http"

// Error kinds surfaced to Micropub clients in the "error" field of the
// JSON error body.
const (
	KindUnauthorized      = "unauthorized"
	KindForbidden         = "forbidden"
	KindInsufficientScope = "insufficient_scope"
	KindInvalidRequest    = "invalid_request"
	KindInvalidToken      = "invalid_token"
	KindError             = "error"
	KindInternalError     = "internal_error"
	KindSetupError        = "setup_error"
	KindDiscoveryFailed   = "discovery_failed"
)

// Error is a protocol-level failure. Components return it instead of
// writing a response themselves; the HTTP error handler translates it
// into the {"error","error_description"} body with the matching status.
type Error struct {
	Kind        string
	Description string
	Status      int
}

func (e *Error) Error() string {
	return e.Kind + ": " + e.Description
}

func errUnauthorized(desc string) *Error {
	return &Error{Kind: KindUnauthorized, Description: desc, Status: http.StatusUnauthorized}
}

func errForbidden(desc string) *Error {
	return &Error{Kind: KindForbidden, Description: desc, Status: http.StatusForbidden}
}

func errInsufficientScope(desc string) *Error {
	return &Error{Kind: KindInsufficientScope, Description: desc, Status: http.StatusBadRequest}
}

func errInvalidRequest(desc string) *Error {
	return &Error{Kind: KindInvalidRequest, Description: desc, Status: http.StatusBadRequest}
}

func errInvalidToken(desc string) *Error {
	return &Error{Kind: KindInvalidToken, Description: desc, Status: http.StatusUnauthorized}
}

func errPublish(desc string) *Error {
	return &Error{Kind: KindError, Description: desc, Status: http.StatusInternalServerError}
}

func errInternal(desc string) *Error {
	return &Error{Kind: KindInternalError, Description: desc, Status: http.StatusInternalServerError}
}

func errSetup(desc string) *Error {
	return &Error{Kind: KindSetupError, Description: desc, Status: http.StatusInternalServerError}
}

func errDiscoveryFailed(desc string) *Error {
	return &Error{Kind: KindDiscoveryFailed, Description: desc, Status: http.StatusInternalServerError}
}

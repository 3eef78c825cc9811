package internal

import "net/http"

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeRepoError is returned when the request to a repo fails with an error
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeRequiredFieldMissing is returned when at least one required field has not been populated on an incoming
	// request
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeIllegalValue is returned when a value in the request cannot be interpreted (e.g. a broken upload)
	ErrCodeIllegalValue = "ILLEGAL_VALUE"
	// ErrCodeValidationFailed is returned when the transferred data does not pass validation. The details list the
	// offending fields
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	// ErrCodeEventNotFound is returned when an operation works on an event that does not exist
	ErrCodeEventNotFound = "EVENT_NOT_FOUND"
	// ErrCodeRecordNotFound is returned when a donation or payment does not exist
	ErrCodeRecordNotFound = "RECORD_NOT_FOUND"
	// ErrCodeRouteNotFound is returned for requests to unknown URLs
	ErrCodeRouteNotFound = "ROUTE_NOT_FOUND"
	// ErrCodeUpstreamFailed is returned when the media store or the mail server rejected a request
	ErrCodeUpstreamFailed = "UPSTREAM_FAILED"
	// ErrCodeAlreadyFinalized is returned when verifying or confirming a record that is not pending anymore
	ErrCodeAlreadyFinalized = "ALREADY_FINALIZED"
	// ErrCodeLoginFailed is returned when the user fails to login for some reason
	ErrCodeLoginFailed = "LOGIN_FAILED"
	// ErrCodeNotLoggedIn is returned when the user tried to access an API that needs a logged-in user, but did not
	// send an access token
	ErrCodeNotLoggedIn = "NOT_LOGGED_IN"
	// ErrCodeInvalidToken is returned when the sent access token is malformed, expired or revoked
	ErrCodeInvalidToken = "INVALID_TOKEN"
	// ErrCodeForbidden is returned when the token is valid, but its user is not allowed to use the function
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeUserExists is returned when creating an admin with a name that is already taken
	ErrCodeUserExists = "USER_EXISTS"
	// ErrCodeTooManyRequests is returned by rate limited routes
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
)

var (
	// ErrNotLoggedIn is returned by admin functions called without an access token
	ErrNotLoggedIn = MakeError(http.StatusUnauthorized, ErrCodeNotLoggedIn, "This function needs a logged-in user")
	// ErrInvalidToken is returned by admin functions called with an unusable access token
	ErrInvalidToken = MakeError(http.StatusUnauthorized, ErrCodeInvalidToken, "Invalid or expired access token")
	// ErrForbidden is returned when the access token's user does not exist (anymore)
	ErrForbidden = MakeError(http.StatusForbidden, ErrCodeForbidden, "Access denied")
	// ErrEventNotFound is returned for operations on unknown events
	ErrEventNotFound = MakeError(http.StatusNotFound, ErrCodeEventNotFound, "Event not found")
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
	// The error that caused this one - logged, but never sent to the client
	cause error
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message: message, code: code, status: status, data: data}
}

// WithCause returns a copy of the error carrying the underlying error that caused it
func (e *HTTPError) WithCause(err error) *HTTPError {
	ret := *e
	ret.cause = err
	return &ret
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}

// Unwrap returns the cause of the error, if any
func (e *HTTPError) Unwrap() error {
	return e.cause
}

// makeRepoError creates the error returned to clients when a repository call failed. The cause is kept for logging
func makeRepoError(message string, cause error) *HTTPError {
	return MakeError(http.StatusInternalServerError, ErrCodeRepoError, message).WithCause(cause)
}

// makeUpstreamError creates the error returned when the media store or the mail server failed. The message of the
// upstream service is passed on to the client
func makeUpstreamError(status int, cause error) *HTTPError {
	return MakeError(status, ErrCodeUpstreamFailed, cause.Error()).WithCause(cause)
}

package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable failure codes reported to clients.
const (
	CodeAuthorizationHeaderMissing = "authorization_header_missing"
	CodeInvalidHeader              = "invalid_header"
	CodeInvalidClaims              = "invalid_claims"
	CodeTokenExpired               = "token_expired"
	CodeInvalidPayload             = "invalid_payload"
	CodeAccessDenied               = "access_denied"
)

// Error is a typed authorization failure carrying the HTTP status it maps to.
type Error struct {
	Code        string
	Description string
	Status      int
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("auth: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("auth: %s: %s: %v", e.Code, e.Description, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError extracts an *Error from the chain.
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

func newError(code, description string, status int, cause error) *Error {
	return &Error{Code: code, Description: description, Status: status, Err: cause}
}

func errHeaderMissing() *Error {
	return newError(CodeAuthorizationHeaderMissing, "Authorization header is expected.", http.StatusUnauthorized, nil)
}

func errNotBearer() *Error {
	return newError(CodeInvalidHeader, `Authorization header must start with "Bearer".`, http.StatusUnauthorized, nil)
}

func errTokenNotFound() *Error {
	return newError(CodeInvalidHeader, "Token not found.", http.StatusUnauthorized, nil)
}

func errNotSingleToken() *Error {
	return newError(CodeInvalidHeader, "Authorization header must be bearer token.", http.StatusUnauthorized, nil)
}

func errMalformedHeader(cause error) *Error {
	return newError(CodeInvalidHeader, "Authorization malformed.", http.StatusUnauthorized, cause)
}

func errUnparseable(cause error) *Error {
	return newError(CodeInvalidHeader, "Unable to parse authentication token.", http.StatusBadRequest, cause)
}

func errKeyMissing(cause error) *Error {
	return newError(CodeInvalidHeader, "Unable to find the appropriate key.", http.StatusBadRequest, cause)
}

func errExpired(cause error) *Error {
	return newError(CodeTokenExpired, "Token expired.", http.StatusUnauthorized, cause)
}

func errClaims(cause error) *Error {
	return newError(CodeInvalidClaims, "Audience or issuer may be incorrect.", http.StatusUnauthorized, cause)
}

func errNoPermissions() *Error {
	return newError(CodeInvalidPayload, "Invalid payload.", http.StatusUnauthorized, nil)
}

func errAccessDenied(permission string) *Error {
	return newError(CodeAccessDenied, "Access denied.", http.StatusForbidden, fmt.Errorf("missing permission %q", permission))
}

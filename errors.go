package auth

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenDecode       = "TOKEN_DECODE_FAILED"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeMissingSubject    = "MISSING_SUBJECT"
	TextCodeUserFetch         = "USER_FETCH_FAILED"
	TextCodeAPI               = "API_ERROR"
	TextCodeSessionSuperseded = "SESSION_SUPERSEDED"
	TextCodeInvalidPayload    = "INVALID_PAYLOAD"
	TextCodeNoSession         = "NO_SESSION"
)

const (
	loginFallbackMessage    = "Login failed"
	registerFallbackMessage = "Registration failed"
	userFallbackMessage     = "Error al cargar usuario"
)

// ErrTokenDecode is returned when a token can not be parsed into claims.
var ErrTokenDecode = goerrors.New("token could not be decoded", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenDecode).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when the token exp claim is in the past.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingSubject is returned when no usable user id is found in the claims.
var ErrMissingSubject = goerrors.New("could not extract user id from token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingSubject).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionSuperseded is returned when a logout or a newer login landed
// while the operation was waiting on the network.
var ErrSessionSuperseded = goerrors.New("session changed while the request was in flight", goerrors.CategoryConflict).
	WithTextCode(TextCodeSessionSuperseded).
	WithCode(goerrors.CodeConflict)

// ErrNoSession is returned by operations that need a token when there is none.
var ErrNoSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeUnauthorized)

// APIError is a non 2xx response from the portal API. Message is always safe
// to show to a user.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Unauthorized reports whether the API rejected the credential.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

func newAPIError(status int, body []byte, fallback string) *APIError {
	msg := fallback
	if m := messageFromBody(body); m != "" {
		msg = m
	}
	return &APIError{Status: status, Message: msg, Body: body}
}

func wrapAPIError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if goerrors.As(err, &apiErr) {
		return goerrors.Wrap(apiErr, goerrors.CategoryAuth, apiErr.Message).
			WithTextCode(TextCodeAPI).
			WithCode(apiErr.Status).
			WithMetadata(map[string]any{"status": apiErr.Status})
	}
	return goerrors.Wrap(err, goerrors.CategoryAuth, fallback).
		WithTextCode(TextCodeAPI).
		WithCode(goerrors.CodeInternal)
}

func userFetchError(id int64, err error) error {
	msg := userFallbackMessage
	code := goerrors.CodeInternal
	var apiErr *APIError
	if goerrors.As(err, &apiErr) {
		msg = apiErr.Message
		if apiErr.Status != 0 {
			code = apiErr.Status
		}
	}
	return goerrors.Wrap(err, goerrors.CategoryAuth, msg).
		WithTextCode(TextCodeUserFetch).
		WithCode(code).
		WithMetadata(map[string]any{"user_id": id})
}

func tokenDecodeError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryAuth, ErrTokenDecode.Message).
		WithTextCode(TextCodeTokenDecode).
		WithCode(goerrors.CodeUnauthorized)
}

func validationError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
		WithTextCode(TextCodeInvalidPayload).
		WithCode(goerrors.CodeBadRequest)
}

// ErrorMessage returns a short user facing message for any error produced by
// this package.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	var apiErr *APIError
	if goerrors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// IsTokenDecodeError reports whether err is a token decode failure
func IsTokenDecodeError(err error) bool { return hasTextCode(err, TextCodeTokenDecode) }

// IsTokenExpiredError reports whether err is an expired token failure
func IsTokenExpiredError(err error) bool { return hasTextCode(err, TextCodeTokenExpired) }

// IsMissingSubjectError reports whether err is a missing subject failure
func IsMissingSubjectError(err error) bool { return hasTextCode(err, TextCodeMissingSubject) }

// IsUserFetchError reports whether err is a profile fetch failure
func IsUserFetchError(err error) bool { return hasTextCode(err, TextCodeUserFetch) }

// IsAPIError reports whether err came from a rejected login/register call
func IsAPIError(err error) bool { return hasTextCode(err, TextCodeAPI) }

// IsSessionSuperseded reports whether the operation lost a race with logout
func IsSessionSuperseded(err error) bool { return hasTextCode(err, TextCodeSessionSuperseded) }

// IsNoSessionError reports whether the operation required a token
func IsNoSessionError(err error) bool { return hasTextCode(err, TextCodeNoSession) }

// IsValidationError reports whether a payload was rejected before any call
func IsValidationError(err error) bool { return hasTextCode(err, TextCodeInvalidPayload) }

// IsCredentialError reports whether err means the token itself is unusable
// and must not be retried.
func IsCredentialError(err error) bool {
	return IsTokenDecodeError(err) || IsTokenExpiredError(err) || IsMissingSubjectError(err)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

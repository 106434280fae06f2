package domain

import (
	"errors"
	"fmt"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindInternal       ErrKind = "internal"       // 500
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients
// - Meta: optional details that are safe to return (field, reason, etc.)
// - Cause: wrapped internal error, only ever logged
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

// Is reports whether err is (or wraps) a domain error with the given code.
func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error, or "" when err is not one.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Internal reasons carried as Cause. They never reach clients, only logs.
var (
	ReasonRefreshReused  = errors.New("refresh token reused")
	ReasonWrongTokenKind = errors.New("wrong token kind")
	ReasonNonceMissing   = errors.New("nonce claim missing")
	ReasonNonceMismatch  = errors.New("nonce mismatch")
	ReasonNonceReplayed  = errors.New("nonce replayed")
	ReasonNonceBlank     = errors.New("nonce blank")
	ReasonKeyDiscovery   = errors.New("signing key discovery failed")
)

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrProviderNotSupported(provider string) *Error {
	return WithMeta(New(KindValidation, "provider_not_supported", "identity provider not supported"), map[string]string{
		"provider": provider,
	})
}

// ----------------------
// Auth errors (401)
// ----------------------

func ErrTokenMissing() *Error {
	return New(KindAuth, "token_missing", "no token provided")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", "invalid token")
}

// ErrTokenInvalidBecause keeps the client-facing shape of ErrTokenInvalid while
// recording why, so reuse and expiry stay distinguishable in logs.
func ErrTokenInvalidBecause(cause error) *Error {
	return Wrap(KindAuth, "token_invalid", "invalid token", cause)
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", "token is expired")
}

func ErrInvalidNonce(cause error) *Error {
	return Wrap(KindAuth, "invalid_nonce", "invalid nonce", cause)
}

// ----------------------
// Forbidden (403)
// ----------------------

func ErrForbidden() *Error {
	return New(KindForbidden, "forbidden", "forbidden")
}

func ErrInsufficientRole(required string) *Error {
	return WithMeta(New(KindForbidden, "insufficient_role", "insufficient role"), map[string]string{
		"required": required,
	})
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrUserNotFound() *Error {
	return New(KindNotFound, "user_not_found", "user not found")
}

// ----------------------
// Conflict (409)
// ----------------------

func ErrNicknameUnavailable() *Error {
	return New(KindConflict, "nickname_unavailable", "could not allocate a unique nickname")
}

func ErrIdentityAlreadyLinked() *Error {
	return New(KindConflict, "identity_already_linked", "provider identity already linked")
}

func ErrPrimaryLinkExists() *Error {
	return New(KindConflict, "primary_link_exists", "account already has a primary link")
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrRedisUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "redis_unavailable", "cache unavailable", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}

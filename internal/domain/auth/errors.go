package auth

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes auth failures surfaced to callers.
type ErrorKind string

const (
	// KindAuthenticationFailed indicates rejected credentials on an explicit login.
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	// KindUnauthorized indicates the server rejected the current session (401-equivalent).
	KindUnauthorized ErrorKind = "unauthorized"
	// KindSessionExpired indicates refresh/revalidation tolerance was exhausted.
	KindSessionExpired ErrorKind = "session_expired"
	// KindNetworkUnavailable indicates a transport-level failure; non-authoritative.
	KindNetworkUnavailable ErrorKind = "network_unavailable"
	// KindServerError indicates a 5xx-equivalent failure; non-authoritative.
	KindServerError ErrorKind = "server_error"
	// KindInvalidCredentials indicates the credentials failed local validation.
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	// KindMalformedCachedData indicates a corrupt persisted snapshot. Never surfaced.
	KindMalformedCachedData ErrorKind = "malformed_cached_data"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
	ErrSessionExpired       = &Error{Kind: KindSessionExpired}
	ErrNetworkUnavailable   = &Error{Kind: KindNetworkUnavailable}
	ErrServerError          = &Error{Kind: KindServerError}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials}
	ErrMalformedCachedData  = &Error{Kind: KindMalformedCachedData}
)

// Error is a classified auth failure. Message is safe to show to users.
type Error struct {
	Kind    ErrorKind
	Message string
	// Status is the HTTP status returned by the API, when there was one.
	Status int
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the user-facing message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case KindAuthenticationFailed:
		return "Échec de l'authentification"
	case KindSessionExpired:
		return "Votre session a expiré, veuillez vous reconnecter"
	case KindNetworkUnavailable:
		return "Erreur de connexion au serveur"
	case KindServerError:
		return "Le serveur a rencontré une erreur"
	default:
		return err.Error()
	}
}

// IsTransient reports whether err is non-authoritative (network or server side).
func IsTransient(err error) bool {
	k := KindOf(err)
	return k == KindNetworkUnavailable || k == KindServerError
}

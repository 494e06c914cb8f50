package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/upjv/prospection-ui/config"
	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
)

// MessageExtractor pulls a user-facing message out of JSON error bodies
// with a JMESPath expression.
type MessageExtractor struct {
	expr string
}

// NewMessageExtractor validates expr; empty uses config.DefaultErrorMessageExpr.
func NewMessageExtractor(expr string) (*MessageExtractor, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = config.DefaultErrorMessageExpr
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid error message expression %q: %w", expr, err)
	}
	return &MessageExtractor{expr: expr}, nil
}

// Extract returns the message found in body, or "" when body is not JSON or
// the expression yields no non-empty string.
func (m *MessageExtractor) Extract(body []byte) string {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return ""
	}
	res, err := jmespath.Search(m.expr, data)
	if err != nil {
		return ""
	}
	s, ok := res.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// statusError classifies a non-2xx answer. 401 and 403 take rejectKind,
// 5xx is a server error, anything else is reported as a server error too.
func (c *Client) statusError(status int, body []byte, rejectKind domainauth.ErrorKind) error {
	msg := c.messages.Extract(body)
	kind := domainauth.KindServerError
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = rejectKind
	}
	if msg == "" {
		msg = defaultMessage(kind, status)
	}
	return &domainauth.Error{
		Kind:    kind,
		Message: msg,
		Status:  status,
		Cause:   fmt.Errorf("unexpected status %d", status),
	}
}

func defaultMessage(kind domainauth.ErrorKind, status int) string {
	switch kind {
	case domainauth.KindAuthenticationFailed:
		return "Erreur d'authentification"
	case domainauth.KindUnauthorized:
		return "Session non autorisée"
	default:
		if status >= 500 {
			return "Le serveur a rencontré une erreur"
		}
		return fmt.Sprintf("Réponse inattendue du serveur (%d)", status)
	}
}

// transportError marks a failed round trip as NetworkUnavailable. Cancellation
// is returned as is so callers can tell it apart from an outage.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &domainauth.Error{Kind: domainauth.KindNetworkUnavailable, Cause: err}
}

// tokenExpiry reads the exp claim of a JWT access token without verifying it.
// Opaque or malformed tokens yield the zero time.
func tokenExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("login: %w", &Error{Kind: KindAuthenticationFailed, Message: "Invalid credentials", Status: 401})

	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, KindAuthenticationFailed, KindOf(err))
	assert.Equal(t, "Invalid credentials", UserMessage(err))
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &Error{Kind: KindNetworkUnavailable, Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(ErrUnauthorized))
}

func TestUserMessage_Defaults(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "Erreur de connexion au serveur", UserMessage(ErrNetworkUnavailable))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}

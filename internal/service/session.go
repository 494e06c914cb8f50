package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
	"github.com/upjv/prospection-ui/internal/ports"
)

// Persisted key names. They are kept distinct and always cleared together.
const (
	KeyCachedIdentity = "prospection.session.identity"
	KeyAccessToken    = "prospection.session.token"
	KeyRefreshToken   = "prospection.session.refresh_token"
	KeyTokenExpiry    = "prospection.session.token_expires_at"
)

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Storage ports.KeyValueStore
	Logger  *slog.Logger
}

// SessionStore holds the SessionState and mirrors the identity to durable storage.
// AuthController is its only writer; everything else reads State or subscribes.
type SessionStore struct {
	storage ports.KeyValueStore
	logger  *slog.Logger

	mu     sync.RWMutex
	state  domainauth.SessionState
	nextID int
	subs   map[int]func(domainauth.SessionState)
}

var _ ports.TokenSource = (*SessionStore)(nil)

// NewSessionStore constructs a store seeded from the cached snapshot, so a
// returning user reads as authenticated before the first server check. The
// state is loading until the controller settles that check.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &SessionStore{
		storage: opts.Storage,
		logger:  logger,
		subs:    make(map[int]func(domainauth.SessionState)),
	}

	var cached *domainauth.Identity
	if s.storage != nil {
		cached = s.ReadCachedSnapshot(context.Background())
	}
	s.state = domainauth.SessionState{
		Identity:        cached,
		IsAuthenticated: cached != nil,
		IsLoading:       true,
	}
	return s
}

// State returns a copy of the current state.
func (s *SessionStore) State() domainauth.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

func copyState(st domainauth.SessionState) domainauth.SessionState {
	if st.Identity != nil {
		id := st.Identity.Clone()
		st.Identity = &id
	}
	return st
}

// SetIdentity replaces the identity and recomputes IsAuthenticated, then
// persists the snapshot (non-nil) or evicts it (nil). Memory is always
// updated before the cache so the cache is never newer than memory.
func (s *SessionStore) SetIdentity(ctx context.Context, id *domainauth.Identity) error {
	var next *domainauth.Identity
	if id != nil {
		c := id.Clone()
		next = &c
	}

	s.update(func(st *domainauth.SessionState) {
		st.Identity = next
		st.IsAuthenticated = next != nil
	})

	if next == nil {
		if err := s.storage.Delete(ctx, KeyCachedIdentity); err != nil {
			s.logger.WarnContext(ctx, "evict cached identity failed", "error", err)
			return fmt.Errorf("evict cached identity: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal cached identity: %w", err)
	}
	if err := s.storage.Set(ctx, KeyCachedIdentity, string(data)); err != nil {
		s.logger.WarnContext(ctx, "persist cached identity failed", "error", err)
		return fmt.Errorf("persist cached identity: %w", err)
	}
	return nil
}

// SetLoading sets the loading flag.
func (s *SessionStore) SetLoading(loading bool) {
	s.update(func(st *domainauth.SessionState) { st.IsLoading = loading })
}

// SetError records the last user-facing error; "" clears it.
func (s *SessionStore) SetError(msg string) {
	s.update(func(st *domainauth.SessionState) { st.LastError = msg })
}

// ReadCachedSnapshot returns the persisted identity, or nil when it is
// missing, unreadable or malformed. It never fails.
func (s *SessionStore) ReadCachedSnapshot(ctx context.Context) *domainauth.Identity {
	raw, err := s.storage.Get(ctx, KeyCachedIdentity)
	if err != nil {
		if !errors.Is(err, ports.ErrKeyNotFound) {
			s.logger.WarnContext(ctx, "read cached identity failed", "error", err)
		}
		return nil
	}

	var id domainauth.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		s.logger.WarnContext(ctx, "ignoring malformed cached identity",
			"error", &domainauth.Error{Kind: domainauth.KindMalformedCachedData, Cause: err})
		return nil
	}
	if id.ID == "" && id.Email == "" {
		s.logger.WarnContext(ctx, "ignoring empty cached identity")
		return nil
	}
	return &id
}

// Tokens returns the persisted token material. Missing entries are empty.
func (s *SessionStore) Tokens(ctx context.Context) (domainauth.Tokens, error) {
	access, err := s.getOptional(ctx, KeyAccessToken)
	if err != nil {
		return domainauth.Tokens{}, err
	}
	refresh, err := s.getOptional(ctx, KeyRefreshToken)
	if err != nil {
		return domainauth.Tokens{}, err
	}
	exp, err := s.getOptional(ctx, KeyTokenExpiry)
	if err != nil {
		return domainauth.Tokens{}, err
	}

	tokens := domainauth.Tokens{Access: access, Refresh: refresh}
	if exp != "" {
		if unix, perr := strconv.ParseInt(exp, 10, 64); perr == nil {
			tokens.ExpiresAt = time.Unix(unix, 0)
		}
	}
	return tokens, nil
}

// SetTokens persists token material. An empty refresh token keeps the previous one,
// matching APIs that only rotate it occasionally.
func (s *SessionStore) SetTokens(ctx context.Context, t domainauth.Tokens) error {
	if t.Access != "" {
		if err := s.storage.Set(ctx, KeyAccessToken, t.Access); err != nil {
			return fmt.Errorf("persist access token: %w", err)
		}
	}
	if t.Refresh != "" {
		if err := s.storage.Set(ctx, KeyRefreshToken, t.Refresh); err != nil {
			return fmt.Errorf("persist refresh token: %w", err)
		}
	}
	if t.ExpiresAt.IsZero() {
		if err := s.storage.Delete(ctx, KeyTokenExpiry); err != nil {
			return fmt.Errorf("clear token expiry: %w", err)
		}
		return nil
	}
	if err := s.storage.Set(ctx, KeyTokenExpiry, strconv.FormatInt(t.ExpiresAt.Unix(), 10)); err != nil {
		return fmt.Errorf("persist token expiry: %w", err)
	}
	return nil
}

// Clear drops the identity and every persisted entry together.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.update(func(st *domainauth.SessionState) {
		st.Identity = nil
		st.IsAuthenticated = false
	})
	if err := s.storage.Delete(ctx, KeyCachedIdentity, KeyAccessToken, KeyRefreshToken, KeyTokenExpiry); err != nil {
		return fmt.Errorf("clear session storage: %w", err)
	}
	return nil
}

// Subscribe registers fn to be called with the new state after every change.
// fn runs synchronously on the writer's goroutine and must not call back into the store's setters.
func (s *SessionStore) Subscribe(fn func(domainauth.SessionState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) update(mutate func(*domainauth.SessionState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := copyState(s.state)
	subs := make([]func(domainauth.SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

func (s *SessionStore) getOptional(ctx context.Context, key string) (string, error) {
	v, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ports.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

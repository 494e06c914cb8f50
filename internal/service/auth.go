package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/upjv/prospection-ui/config"
	domainauth "github.com/upjv/prospection-ui/internal/domain/auth"
	"github.com/upjv/prospection-ui/internal/observability/metrics"
	"github.com/upjv/prospection-ui/internal/observability/statsd"
	"github.com/upjv/prospection-ui/internal/ports"
)

// ErrControllerClosed is returned by operations started after Close.
var ErrControllerClosed = errors.New("auth controller closed")

// Operation names, used as coalescing keys, log fields and metric tags.
const (
	opInitialize = "initialize"
	opLogin      = "login"
	opLogout     = "logout"
	opRefresh    = "refresh"
	opRevalidate = "revalidate"
	opCheck      = "check"
)

// AuthControllerOptions groups dependencies for AuthController.
type AuthControllerOptions struct {
	API     ports.APIClient      // Required: prospection API client
	Store   *SessionStore        // Required: session state holder
	Config  config.SessionConfig // Optional: zero values take defaults
	Logger  *slog.Logger         // Optional: structured logger
	Metrics statsd.Sink          // Optional: metrics sink (StatsD-compatible)
	Now     func() time.Time     // Optional: clock override for tests
}

// AuthController owns the session state machine. It is the only caller of the
// API client and the only writer of the SessionStore.
//
// Operations are coalesced per kind, so identical duplicates share one result,
// and run one at a time behind opMu. While the session is authenticated a
// background task revalidates it every RevalidateInterval.
type AuthController struct {
	api     ports.APIClient
	store   *SessionStore
	cfg     config.SessionConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time

	group singleflight.Group
	opMu  sync.Mutex

	// life is cancelled by Close; every operation context is tied to it.
	life     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	alive     bool
	failures  int
	stopTimer context.CancelFunc
}

// NewAuthController constructs a new AuthController.
func NewAuthController(opts AuthControllerOptions) (*AuthController, error) {
	if opts.API == nil {
		return nil, errors.New("APIClient is required")
	}
	if opts.Store == nil {
		return nil, errors.New("SessionStore is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	life, shutdown := context.WithCancel(context.Background())
	return &AuthController{
		api:      opts.API,
		store:    opts.Store,
		cfg:      cfg,
		logger:   logger.With("component", "auth_controller"),
		metrics:  opts.Metrics,
		now:      now,
		life:     life,
		shutdown: shutdown,
		alive:    true,
	}, nil
}

// State returns the current session state.
func (c *AuthController) State() domainauth.SessionState { return c.store.State() }

// Subscribe forwards to the store; fn is called after every state change.
func (c *AuthController) Subscribe(fn func(domainauth.SessionState)) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// ConsecutiveFailures returns the current failure streak.
func (c *AuthController) ConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Initialize seeds the state from the cached snapshot for an optimistic first
// paint, then reconciles it with the server. Network and server failures keep
// the cached identity; an explicit rejection clears it. IsLoading is false on return.
func (c *AuthController) Initialize(ctx context.Context) error {
	_, err := c.run(ctx, opInitialize, func(ctx context.Context) (any, error) {
		c.store.SetLoading(true)
		defer c.store.SetLoading(false)

		if cached := c.store.ReadCachedSnapshot(ctx); cached != nil {
			c.logger.DebugContext(ctx, "seeding session from cache", "email", cached.Email)
			c.setIdentity(ctx, cached)
		}
		return nil, c.revalidate(ctx, opInitialize)
	})
	return err
}

// CheckAuthStatus forces a revalidation against the server.
func (c *AuthController) CheckAuthStatus(ctx context.Context) error {
	_, err := c.run(ctx, opCheck, func(ctx context.Context) (any, error) {
		c.store.SetLoading(true)
		defer c.store.SetLoading(false)
		return nil, c.revalidate(ctx, opCheck)
	})
	return err
}

// Login validates and submits credentials. Every failure is reported as an
// AuthenticationFailed error carrying a user-facing message, and recorded as LastError.
func (c *AuthController) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error) {
	v, err := c.run(ctx, loginKey(creds), func(ctx context.Context) (any, error) {
		return c.login(ctx, creds)
	})
	if err != nil {
		return domainauth.Identity{}, err
	}
	id, _ := v.(domainauth.Identity)
	return id, nil
}

// Logout revokes the session server side on a best-effort basis and always
// clears local state. It never fails except after Close.
func (c *AuthController) Logout(ctx context.Context) error {
	_, err := c.run(ctx, opLogout, func(ctx context.Context) (any, error) {
		c.logout(ctx)
		return nil, nil
	})
	return err
}

// RefreshSession exchanges the refresh token for new token material. Failures
// count toward FailureTolerance; reaching it forces a logout and returns
// ErrSessionExpired. Without a refresh token the session is revalidated instead.
func (c *AuthController) RefreshSession(ctx context.Context) error {
	_, err := c.run(ctx, opRefresh, func(ctx context.Context) (any, error) {
		return nil, c.refreshOrRevalidate(ctx)
	})
	return err
}

// Close stops the background task, cancels in-flight calls and discards their
// results. It must not be called from a Subscribe callback.
func (c *AuthController) Close() {
	c.mu.Lock()
	c.alive = false
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.mu.Unlock()

	c.shutdown()
	c.wg.Wait()
}

func (c *AuthController) isAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// run coalesces duplicate calls of the same key, serializes operations and
// ties the operation context to the controller lifetime.
func (c *AuthController) run(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		c.opMu.Lock()
		defer c.opMu.Unlock()

		if !c.isAlive() {
			return nil, ErrControllerClosed
		}
		// Queued behind an operation that cancelled us, e.g. a tick behind a logout.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		opCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(c.life, cancel)
		defer stop()

		start := c.now()
		v, err := fn(opCtx)
		if !c.isAlive() {
			return nil, ErrControllerClosed
		}
		c.syncTimer()
		c.emit(operationName(key), start, err)
		return v, err
	})
	return v, err
}

func operationName(key string) string {
	name, _, _ := strings.Cut(key, ":")
	return name
}

func (c *AuthController) login(ctx context.Context, creds domainauth.Credentials) (domainauth.Identity, error) {
	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	if err := creds.Validate(); err != nil {
		c.setError(domainauth.UserMessage(err))
		return domainauth.Identity{}, loginFailure(err)
	}
	c.setError("")

	var res ports.LoginResult
	err := c.withRetry(ctx, func(ctx context.Context) error {
		r, err := c.api.Login(ctx, creds)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if !c.isAlive() {
		return domainauth.Identity{}, ErrControllerClosed
	}
	if err != nil {
		c.logger.InfoContext(ctx, "login failed", "email", creds.Email, "error", err)
		failure := loginFailure(err)
		c.setError(domainauth.UserMessage(failure))
		return domainauth.Identity{}, failure
	}

	if err := c.store.SetTokens(ctx, res.Tokens); err != nil {
		c.logger.WarnContext(ctx, "persist tokens failed", "error", err)
	}
	c.setIdentity(ctx, &res.Identity)
	c.resetFailures()
	c.logger.InfoContext(ctx, "login succeeded", "email", res.Identity.Email, "roles", res.Identity.Roles)
	return res.Identity.Clone(), nil
}

// loginKey coalesces identical submissions only. The password enters the key
// as a digest so a corrected retry never shares a rejected attempt's result.
func loginKey(creds domainauth.Credentials) string {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	sum := sha256.Sum256([]byte(email + "\x00" + creds.Password))
	return opLogin + ":" + hex.EncodeToString(sum[:16])
}

// loginFailure reports err as AuthenticationFailed while keeping its cause
// reachable through errors.Is/As.
func loginFailure(err error) error {
	var authErr *domainauth.Error
	if errors.As(err, &authErr) && authErr.Kind == domainauth.KindAuthenticationFailed {
		return err
	}
	status := 0
	if authErr != nil {
		status = authErr.Status
	}
	return &domainauth.Error{
		Kind:    domainauth.KindAuthenticationFailed,
		Message: domainauth.UserMessage(err),
		Status:  status,
		Cause:   err,
	}
}

func (c *AuthController) logout(ctx context.Context) {
	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	tokens, err := c.store.Tokens(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "read tokens before logout failed", "error", err)
	}
	if !c.State().IsAuthenticated && tokens.IsZero() {
		c.resetFailures()
		return
	}

	if err := c.api.Logout(ctx); err != nil {
		c.logger.InfoContext(ctx, "server logout failed, clearing local session anyway", "error", err)
	}
	if !c.isAlive() {
		return
	}
	c.clearLocal(ctx)
	c.setError("")
}

func (c *AuthController) refreshOrRevalidate(ctx context.Context) error {
	tokens, err := c.store.Tokens(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "read tokens failed", "error", err)
	}
	if tokens.Refresh == "" {
		return c.revalidate(ctx, opRevalidate)
	}
	if err := c.refresh(ctx, tokens.Refresh); err != nil {
		return err
	}
	if !c.State().IsAuthenticated {
		// Fresh tokens but no profile yet: ask who they belong to.
		return c.revalidate(ctx, opRevalidate)
	}
	return nil
}

// refresh exchanges refreshToken; every failure class counts toward the tolerance.
func (c *AuthController) refresh(ctx context.Context, refreshToken string) error {
	var res ports.RefreshResult
	err := c.withRetry(ctx, func(ctx context.Context) error {
		r, err := c.api.Refresh(ctx, refreshToken)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if !c.isAlive() {
		return ErrControllerClosed
	}
	if err != nil {
		return c.recordFailure(ctx, opRefresh, err)
	}

	if err := c.store.SetTokens(ctx, res.Tokens); err != nil {
		c.logger.WarnContext(ctx, "persist refreshed tokens failed", "error", err)
	}
	c.resetFailures()
	c.setError("")
	if res.Identity != nil {
		c.setIdentity(ctx, res.Identity)
	}
	return nil
}

// revalidate asks the server whether the session is still valid and reconciles
// the state with its answer. op names the caller for failure accounting.
func (c *AuthController) revalidate(ctx context.Context, op string) error {
	res, err := c.whoAmI(ctx)
	if !c.isAlive() {
		return ErrControllerClosed
	}

	switch {
	case err == nil && res.Authenticated:
		c.resetFailures()
		c.setError("")
		if res.Identity != nil {
			c.setIdentity(ctx, res.Identity)
		}
		return nil

	case err == nil || errors.Is(err, domainauth.ErrUnauthorized):
		return c.handleRejection(ctx, op)

	case errors.Is(err, context.Canceled):
		return err

	default:
		// Non-authoritative: keep the optimistic identity until the tolerance runs out.
		c.logger.WarnContext(ctx, "session revalidation failed", "error", err)
		c.setError(domainauth.UserMessage(err))
		if !c.State().IsAuthenticated {
			return err
		}
		return c.transportFailure(ctx, op, err)
	}
}

// transportFailure accounts for a non-authoritative revalidation failure.
// Initialization fails open: the cached identity stays and nothing is counted.
func (c *AuthController) transportFailure(ctx context.Context, op string, err error) error {
	if op == opInitialize {
		return err
	}
	return c.recordFailure(ctx, op, err)
}

// handleRejection runs after the server said the session is not valid. With a
// refresh token it tries one refresh and re-queries; otherwise it evicts at once.
// An eviction is a definitive answer, not a failure, and returns nil.
func (c *AuthController) handleRejection(ctx context.Context, op string) error {
	tokens, err := c.store.Tokens(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "read tokens failed", "error", err)
	}
	if tokens.Refresh == "" {
		c.evict(ctx, "session rejected by server")
		return nil
	}

	if err := c.refresh(ctx, tokens.Refresh); err != nil {
		return err
	}

	res, err := c.whoAmI(ctx)
	if !c.isAlive() {
		return ErrControllerClosed
	}
	switch {
	case err == nil && res.Authenticated:
		if res.Identity != nil {
			c.setIdentity(ctx, res.Identity)
		}
		return nil
	case err == nil || errors.Is(err, domainauth.ErrUnauthorized):
		c.evict(ctx, "session rejected after refresh")
		return nil
	default:
		c.setError(domainauth.UserMessage(err))
		return c.transportFailure(ctx, op, err)
	}
}

func (c *AuthController) whoAmI(ctx context.Context) (ports.WhoAmIResult, error) {
	var res ports.WhoAmIResult
	err := c.withRetry(ctx, func(ctx context.Context) error {
		r, err := c.api.WhoAmI(ctx)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// withRetry retries transient failures with exponential backoff.
func (c *AuthController) withRetry(ctx context.Context, fn func(context.Context) error) error {
	if c.cfg.RetryAttempts == 0 {
		return fn(ctx)
	}
	backoff := retry.WithMaxRetries(c.cfg.RetryAttempts, retry.NewExponential(c.cfg.RetryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && domainauth.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// recordFailure bumps the failure streak and forces a logout once it reaches
// the tolerance. Cancellations are not failures.
func (c *AuthController) recordFailure(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	c.mu.Lock()
	c.failures++
	n := c.failures
	c.mu.Unlock()
	metrics.EmitConsecutiveFailures(c.metrics, n)

	if n < c.cfg.FailureTolerance {
		c.logger.WarnContext(ctx, "tolerating session failure",
			"operation", op,
			"consecutive_failures", n,
			"tolerance", c.cfg.FailureTolerance,
			"error", err,
		)
		return err
	}

	c.logger.WarnContext(ctx, "failure tolerance exhausted, ending session",
		"operation", op,
		"consecutive_failures", n,
		"error", err,
	)
	c.clearLocal(ctx)
	expired := &domainauth.Error{Kind: domainauth.KindSessionExpired, Cause: err}
	c.setError(domainauth.UserMessage(expired))
	return expired
}

func (c *AuthController) resetFailures() {
	c.mu.Lock()
	changed := c.failures != 0
	c.failures = 0
	c.mu.Unlock()
	if changed {
		metrics.EmitConsecutiveFailures(c.metrics, 0)
	}
}

func (c *AuthController) evict(ctx context.Context, reason string) {
	c.logger.InfoContext(ctx, "evicting session", "reason", reason)
	c.clearLocal(ctx)
}

// clearLocal drops identity, cache, tokens and the API client's own session
// credentials, and resets the failure streak.
func (c *AuthController) clearLocal(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "clear session storage failed", "error", err)
	}
	c.api.ClearSession()
	c.resetFailures()
}

func (c *AuthController) setIdentity(ctx context.Context, id *domainauth.Identity) {
	if err := c.store.SetIdentity(ctx, id); err != nil {
		c.logger.WarnContext(ctx, "session cache not updated", "error", err)
	}
}

func (c *AuthController) setError(msg string) {
	if c.State().LastError != msg {
		c.store.SetError(msg)
	}
}

// syncTimer starts the background task when authenticated and stops it otherwise.
func (c *AuthController) syncTimer() {
	authenticated := c.store.State().IsAuthenticated

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case authenticated && c.alive && c.stopTimer == nil:
		ctx, cancel := context.WithCancel(c.life)
		c.stopTimer = cancel
		c.wg.Add(1)
		go c.runTimer(ctx)
	case (!authenticated || !c.alive) && c.stopTimer != nil:
		c.stopTimer()
		c.stopTimer = nil
	}
}

// TimerRunning reports whether the background revalidation task is active.
func (c *AuthController) TimerRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopTimer != nil
}

func (c *AuthController) runTimer(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.RevalidateInterval)
	defer ticker.Stop()

	c.logger.DebugContext(ctx, "session revalidation timer started", "interval", c.cfg.RevalidateInterval)
	for {
		select {
		case <-ctx.Done():
			c.logger.DebugContext(ctx, "session revalidation timer stopped")
			return
		case <-ticker.C:
			if err := c.tick(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrControllerClosed) {
				c.logger.InfoContext(ctx, "background session check failed", "error", err)
			}
		}
	}
}

// tick refreshes tokens near expiry, or of unknown expiry, and otherwise
// revalidates silently. It never toggles IsLoading.
func (c *AuthController) tick(ctx context.Context) error {
	tokens, err := c.store.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("read tokens: %w", err)
	}
	if tokens.Refresh != "" && (tokens.ExpiresAt.IsZero() || tokens.ExpiresWithin(c.now(), c.cfg.RefreshLeeway)) {
		return c.RefreshSession(ctx)
	}
	_, err = c.run(ctx, opRevalidate, func(ctx context.Context) (any, error) {
		return nil, c.revalidate(ctx, opRevalidate)
	})
	return err
}

func (c *AuthController) emit(op string, start time.Time, err error) {
	transition := "anonymous"
	if c.store.State().IsAuthenticated {
		transition = "authenticated"
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitAuthTransition(c.metrics, metrics.AuthMetric{
		Operation:  op,
		Transition: transition,
		Result:     result,
		Duration:   c.now().Sub(start),
		Err:        err,
	})
}

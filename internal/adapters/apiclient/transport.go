package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"

	"github.com/upjv/prospection-ui/internal/ports"
)

// HeaderRequestID correlates client and server logs.
const HeaderRequestID = "X-Request-ID"

// requestIDTransport stamps every request with a fresh request id and the user agent.
type requestIDTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get(HeaderRequestID) == "" {
		r.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

type bearerKey struct{}

// withBearer forces a specific access token for requests made with ctx.
func withBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// bearerTransport attaches the current access token through oauth2.Transport.
// Requests go out without Authorization when no token is held, so cookie
// sessions keep working.
type bearerTransport struct {
	source ports.TokenSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, _ := req.Context().Value(bearerKey{}).(string)
	if token == "" && t.source != nil {
		tokens, err := t.source.Tokens(req.Context())
		if err == nil {
			token = tokens.Access
		}
	}
	if token == "" {
		return t.base.RoundTrip(req)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return (&oauth2.Transport{Source: src, Base: t.base}).RoundTrip(req)
}

// sessionJar is a public-suffix aware cookie jar that can be emptied while
// the client is in use.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

var _ http.CookieJar = (*sessionJar)(nil)

func newSessionJar() (*sessionJar, error) {
	j := &sessionJar{}
	if err := j.reset(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *sessionJar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("create cookie jar: %w", err)
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return nil
}

func (j *sessionJar) current() *cookiejar.Jar {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current().SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Defaults for Options fields left zero.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultRefreshTimeout = 10 * time.Second
)

// Options configures a Transport or Client.
type Options struct {
	// BaseURL is the API root, e.g. "https://api.example.com/api".
	BaseURL string

	// Base sends the prepared requests. Defaults to a TLS 1.2+ transport.
	Base http.RoundTripper

	// Navigator is the login surface used when a session ends. Optional.
	Navigator Navigator

	// Observer receives recovery events. Optional.
	Observer Observer

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger

	// RequestTimeout bounds a whole call, recovery included (Client only).
	RequestTimeout time.Duration

	// RefreshTimeout bounds the refresh call.
	RefreshTimeout time.Duration

	// DisableRefreshCoalescing lets every concurrent 401 issue its own
	// refresh call instead of sharing the one in flight. Concurrent
	// refreshes race to overwrite the stored tokens; last write wins.
	DisableRefreshCoalescing bool
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func defaultBaseTransport() http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

var errSessionCleared = errors.New("session cleared during token refresh")

// Transport is an http.RoundTripper that authenticates every request and
// recovers from an expired session with at most one refresh and one retry
// per original request.
type Transport struct {
	base       http.RoundTripper
	store      TokenStore
	auth       *Authenticator
	terminator *Terminator
	refresher  *refresher
	observer   Observer
	logger     zerolog.Logger

	coalesce bool
	group    singleflight.Group
}

// NewTransport creates a Transport over store.
func NewTransport(store TokenStore, opts Options) (*Transport, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	logger := opts.logger()
	base := opts.Base
	if base == nil {
		base = defaultBaseTransport()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NoopObserver{}
	}
	refreshTimeout := opts.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}

	r, err := newRefresher(
		opts.BaseURL,
		&http.Client{Transport: base},
		refreshTimeout,
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &Transport{
		base:       base,
		store:      store,
		auth:       NewAuthenticator(store, logger),
		terminator: NewTerminator(store, opts.Navigator, observer, logger),
		refresher:  r,
		observer:   observer,
		logger:     logger,
		coalesce:   !opts.DisableRefreshCoalescing,
	}, nil
}

// RoundTrip implements http.RoundTripper. A 401 that cannot be recovered is
// returned as is, after the session has been torn down where appropriate.
// A failed refresh is returned as the error.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	sentToken, err := t.auth.Authenticate(out)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	return t.recover(out, resp, sentToken)
}

func (t *Transport) recover(req *http.Request, resp *http.Response, sentToken string) (*http.Response, error) {
	ctx := req.Context()
	path := req.URL.Path
	log := t.logger.With().
		Str("path", path).
		Str("request_id", req.Header.Get(headerRequestID)).
		Logger()

	if isRetried(ctx) {
		log.Debug().Msg("401 after refresh, giving up")
		return resp, nil
	}
	ctx = withRetried(ctx)

	if IsPublicForRecovery(path) {
		log.Debug().Msg("401 on public endpoint")
		return resp, nil
	}
	if IsCurrentUser(path) && t.store.Get(AccessToken) == "" {
		log.Debug().Msg("session probe without access token")
		return resp, nil
	}

	t.observer.AccessTokenRejected(path)

	refreshToken := t.store.Get(RefreshToken)
	if refreshToken == "" {
		log.Warn().Msg("access token rejected and no refresh token stored")
		t.terminator.Terminate(path)
		return resp, nil
	}

	if _, err := t.obtainToken(ctx, refreshToken, sentToken); err != nil {
		discard(resp)
		// The caller gave up; a shared refresh may still land.
		if ctx.Err() != nil {
			log.Debug().Err(err).Msg("request cancelled during token refresh")
			return nil, err
		}
		log.Warn().Err(err).Msg("token refresh failed")
		t.observer.RefreshFailed(err)
		t.terminator.Terminate(path)
		return nil, err
	}

	discard(resp)
	retryReq, err := resubmission(ctx, req)
	if err != nil {
		return nil, err
	}

	t.observer.Retrying(path)
	log.Debug().Msg("retrying with refreshed token")
	return t.RoundTrip(retryReq)
}

// obtainToken returns a fresh access token. With coalescing on, a request
// whose token was already replaced by a concurrent refresh reuses the new
// one, and concurrent refreshes of the same token share one call.
func (t *Transport) obtainToken(ctx context.Context, refreshToken, sentToken string) (string, error) {
	if !t.coalesce {
		return t.refreshSession(ctx, refreshToken)
	}

	if current := t.store.Get(AccessToken); current != "" && current != sentToken {
		return current, nil
	}

	ch := t.group.DoChan(refreshToken, func() (any, error) {
		return t.refreshSession(context.WithoutCancel(ctx), refreshToken)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (t *Transport) refreshSession(ctx context.Context, refreshToken string) (string, error) {
	t.observer.Refreshing()

	token, err := t.refresher.refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	// A session cleared while the refresh was in flight stays cleared.
	if t.store.Get(RefreshToken) == "" {
		return "", errSessionCleared
	}
	SaveSession(t.store, Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	})
	t.observer.RefreshOK()
	return token.AccessToken, nil
}

// resubmission copies req for its single retry. The Authorization header is
// dropped so the retry picks up whatever token is stored now.
func resubmission(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	out.Header.Del(headerAuthorization)
	if hasBody(req) {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	return out, nil
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

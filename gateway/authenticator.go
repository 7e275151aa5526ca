package gateway

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-ID"

	jsonContentType = "application/json"
)

// Authenticator prepares outgoing requests: bearer credentials for
// protected endpoints and a default payload encoding.
type Authenticator struct {
	store  TokenStore
	logger zerolog.Logger
}

// NewAuthenticator creates an Authenticator reading tokens from store.
func NewAuthenticator(store TokenStore, logger zerolog.Logger) *Authenticator {
	return &Authenticator{store: store, logger: logger}
}

// Authenticate mutates req's headers in place and returns the access token
// that was attached, or "" when none was.
func (a *Authenticator) Authenticate(req *http.Request) (string, error) {
	if req.URL == nil {
		return "", fmt.Errorf("request has no URL")
	}

	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.NewString())
	}

	if err := makeReplayable(req); err != nil {
		return "", fmt.Errorf("failed to buffer request body: %w", err)
	}
	negotiateContentType(req)

	path := req.URL.Path
	if IsPublicRequest(path) {
		req.Header.Del(headerAuthorization)
		return "", nil
	}

	token := a.store.Get(AccessToken)
	if token == "" {
		a.logger.Debug().Str("path", path).Msg("no access token, sending unauthenticated")
		return "", nil
	}
	req.Header.Set(headerAuthorization, "Bearer "+token)
	return token, nil
}

func hasBody(req *http.Request) bool {
	return req.Body != nil && req.Body != http.NoBody
}

// negotiateContentType leaves an explicit Content-Type alone, including a
// multipart one carrying its boundary, and leaves raw payloads without one
// so the sender can decide. Everything else defaults to JSON.
func negotiateContentType(req *http.Request) {
	if !hasBody(req) {
		return
	}
	ct := req.Header.Get(headerContentType)
	if ct != "" || isRawPayload(req.Context()) {
		return
	}
	req.Header.Set(headerContentType, jsonContentType)
}

// makeReplayable buffers a body that cannot be re-read so the request can
// be resubmitted after a refresh.
func makeReplayable(req *http.Request) error {
	if !hasBody(req) || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	return nil
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const refreshEndpoint = "/auth/refresh"

// refreshResponse accepts the tokens either at the top level or inside the
// usual {status, data} envelope.
type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Data         *struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
}

func (r refreshResponse) tokens() (string, string) {
	if r.Token == "" && r.Data != nil {
		return r.Data.Token, r.Data.RefreshToken
	}
	return r.Token, r.RefreshToken
}

// refresher exchanges a refresh token for a new access token. It talks to
// the backend directly, never through the gateway Transport, so a failing
// refresh cannot recurse into recovery.
type refresher struct {
	url     string
	client  *retry.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// newRefresher makes exactly one attempt per refresh: a replayed refresh
// would be a second refresh for the same 401, and the retry client would
// report an exhausted 5xx as a RetryError without the backend status.
func newRefresher(baseURL string, httpClient *http.Client, timeout time.Duration, logger zerolog.Logger) (*refresher, error) {
	client, err := retry.NewClient(
		retry.WithHTTPClient(httpClient),
		retry.WithMaxRetries(0),
		retry.WithRetryableChecker(func(error, *http.Response) bool { return false }),
		retry.WithNoLogging(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh client: %w", err)
	}
	return &refresher{
		url:     strings.TrimRight(baseURL, "/") + refreshEndpoint,
		client:  client,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// refresh returns the new token pair. When the server does not rotate the
// refresh token, the one passed in is kept.
func (r *refresher) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set(headerContentType, jsonContentType)

	resp, err := r.client.DoWithContext(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, refreshFailure(resp, body)
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse refresh response: %w", err)
	}

	access, rotated := parsed.tokens()
	if access == "" {
		return nil, errors.New("refresh response has no token")
	}
	if rotated == "" {
		rotated = refreshToken
	}

	r.logger.Debug().Bool("rotated", rotated != refreshToken).Msg("access token refreshed")
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: rotated,
		TokenType:    "Bearer",
	}, nil
}

// refreshFailure turns a non-200 refresh response into an
// oauth2.RetrieveError, tagged ErrRefreshTokenExpired when the backend
// rejected the refresh token itself.
func refreshFailure(resp *http.Response, body []byte) error {
	se := parseServerError(body)
	retrieveErr := &oauth2.RetrieveError{
		Response:         resp,
		Body:             body,
		ErrorCode:        se.Code,
		ErrorDescription: se.Message,
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrRefreshTokenExpired, retrieveErr)
	default:
		return retrieveErr
	}
}

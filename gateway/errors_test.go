package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestNormalize(t *testing.T) {
	transportErr := errors.New(`Get "http://api/invoices": dial tcp: connection refused`)

	tests := []struct {
		name   string
		err    error
		status int
		body   string
		want   *APIError
	}{
		{
			name:   "server message and code",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"NIF is invalid","code":"INVALID_NIF"}`,
			want:   &APIError{Message: "NIF is invalid", Status: 422, Code: "INVALID_NIF"},
		},
		{
			name:   "error field used as message",
			status: http.StatusBadRequest,
			body:   `{"error":"bad request"}`,
			want:   &APIError{Message: "bad request", Status: 400},
		},
		{
			name: "transport error message",
			err:  transportErr,
			want: &APIError{Message: transportErr.Error()},
		},
		{
			name:   "fallback message",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			want:   &APIError{Message: fallbackMessage, Status: 502},
		},
		{
			name:   "401 without code",
			status: http.StatusUnauthorized,
			body:   `{"message":"Token expired"}`,
			want:   &APIError{Message: "Token expired", Status: 401, Code: CodeNotAuthenticated},
		},
		{
			name:   "401 keeps server code",
			status: http.StatusUnauthorized,
			body:   `{"message":"Account locked","code":"ACCOUNT_LOCKED"}`,
			want:   &APIError{Message: "Account locked", Status: 401, Code: "ACCOUNT_LOCKED"},
		},
		{
			name: "already normalized",
			err:  fmt.Errorf("wrapped: %w", &APIError{Message: "x", Status: 409}),
			want: &APIError{Message: "x", Status: 409},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.err, tt.status, []byte(tt.body))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_RefreshFailure(t *testing.T) {
	retrieveErr := &oauth2.RetrieveError{
		Response:         &http.Response{StatusCode: http.StatusUnauthorized},
		Body:             []byte(`{"error":"invalid_grant"}`),
		ErrorCode:        "invalid_grant",
		ErrorDescription: "",
	}
	err := fmt.Errorf("%w: %w", ErrRefreshTokenExpired, retrieveErr)

	got := Normalize(err, 0, nil)
	assert.Equal(t, &APIError{Message: "invalid_grant", Status: 401, Code: "invalid_grant"}, got)
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "boom", (&APIError{Message: "boom"}).Error())
	assert.Equal(t, "boom (status 500)", (&APIError{Message: "boom", Status: 500}).Error())
	assert.Equal(t,
		"Token expired (status 401, NOT_AUTHENTICATED)",
		(&APIError{Message: "Token expired", Status: 401, Code: CodeNotAuthenticated}).Error(),
	)
}

func TestIsNotAuthenticated(t *testing.T) {
	assert.True(t, IsNotAuthenticated(&APIError{Status: 401}))
	assert.False(t, IsNotAuthenticated(&APIError{Status: 403}))
	assert.False(t, IsNotAuthenticated(errors.New("401")))
}

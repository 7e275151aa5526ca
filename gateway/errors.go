package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// CodeNotAuthenticated is the code given to a 401 that carries no server code.
const CodeNotAuthenticated = "NOT_AUTHENTICATED"

const fallbackMessage = "An unexpected error occurred"

// ErrRefreshTokenExpired indicates that the refresh token has expired or is invalid
var ErrRefreshTokenExpired = errors.New("refresh token expired or invalid")

// APIError is the normalized failure every caller of the gateway receives.
// Status and Code are zero when unknown.
type APIError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Status != 0 && e.Code != "":
		return fmt.Sprintf("%s (status %d, %s)", e.Message, e.Status, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	default:
		return e.Message
	}
}

// IsNotAuthenticated reports whether err is a normalized 401.
func IsNotAuthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// serverError is the error body the backend sends.
type serverError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func parseServerError(body []byte) serverError {
	var se serverError
	if len(body) > 0 {
		_ = json.Unmarshal(body, &se)
	}
	if se.Message == "" {
		se.Message = se.Error
	}
	return se
}

// Normalize builds the APIError for a failed call. err is the transport
// error, if any; status and body describe the response, if one arrived.
// A failed refresh call carries its own status and body.
func Normalize(err error, status int, body []byte) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		body = retrieveErr.Body
	}

	se := parseServerError(body)
	out := &APIError{Message: se.Message, Status: status, Code: se.Code}
	if retrieveErr != nil {
		if out.Message == "" {
			out.Message = retrieveErr.ErrorDescription
		}
		if out.Code == "" {
			out.Code = retrieveErr.ErrorCode
		}
	}

	if out.Message == "" && err != nil {
		out.Message = err.Error()
	}
	if out.Message == "" {
		out.Message = fallbackMessage
	}
	if out.Status == http.StatusUnauthorized && out.Code == "" {
		out.Code = CodeNotAuthenticated
	}
	return out
}

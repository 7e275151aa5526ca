package gateway

import "strings"

// Endpoints that never carry a bearer token. Matching is by substring so
// base-path prefixes and query strings do not matter.
var requestPublicEndpoints = []string{
	"/payments/tokenize",
	"/auth/register",
	"/auth/login",
	"/auth/refresh",
	"/auth/google/config",
	"/auth/google",
	"/auth/verify-email",
	"/auth/resend-verification",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/errors/translate",
}

// Endpoints whose 401 is an application-level rejection, never a reason to
// refresh. This list intentionally omits the two Google endpoints present in
// requestPublicEndpoints: they are sent without a token but are not exempted
// from recovery. Kept as two lists until the backend owners confirm whether
// the difference is meant.
var recoveryPublicEndpoints = []string{
	"/payments/tokenize",
	"/auth/register",
	"/auth/login",
	"/auth/refresh",
	"/auth/verify-email",
	"/auth/resend-verification",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/errors/translate",
}

const currentUserEndpoint = "/auth/me"

// IsPublicRequest reports whether path must be sent without credentials.
func IsPublicRequest(path string) bool {
	return matchesAny(path, requestPublicEndpoints)
}

// IsPublicForRecovery reports whether a 401 on path must not trigger a refresh.
func IsPublicForRecovery(path string) bool {
	return matchesAny(path, recoveryPublicEndpoints)
}

// IsCurrentUser reports whether path is the session probe endpoint.
func IsCurrentUser(path string) bool {
	return strings.Contains(path, currentUserEndpoint)
}

func matchesAny(path string, endpoints []string) bool {
	for _, e := range endpoints {
		if strings.Contains(path, e) {
			return true
		}
	}
	return false
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
)

// AuthResponse is what the session-creating endpoints return.
type AuthResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"user,omitempty"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthAPI wraps the session lifecycle endpoints. Every operation that
// yields tokens overwrites the stored session.
type AuthAPI struct {
	client *Client
}

// NewAuthAPI creates an AuthAPI on top of c.
func NewAuthAPI(c *Client) *AuthAPI {
	return &AuthAPI{client: c}
}

func (a *AuthAPI) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := a.client.Post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &APIError{Message: "login response has no token"}
	}
	a.save(resp)
	return &resp, nil
}

// Register creates an account. Backends that require email verification
// first return no tokens; the stored session is then left untouched.
func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.client.Post(ctx, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		a.save(resp)
	}
	return &resp, nil
}

func (a *AuthAPI) VerifyEmail(ctx context.Context, token string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.client.Post(ctx, "/auth/verify-email", map[string]string{"token": token}, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		a.save(resp)
	}
	return &resp, nil
}

// CompleteOAuth stores the tokens handed over by the OAuth callback.
func (a *AuthAPI) CompleteOAuth(accessToken, refreshToken string) error {
	if accessToken == "" {
		return errors.New("oauth callback carried no token")
	}
	a.save(AuthResponse{Token: accessToken, RefreshToken: refreshToken})
	return nil
}

// Logout tells the backend and clears the stored session. The session is
// cleared even when the backend call fails.
func (a *AuthAPI) Logout(ctx context.Context) error {
	err := a.client.Post(ctx, "/auth/logout", nil, nil)
	a.client.Store().Clear()
	return err
}

// Me fetches the current user into out. Without a session this fails with
// a NOT_AUTHENTICATED *APIError and nothing else happens.
func (a *AuthAPI) Me(ctx context.Context, out any) error {
	return a.client.Get(ctx, "/auth/me", out)
}

func (a *AuthAPI) ForgotPassword(ctx context.Context, email string) error {
	return a.client.Post(ctx, "/auth/forgot-password", map[string]string{"email": email}, nil)
}

func (a *AuthAPI) ResetPassword(ctx context.Context, token, password string) error {
	return a.client.Post(ctx, "/auth/reset-password", map[string]string{
		"token":    token,
		"password": password,
	}, nil)
}

func (a *AuthAPI) ResendVerification(ctx context.Context, email string) error {
	return a.client.Post(ctx, "/auth/resend-verification", map[string]string{"email": email}, nil)
}

func (a *AuthAPI) save(resp AuthResponse) {
	SaveSession(a.client.Store(), Session{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
	})
}

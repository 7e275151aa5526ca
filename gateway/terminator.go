package gateway

import "github.com/rs/zerolog"

// Navigator is the caller's login surface.
type Navigator interface {
	// OnLoginView reports whether the user is already at the login surface.
	OnLoginView() bool
	// RedirectToLogin sends the user to the login surface.
	RedirectToLogin()
}

// Terminator tears the session down after an unrecoverable 401.
type Terminator struct {
	store    TokenStore
	nav      Navigator
	observer Observer
	logger   zerolog.Logger
}

// NewTerminator creates a Terminator. nav may be nil, in which case no
// redirect is ever issued.
func NewTerminator(store TokenStore, nav Navigator, observer Observer, logger zerolog.Logger) *Terminator {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Terminator{store: store, nav: nav, observer: observer, logger: logger}
}

// Terminate clears both tokens and redirects to login, unless the user is
// already there or path is the session probe (either would loop).
func (t *Terminator) Terminate(path string) {
	t.store.Clear()
	t.observer.SessionTerminated()

	if t.nav == nil || IsCurrentUser(path) || t.nav.OnLoginView() {
		t.logger.Debug().Str("path", path).Msg("session cleared without redirect")
		return
	}

	t.logger.Warn().Str("path", path).Msg("session ended, redirecting to login")
	t.nav.RedirectToLogin()
}

package tui

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{ ServerURL string }

// MsgSessionFound signals that a stored session exists for the server.
type MsgSessionFound struct{}

// MsgSessionNotFound signals that no session is stored for the server.
type MsgSessionNotFound struct{}

// MsgRequestStarted signals that an API call is being sent.
type MsgRequestStarted struct {
	Method string
	Path   string
}

// MsgAccessTokenRejected signals that the server answered 401 to an authenticated call.
type MsgAccessTokenRejected struct{ Path string }

// MsgRefreshing signals that a session refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the session was refreshed.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that the session refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgRetrying signals that the rejected call is sent again with the new token.
type MsgRetrying struct{ Path string }

// MsgSessionTerminated signals that the stored session was cleared.
type MsgSessionTerminated struct{}

// MsgLoginRequired signals that the user has to log in again.
type MsgLoginRequired struct{}

// MsgSessionSaved signals that a new session was stored.
type MsgSessionSaved struct{ Path string }

// MsgLoggedOut signals that the session was closed.
type MsgLoggedOut struct{}

// MsgDone signals successful completion of the command.
type MsgDone struct {
	Summary string
	Body    string
}

// MsgFatal signals a fatal error that should terminate the command.
type MsgFatal struct{ Err error }

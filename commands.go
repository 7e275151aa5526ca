package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/go-authgate/session-gateway/gateway"
	"github.com/go-authgate/session-gateway/tui"
)

var errUsage = errors.New("missing or invalid command, see -h")

// cliNavigator is the CLI's login surface: the login command itself.
// A redirect tells the user to run it.
type cliNavigator struct {
	onLogin atomic.Bool
	d       tui.Displayer
}

func (n *cliNavigator) OnLoginView() bool { return n.onLogin.Load() }

func (n *cliNavigator) RedirectToLogin() {
	if n.onLogin.Swap(true) {
		return
	}
	n.d.LoginRequired()
}

// app holds what every command needs.
type app struct {
	store  *gateway.FileStore
	client *gateway.Client
	auth   *gateway.AuthAPI
	nav    *cliNavigator
	d      tui.Displayer
	// out receives response bodies; nil sends them to the displayer.
	out    io.Writer
	logger zerolog.Logger
}

func newApp(d tui.Displayer, out io.Writer, command string, logger zerolog.Logger) (*app, error) {
	store, err := gateway.NewFileStore(tokenFile, serverURL, logger)
	if err != nil {
		return nil, err
	}

	nav := &cliNavigator{d: d}
	nav.onLogin.Store(command == "login")

	client, err := gateway.NewClient(store, gatewayOptions(nav, d, &logger))
	if err != nil {
		return nil, err
	}

	return &app{
		store:  store,
		client: client,
		auth:   gateway.NewAuthAPI(client),
		nav:    nav,
		d:      d,
		out:    out,
		logger: logger,
	}, nil
}

// dispatch runs the command named by args[0].
func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch {
	case cmd == "login" && len(rest) == 2:
		return a.login(ctx, rest[0], rest[1])
	case cmd == "logout" && len(rest) == 0:
		return a.logout(ctx)
	case cmd == "me" && len(rest) == 0:
		return a.me(ctx)
	case cmd == "status" && len(rest) == 0:
		return a.status()
	case cmd == "get" && len(rest) == 1:
		return a.get(ctx, rest[0])
	case cmd == "post" && len(rest) == 2:
		return a.post(ctx, rest[0], rest[1])
	case cmd == "upload" && len(rest) == 3:
		return a.upload(ctx, rest[0], rest[1], rest[2])
	default:
		return errUsage
	}
}

func (a *app) login(ctx context.Context, email, password string) error {
	a.d.RequestStarted(http.MethodPost, "/auth/login")
	resp, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.d.SessionSaved(a.store.Path())
	return a.finish("Logged in as "+email, resp.User)
}

func (a *app) logout(ctx context.Context) error {
	if gateway.LoadSession(a.store).Empty() {
		a.d.SessionNotFound()
		a.d.Done("Not logged in", "")
		return nil
	}

	a.d.RequestStarted(http.MethodPost, "/auth/logout")
	err := a.auth.Logout(ctx)
	a.d.LoggedOut()
	if err != nil {
		a.logger.Warn().Err(err).Msg("logout call failed, local session cleared anyway")
		return err
	}
	a.d.Done("Logged out", "")
	return nil
}

func (a *app) me(ctx context.Context) error {
	var user json.RawMessage
	a.d.RequestStarted(http.MethodGet, "/auth/me")
	if err := a.auth.Me(ctx, &user); err != nil {
		return err
	}
	return a.finish("Current user", user)
}

func (a *app) status() error {
	s := gateway.LoadSession(a.store)
	if s.Empty() {
		a.d.SessionNotFound()
		a.d.Done("No session for "+serverURL, "")
		return nil
	}

	a.d.SessionFound()
	var b strings.Builder
	fmt.Fprintf(&b, "Server:        %s\n", serverURL)
	fmt.Fprintf(&b, "Session file:  %s\n", a.store.Path())
	fmt.Fprintf(&b, "Access token:  %s\n", preview(s.AccessToken))
	fmt.Fprintf(&b, "Refresh token: %s", preview(s.RefreshToken))
	a.d.Done("Session stored", b.String())
	return nil
}

func (a *app) get(ctx context.Context, path string) error {
	var out json.RawMessage
	a.d.RequestStarted(http.MethodGet, path)
	if err := a.client.Get(ctx, path, &out); err != nil {
		return err
	}
	return a.finish("GET "+path, out)
}

func (a *app) post(ctx context.Context, path, body string) error {
	if !json.Valid([]byte(body)) {
		return fmt.Errorf("request body is not valid JSON: %q", body)
	}

	var out json.RawMessage
	a.d.RequestStarted(http.MethodPost, path)
	if err := a.client.Post(ctx, path, json.RawMessage(body), &out); err != nil {
		return err
	}
	return a.finish("POST "+path, out)
}

func (a *app) upload(ctx context.Context, path, field, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	var out json.RawMessage
	a.d.RequestStarted(http.MethodPost, path)
	err = a.client.Upload(ctx, path, nil, []gateway.File{
		{Field: field, Name: filepath.Base(file), Reader: f},
	}, &out)
	if err != nil {
		return err
	}
	return a.finish("Uploaded "+filepath.Base(file)+" to "+path, out)
}

// finish reports success and writes the response body.
func (a *app) finish(summary string, body json.RawMessage) error {
	pretty := prettyJSON(body)
	if a.out == nil {
		a.d.Done(summary, pretty)
		return nil
	}

	a.d.Done(summary, "")
	if pretty == "" {
		return nil
	}
	_, err := fmt.Fprintln(a.out, pretty)
	return err
}

func prettyJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// preview shortens a token for display.
func preview(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}

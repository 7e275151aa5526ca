package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"
	"github.com/go-authgate/session-gateway/gateway"
)

// Displayer abstracts all output of a CLI command. It doubles as the
// gateway's Observer so session recovery shows up as it happens.
type Displayer interface {
	gateway.Observer

	Banner(serverURL string)
	SessionFound()
	SessionNotFound()
	RequestStarted(method, path string)
	LoginRequired()
	SessionSaved(path string)
	LoggedOut()
	Done(summary, body string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner(serverURL string) {
	fmt.Fprintf(p.w, "=== Session Gateway (%s) ===\n", serverURL)
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionFound() {
	fmt.Fprintln(p.w, "Found stored session.")
}

func (p *PlainDisplayer) SessionNotFound() {
	fmt.Fprintln(p.w, "No stored session.")
}

func (p *PlainDisplayer) RequestStarted(method, path string) {
	fmt.Fprintf(p.w, "%s %s\n", method, path)
}

func (p *PlainDisplayer) AccessTokenRejected(path string) {
	fmt.Fprintf(p.w, "Access token rejected on %s (401), refreshing...\n", path)
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing session...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Session refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) Retrying(path string) {
	fmt.Fprintf(p.w, "Retrying %s with the new token...\n", path)
}

func (p *PlainDisplayer) SessionTerminated() {
	fmt.Fprintln(p.w, "Session ended, stored tokens cleared.")
}

func (p *PlainDisplayer) LoginRequired() {
	fmt.Fprintln(p.w, "Please log in again: session-gateway login EMAIL PASSWORD")
}

func (p *PlainDisplayer) SessionSaved(path string) {
	fmt.Fprintf(p.w, "Session saved to %s\n", path)
}

func (p *PlainDisplayer) LoggedOut() {
	fmt.Fprintln(p.w, "Logged out.")
}

func (p *PlainDisplayer) Done(summary, body string) {
	fmt.Fprintln(p.w, summary)
	if body != "" {
		fmt.Fprintln(p.w, body)
	}
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct {
	gateway.NoopObserver
}

func (NoopDisplayer) Banner(_ string)            {}
func (NoopDisplayer) SessionFound()              {}
func (NoopDisplayer) SessionNotFound()           {}
func (NoopDisplayer) RequestStarted(_, _ string) {}
func (NoopDisplayer) LoginRequired()             {}
func (NoopDisplayer) SessionSaved(_ string)      {}
func (NoopDisplayer) LoggedOut()                 {}
func (NoopDisplayer) Done(_, _ string)           {}
func (NoopDisplayer) Fatal(_ error)              {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner(serverURL string) {
	t.p.Send(MsgBanner{ServerURL: serverURL})
}

func (t *ProgramDisplayer) SessionFound() {
	t.p.Send(MsgSessionFound{})
}

func (t *ProgramDisplayer) SessionNotFound() {
	t.p.Send(MsgSessionNotFound{})
}

func (t *ProgramDisplayer) RequestStarted(method, path string) {
	t.p.Send(MsgRequestStarted{Method: method, Path: path})
}

func (t *ProgramDisplayer) AccessTokenRejected(path string) {
	t.p.Send(MsgAccessTokenRejected{Path: path})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) Retrying(path string) {
	t.p.Send(MsgRetrying{Path: path})
}

func (t *ProgramDisplayer) SessionTerminated() {
	t.p.Send(MsgSessionTerminated{})
}

func (t *ProgramDisplayer) LoginRequired() {
	t.p.Send(MsgLoginRequired{})
}

func (t *ProgramDisplayer) SessionSaved(path string) {
	t.p.Send(MsgSessionSaved{Path: path})
}

func (t *ProgramDisplayer) LoggedOut() {
	t.p.Send(MsgLoggedOut{})
}

func (t *ProgramDisplayer) Done(summary, body string) {
	t.p.Send(MsgDone{Summary: summary, Body: body})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the elapsed timer.
type tickMsg time.Time

// state represents the current phase of a command.
type state int

const (
	stateInit          state = iota
	stateRequesting          // API call in flight
	stateRefreshing          // refreshing the session after a 401
	stateLoginRequired       // session ended, user must log in
	stateSuccess             // all done
	stateError               // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the gateway CLI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	serverURL string

	// Request in flight
	method    string
	path      string
	startedAt time.Time
	elapsed   time.Duration

	// Success / error display
	summary string
	body    string
	errMsg  string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleLoginBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.state != stateRequesting && m.state != stateRefreshing {
			return m, nil
		}
		m.elapsed = time.Time(msg).Sub(m.startedAt)
		return m, tickAfterSecond()

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── gateway messages ─────────────────────────────────────────────────────

	case MsgBanner:
		m.serverURL = msg.ServerURL
		return m, nil

	case MsgSessionFound:
		m.addStatus(statusOK, "Found stored session")
		return m, nil

	case MsgSessionNotFound:
		m.addStatus(statusInfo, "No stored session")
		return m, nil

	case MsgRequestStarted:
		m.method = msg.Method
		m.path = msg.Path
		m.startedAt = time.Now()
		m.elapsed = 0
		m.state = stateRequesting
		return m, tickAfterSecond()

	case MsgAccessTokenRejected:
		m.addStatus(statusWarn, fmt.Sprintf("Access token rejected on %s (401)", msg.Path))
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusInfo, "Refreshing session...")
		return m, nil

	case MsgRefreshOK:
		m.state = stateRequesting
		m.addStatus(statusOK, "Session refreshed")
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgRetrying:
		m.addStatus(statusInfo, "Retrying "+msg.Path)
		return m, nil

	case MsgSessionTerminated:
		m.addStatus(statusWarn, "Session ended, stored tokens cleared")
		return m, nil

	case MsgLoginRequired:
		m.state = stateLoginRequired
		return m, nil

	case MsgSessionSaved:
		m.addStatus(statusOK, "Session saved to "+msg.Path)
		return m, nil

	case MsgLoggedOut:
		m.addStatus(statusOK, "Logged out")
		return m, nil

	case MsgDone:
		m.summary = msg.Summary
		m.body = msg.Body
		if m.state != stateLoginRequired {
			m.state = stateSuccess
		}
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		if m.state != stateLoginRequired {
			m.state = stateError
		}
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	case stateLoginRequired:
		return tea.NewView(m.viewLoginRequired())
	default:
		return tea.NewView(m.viewMain())
	}
}

func (m Model) viewTitle() string {
	title := "  Session Gateway  "
	if m.serverURL != "" {
		title = "  Session Gateway · " + m.serverURL + "  "
	}
	return "\n" + styleTitleBox.Render(title) + "\n\n"
}

// viewMain is shown while a command is running.
func (m Model) viewMain() string {
	var b strings.Builder
	b.WriteString(m.viewTitle())

	switch m.state {
	case stateRequesting:
		b.WriteString(m.spinner.View())
		b.WriteString(" " + styleBold.Render(m.method) + " " + m.path + "  ")
		b.WriteString(styleDim.Render(formatDuration(m.elapsed)))
		b.WriteString("\n")

	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing session...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown after a command completed.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ " + m.summary))
	b.WriteString("\n")
	if m.body != "" {
		b.WriteString("\n")
		b.WriteString(m.body)
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewLoginRequired is the CLI's login view: shown once a session ended.
func (m Model) viewLoginRequired() string {
	var b strings.Builder

	b.WriteString(m.viewTitle())
	b.WriteString(styleBold.Render("Your session has ended. Log in again with:"))
	b.WriteString("\n\n")
	b.WriteString(styleLoginBox.Render("  session-gateway login EMAIL PASSWORD  "))
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(styleDim.Render("  " + m.errMsg))
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Request failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// tickAfterSecond returns a command that fires tickMsg after one second.
func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

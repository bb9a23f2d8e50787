// Command attendsync-tui is a terminal dashboard for a running
// attendsyncd daemon.
//
// Usage:
//
//	attendsync-tui --api http://127.0.0.1:8642
//
// The dashboard shows live connectivity, queue depth, and sync state,
// lets the operator force a sync cycle, and has a small form for
// queueing an attendance mark by hand.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campuskit/attendsync/internal/status"
	"github.com/campuskit/attendsync/internal/types"
)

func main() {
	apiURL := flag.String("api", "http://127.0.0.1:8642", "attendsyncd status API URL")
	flag.Parse()

	p := tea.NewProgram(newModel(*apiURL), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────
// Bubble Tea messages
// ─────────────────────────────────────────────────────

type statusMsg struct {
	snap status.Snapshot
	err  error
}

type actionMsg struct {
	note string
	err  error
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// ─────────────────────────────────────────────────────
// Styles
// ─────────────────────────────────────────────────────

var (
	primaryColor = lipgloss.Color("#7C3AED")
	mutedColor   = lipgloss.Color("#6B7280")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	warnColor    = lipgloss.Color("#F59E0B")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	onlineStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	syncingStyle = lipgloss.NewStyle().Foreground(warnColor).Bold(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(warnColor)
	footerStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// ─────────────────────────────────────────────────────
// Model
// ─────────────────────────────────────────────────────

const (
	fieldStudent = iota
	fieldSubject
	fieldDate
	fieldStatus
	fieldMarkedBy
	fieldCount
)

type model struct {
	apiURL string
	client *http.Client

	snap    status.Snapshot
	fetched bool
	lastErr error
	notice  string

	formOpen bool
	focus    int
	inputs   []textinput.Model

	width int
}

func newModel(apiURL string) model {
	labels := []string{"student id", "subject id", "2006-01-02", "present", "faculty id"}
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = labels[i]
		ti.CharLimit = 64
		ti.Width = 24
		inputs[i] = ti
	}
	inputs[fieldStatus].SetValue(string(types.StatusPresent))

	return model{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 5 * time.Second},
		inputs: inputs,
		width:  80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), tickCmd())
}

func (m model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Get(m.apiURL + "/status")
		if err != nil {
			return statusMsg{err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return statusMsg{err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		var snap status.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{snap: snap}
	}
}

func (m model) forceSync() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Post(m.apiURL+"/sync", "application/json", nil)
		if err != nil {
			return actionMsg{err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			return actionMsg{err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		return actionMsg{note: "sync requested"}
	}
}

func (m model) submitMark() tea.Cmd {
	mark := types.AttendanceMark{
		StudentID: strings.TrimSpace(m.inputs[fieldStudent].Value()),
		SubjectID: strings.TrimSpace(m.inputs[fieldSubject].Value()),
		Date:      strings.TrimSpace(m.inputs[fieldDate].Value()),
		Status:    types.Status(strings.TrimSpace(m.inputs[fieldStatus].Value())),
		MarkedBy:  strings.TrimSpace(m.inputs[fieldMarkedBy].Value()),
	}
	return func() tea.Msg {
		body, err := json.Marshal(mark)
		if err != nil {
			return actionMsg{err: err}
		}
		resp, err := m.client.Post(m.apiURL+"/mark", "application/json", bytes.NewReader(body))
		if err != nil {
			return actionMsg{err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			return actionMsg{err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		return actionMsg{note: "mark queued for " + mark.StudentID}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if m.formOpen {
			return m.updateForm(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			return m, m.forceSync()
		case "r":
			return m, m.fetchStatus()
		case "m":
			m.formOpen = true
			m.focus = fieldStudent
			m.inputs[m.focus].Focus()
			return m, textinput.Blink
		}

	case statusMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.snap = msg.snap
		m.fetched = true
		m.lastErr = nil
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.notice = "error: " + msg.err.Error()
			return m, nil
		}
		m.notice = msg.note
		return m, m.fetchStatus()

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tickCmd())

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}

	return m, nil
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.formOpen = false
		m.inputs[m.focus].Blur()
		return m, nil
	case "tab", "down":
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + 1) % fieldCount
		m.inputs[m.focus].Focus()
		return m, textinput.Blink
	case "shift+tab", "up":
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		m.inputs[m.focus].Focus()
		return m, textinput.Blink
	case "enter":
		m.formOpen = false
		m.inputs[m.focus].Blur()
		cmd := m.submitMark()
		for i := range m.inputs {
			if i != fieldStatus {
				m.inputs[i].Reset()
			}
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := headerStyle.Width(m.width).Render("attendsync " + m.apiURL)

	var body string
	if m.formOpen {
		body = m.renderForm()
	} else {
		body = m.renderStatus()
	}

	footer := footerStyle.Render(m.footerHelp())

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m model) renderStatus() string {
	var b strings.Builder

	if !m.fetched {
		b.WriteString("waiting for daemon...\n")
	} else {
		conn := offlineStyle.Render("● OFFLINE")
		if m.snap.Online {
			conn = onlineStyle.Render("● ONLINE")
		}
		sync := "idle"
		if m.snap.Syncing {
			sync = syncingStyle.Render("syncing")
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("connectivity"), conn)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("sync"), sync)
		fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("queued"), m.snap.QueueCount)
		fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("failed"), m.snap.Failed)
	}
	if m.lastErr != nil {
		b.WriteString(noticeStyle.Render("daemon unreachable: "+m.lastErr.Error()) + "\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m model) renderForm() string {
	labels := []string{"Student", "Subject", "Date", "Status", "Marked by"}
	var b strings.Builder
	b.WriteString("Queue attendance mark\n\n")
	for i, in := range m.inputs {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(labels[i]), in.View())
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m model) footerHelp() string {
	if m.formOpen {
		return "  tab: next field • enter: queue • esc: cancel"
	}
	return "  s: sync now • m: queue mark • r: refresh • q: quit"
}

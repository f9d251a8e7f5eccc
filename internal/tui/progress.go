package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

const maxEventLog = 8

var phaseLabels = map[relocate.Phase]string{
	relocate.PhaseValidating:          "Validate destination",
	relocate.PhaseMigratingFiles:      "Migrate files",
	relocate.PhaseRewritingReferences: "Rewrite references",
	relocate.PhasePersisting:          "Record new root",
	relocate.PhaseReclaimingOldRoot:   "Reclaim old root",
}

// Model is the Bubble Tea model for relocation progress.
type Model struct {
	theme   Theme
	spinner spinner.Model
	width   int

	source <-chan events.Event
	// follow keeps the view open after a relocation completes and, with a
	// remote source, reconnects when the stream drops.
	follow bool
	apiURL string
	apiKey string
	feed   chan events.Event

	jobID       string
	from        string
	to          string
	phase       relocate.Phase
	subdirs     []events.SubdirPayload
	warnings    []string
	eventLog    []events.Event
	completed   *events.CompletedPayload
	lastError   string
	interrupted bool
}

// NewProgress returns a model that follows one relocation from source and
// quits when it completes.
func NewProgress(source <-chan events.Event) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	theme := NewDefaultTheme()
	s.Style = theme.Spinner
	return Model{theme: theme, spinner: s, source: source}
}

// NewWatch returns a model that follows the event stream of a running
// control API until the user quits.
func NewWatch(apiURL, apiKey string) Model {
	m := NewProgress(nil)
	m.follow = true
	m.apiURL = apiURL
	m.apiKey = apiKey
	m.feed = make(chan events.Event, 100)
	m.source = m.feed
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, receiveNextEvent(m.source)}
	if m.feed != nil {
		cmds = append(cmds, subscribeToEvents(m.apiURL, m.apiKey, 0, m.feed))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.interrupted = m.completed == nil
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(events.Event(msg))
		if m.completed != nil && !m.follow {
			return m, tea.Quit
		}
		return m, receiveNextEvent(m.source)

	case sourceClosedMsg:
		if m.follow {
			return m, nil
		}
		return m, tea.Quit

	case sseDisconnectedMsg:
		m.lastError = "event stream disconnected, reconnecting..."
		lastID := msg.lastID
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return reconnectMsg{lastID: lastID}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, msg.lastID, m.feed)

	case errMsg:
		m.lastError = msg.Error()
	}

	return m, nil
}

// apply folds one hub event into the view state. A started event from a new
// job resets the view.
func (m *Model) apply(e events.Event) {
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}
	m.lastError = ""

	switch e.Type {
	case events.TypeRelocationStarted:
		var p events.StartedPayload
		if e.Decode(&p) == nil {
			m.jobID, m.from, m.to = p.JobID, p.Source, p.Destination
			m.phase = ""
			m.subdirs = nil
			m.warnings = nil
			m.completed = nil
		}
	case events.TypeRelocationPhase:
		var p events.PhasePayload
		if e.Decode(&p) == nil {
			m.phase = relocate.Phase(p.Phase)
		}
	case events.TypeRelocationSubdir:
		var p events.SubdirPayload
		if e.Decode(&p) == nil {
			m.subdirs = append(m.subdirs, p)
		}
	case events.TypeRelocationWarning:
		var p events.WarningPayload
		if e.Decode(&p) == nil {
			m.warnings = append(m.warnings, p.Message)
		}
	case events.TypeRelocationCompleted:
		var p events.CompletedPayload
		if e.Decode(&p) == nil {
			m.completed = &p
		}
	}
}

// Completed returns the completion payload once the relocation has ended.
func (m Model) Completed() (events.CompletedPayload, bool) {
	if m.completed == nil {
		return events.CompletedPayload{}, false
	}
	return *m.completed, true
}

// Interrupted reports whether the user left the view before completion.
func (m Model) Interrupted() bool { return m.interrupted }

func (m Model) View() string {
	if m.jobID == "" && m.completed == nil {
		if m.follow {
			return m.theme.Dim.Render(" Waiting for a relocation... [q] Quit") + "\n"
		}
		return m.spinner.View() + " Starting relocation...\n"
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	innerWidth := width - 4

	title := m.theme.Title.Render("RELOCATING MANAGED ROOT")
	route := fmt.Sprintf(" %s\n %s %s", m.theme.Dim.Render(m.from), m.theme.Highlight.Render("→"), m.to)

	parts := []string{
		m.theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, title, route)),
		m.renderPhases(),
	}
	if len(m.subdirs) > 0 {
		parts = append(parts, m.renderSubdirs())
	}
	for _, w := range m.warnings {
		parts = append(parts, m.theme.StatusPartial.Render(" ⚠ "+w))
	}
	if m.completed != nil {
		parts = append(parts, m.renderSummary(innerWidth))
	}
	if m.follow && len(m.eventLog) > 0 {
		parts = append(parts, m.renderEventStream())
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+m.lastError))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m Model) renderPhases() string {
	current := -1
	for i, p := range relocate.Phases {
		if p == m.phase {
			current = i
		}
	}

	var lines []string
	for i, p := range relocate.Phases {
		label := phaseLabels[p]
		var icon string
		switch {
		case m.completed != nil && i == current && m.completed.Status == string(relocate.StatusFailed):
			icon = m.theme.StatusFailed.Render("✗")
			label = m.theme.StatusFailed.Render(label)
		case m.completed != nil && i == current && m.completed.Status == string(relocate.StatusPartialSuccess):
			icon = m.theme.StatusPartial.Render("!")
		case i < current || (m.completed != nil && i == current):
			icon = m.theme.StatusOK.Render("✓")
		case i == current:
			icon = m.spinner.View()
			label = m.theme.StatusRunning.Render(label)
		default:
			icon = m.theme.StatusPending.Render("·")
			label = m.theme.Dim.Render(label)
		}
		lines = append(lines, fmt.Sprintf(" %s %s", icon, label))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSubdirs() string {
	lines := []string{m.theme.Header.Render(" Files")}
	for _, s := range m.subdirs {
		line := fmt.Sprintf("   %-10s moved %-5d copied-only %-4d failed %d", s.Subdir, s.Moved, s.CopiedOnly, s.Failed)
		switch {
		case s.Failed > 0:
			line = m.theme.StatusFailed.Render(line)
		case s.CopiedOnly > 0:
			line = m.theme.StatusPartial.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSummary(width int) string {
	style := m.theme.StatusOK
	switch relocate.Status(m.completed.Status) {
	case relocate.StatusFailed:
		style = m.theme.StatusFailed
	case relocate.StatusPartialSuccess:
		style = m.theme.StatusPartial
	}
	return style.Width(width).Render(" " + m.completed.Summary)
}

func (m Model) renderEventStream() string {
	lines := []string{m.theme.Header.Render(" Events")}
	for _, e := range m.eventLog {
		lines = append(lines, fmt.Sprintf("   %s %s", m.theme.Dim.Render(e.At.Format("15:04:05")), e.Type))
	}
	return strings.Join(lines, "\n")
}

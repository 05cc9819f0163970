package watch

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voxinfinitus/kaa/internal/events"
)

const eventLogSize = 30

// HealthState tracks what we know about the running bot.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Connected     bool
	LastCheck     time.Time
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	health   HealthState
	eventLog []events.Event

	hooks   table.Model
	spinner spinner.Model
	theme   Theme

	hubEvents chan events.Event

	lastError string
}

// New creates a watch TUI model pointed at the status API.
func New(apiURL, apiKey string) *Model {
	theme := NewDefaultTheme()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.StatusOK

	cols := []table.Column{
		{Title: "Kind", Width: 9},
		{Title: "Hook", Width: 20},
		{Title: "Funcs", Width: 6},
	}
	tbl := table.New(table.WithColumns(cols), table.WithHeight(8))
	st := table.DefaultStyles()
	st.Header = theme.Header
	st.Selected = theme.Highlight
	tbl.SetStyles(st)

	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		eventLog:  make([]events.Event, 0, eventLogSize),
		hooks:     tbl,
		spinner:   sp,
		theme:     theme,
		hubEvents: make(chan events.Event, 100),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchHooks(m.apiURL, m.apiKey) },
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, func() tea.Msg { return fetchHooks(m.apiURL, m.apiKey) }
		default:
			var cmd tea.Cmd
			m.hooks, cmd = m.hooks.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		e := events.Event(msg)

		// Newest first.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}

		m.health.Connected = true
		m.lastError = ""

		// A reload changes the hook table.
		if e.Type == events.TypeReloadApplied {
			return m, tea.Batch(
				receiveNextEvent(m.hubEvents),
				func() tea.Msg { return fetchHooks(m.apiURL, m.apiKey) },
			)
		}
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})

	case hooksMsg:
		rows := make([]table.Row, 0, len(msg))
		for _, h := range msg {
			rows = append(rows, table.Row{h.Kind, h.Hook, strconv.Itoa(h.Funcs)})
		}
		m.hooks.SetRows(rows)

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	header := m.renderHeader()
	hooks := m.theme.Border.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Hooks"),
			m.hooks.View(),
		),
	)
	eventStream := m.renderEventStream()

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(" ! " + m.lastError)
	}

	help := m.theme.Dim.Render(" [q] Quit • [r] Refresh hooks • [↑/↓] Scroll hooks")

	parts := []string{header, hooks, eventStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusFailed.Render("● disconnected")
	if m.health.Connected {
		status = m.theme.StatusOK.Render("● connected")
	}

	uptime := ""
	if m.health.UptimeSeconds > 0 {
		uptime = m.theme.Dim.Render(fmt.Sprintf("up %s", (time.Duration(m.health.UptimeSeconds) * time.Second).String()))
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		m.spinner.View(),
		m.theme.Title.Render("kaa watch"),
		" ", status, "  ", uptime,
	)
}

func (m Model) renderEventStream() string {
	lines := make([]string, 0, len(m.eventLog)+1)
	lines = append(lines, m.theme.Title.Render("Events"))
	for _, e := range m.eventLog {
		style := m.theme.Dim
		switch e.Type {
		case events.TypeHandlerFailed, events.TypeReloadFailed:
			style = m.theme.StatusFailed
		case events.TypeHandlerSucceeded, events.TypeReloadApplied:
			style = m.theme.StatusOK
		}
		lines = append(lines, fmt.Sprintf(" %s %s %s",
			m.theme.Dim.Render(e.At.Format("15:04:05")),
			style.Render(e.Type),
			m.theme.Dim.Render(string(e.Data)),
		))
	}
	if len(m.eventLog) == 0 {
		lines = append(lines, m.theme.Dim.Render(" waiting for events..."))
	}
	return m.theme.Border.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"echopress/internal/api"
	"echopress/internal/apiclient"
	"echopress/internal/events"
)

const (
	defaultPollInterval = time.Second
	maxLogLines         = 8
)

// Source streams a run's events.
type Source interface {
	Events(ctx context.Context, runID string, fn func(apiclient.StreamItem) error) error
}

// Poller fetches a run snapshot.
type Poller func(ctx context.Context, runID string) (api.Run, error)

// Options configures the watch model.
type Options struct {
	RunID        string
	Source       Source
	Poll         Poller
	PollInterval time.Duration
}

// Model is the bubbletea model for `echopress watch`.
type Model struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	items chan apiclient.StreamItem
	done  chan error

	run       api.Run
	logLines  []string
	streaming bool
	finished  bool
	notice    string

	spinner  spinner.Model
	progress progress.Model
	width    int
}

// New creates a watch model for opts.RunID.
func New(ctx context.Context, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = WarnStyle
	m := Model{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		run:      api.Run{ID: opts.RunID},
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	if opts.Source != nil {
		m.streaming = true
		m.items = make(chan apiclient.StreamItem, 16)
		m.done = make(chan error, 1)
	}
	return m
}

// Init starts the spinner and either the event stream or polling.
func (m Model) Init() tea.Cmd {
	if m.opts.Source != nil {
		return tea.Batch(m.spinner.Tick, m.startStream())
	}
	return tea.Batch(m.spinner.Tick, m.pollCmd())
}

// Run returns the latest run snapshot seen.
func (m Model) Run() api.Run {
	return m.run
}

// Finished reports whether the run reached a terminal state.
func (m Model) Finished() bool {
	return m.finished
}

// startStream pumps the event stream into the model's channels. The channels
// are created in New so every copy of the model shares them.
func (m Model) startStream() tea.Cmd {
	items, done := m.items, m.done
	ctx, source, runID := m.ctx, m.opts.Source, m.opts.RunID
	go func() {
		err := source.Events(ctx, runID, func(item apiclient.StreamItem) error {
			select {
			case items <- item:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(items)
		done <- err
	}()
	return waitForStream(items, done)
}

// waitForStream delivers the next stream item. items is closed before the
// stream error is sent, so buffered frames are never skipped.
func waitForStream(items <-chan apiclient.StreamItem, done <-chan error) tea.Cmd {
	return func() tea.Msg {
		if item, ok := <-items; ok {
			return StreamItemMsg{Item: item}
		}
		return StreamClosedMsg{Err: <-done}
	}
}

func (m Model) pollCmd() tea.Cmd {
	if m.opts.Poll == nil {
		return func() tea.Msg {
			return PollResultMsg{Err: fmt.Errorf("no way to reach the daemon")}
		}
	}
	ctx, poll, runID := m.ctx, m.opts.Poll, m.opts.RunID
	return func() tea.Msg {
		run, err := poll(ctx, runID)
		return PollResultMsg{Run: run, Err: err}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg { return PollTickMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		width := msg.Width - 4
		if width > 60 {
			width = 60
		}
		if width > 10 {
			m.progress.Width = width
		}
		return m, nil

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamItemMsg:
		if msg.Item.Snapshot != nil {
			m.applyRun(*msg.Item.Snapshot)
		}
		if msg.Item.Event != nil {
			m.applyEvent(*msg.Item.Event)
		}
		if m.finished {
			return m, m.quit()
		}
		return m, waitForStream(m.items, m.done)

	case StreamClosedMsg:
		if m.finished {
			return m, nil
		}
		m.streaming = false
		if msg.Err != nil {
			m.notice = "event stream unavailable, polling: " + msg.Err.Error()
		}
		return m, m.pollCmd()

	case PollResultMsg:
		if msg.Err != nil {
			m.notice = msg.Err.Error()
			return m, m.tickCmd()
		}
		m.notice = ""
		m.applyRun(msg.Run)
		if m.finished {
			return m, m.quit()
		}
		return m, m.tickCmd()

	case PollTickMsg:
		return m, m.pollCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC, KeyEsc:
		return m, m.quit()
	}
	return m, nil
}

func (m Model) quit() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	return tea.Quit
}

func (m *Model) applyRun(run api.Run) {
	if run.Progress < m.run.Progress && run.Status == m.run.Status {
		run.Progress = m.run.Progress
	}
	m.run = run
	if len(m.logLines) == 0 {
		for _, entry := range run.Log {
			m.appendLog(entry.Message)
		}
	}
	switch run.Status {
	case "completed", "failed":
		m.finished = true
	}
}

func (m *Model) applyEvent(evt api.Event) {
	p := evt.Payload
	switch evt.Type {
	case events.TypeProgress:
		if status := payloadString(p, "status"); status != "" {
			m.run.Status = status
		}
		if stage := payloadString(p, "stage"); stage != "" {
			m.run.Stage = stage
		}
		if pct, ok := p["progress"].(float64); ok && pct >= m.run.Progress {
			m.run.Progress = pct
		}
		if message := payloadString(p, "message"); message != "" {
			m.appendLog(message)
		}
	case events.TypeLog:
		message := payloadString(p, "message")
		if level := payloadString(p, "level"); level != "" && level != "info" {
			message = strings.ToUpper(level) + " " + message
		}
		m.appendLog(message)
	case events.TypeError:
		m.run.Status = "failed"
		m.run.ErrorKind = payloadString(p, "kind")
		m.run.ErrorMessage = payloadString(p, "error")
		if hint := payloadString(p, "hint"); hint != "" {
			m.appendLog("hint: " + hint)
		}
		m.finished = true
	case events.TypeCompleted:
		m.run.Status = "completed"
		m.run.Progress = 100
		m.run.DraftID = payloadString(p, "draft_id")
		m.finished = true
	}
}

func (m *Model) appendLog(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}

func payloadString(p map[string]any, key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// View renders the run.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("EchoPress"))
	b.WriteString(DimStyle.Render("  run " + m.run.ID))
	b.WriteString("\n")
	if m.run.Recording != "" || m.run.Title != "" {
		name := m.run.Title
		if name == "" {
			name = m.run.Recording
		}
		b.WriteString(LabelStyle.Render(name))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	status := m.run.Status
	if status == "" {
		status = "waiting"
	}
	switch {
	case m.run.Status == "completed":
		b.WriteString(SuccessStyle.Render("✓ completed"))
	case m.run.Status == "failed":
		b.WriteString(ErrorStyle.Render("✗ failed"))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(status)
		if m.run.Stage != "" && m.run.Stage != status {
			b.WriteString(DimStyle.Render(" (" + m.run.Stage + ")"))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(m.run.Progress / 100))
	b.WriteString("\n")

	if len(m.logLines) > 0 {
		b.WriteString("\n")
		lines := make([]string, 0, len(m.logLines))
		for _, line := range m.logLines {
			lines = append(lines, DimStyle.Render(line))
		}
		b.WriteString(PanelStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	switch m.run.Status {
	case "failed":
		msg := m.run.ErrorMessage
		if m.run.ErrorKind != "" {
			msg = m.run.ErrorKind + ": " + msg
		}
		b.WriteString(ErrorStyle.Render(msg))
		b.WriteString("\n")
	case "completed":
		b.WriteString(DimStyle.Render("draft ready: echopress draft " + m.run.ID))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(WarnStyle.Render(m.notice))
		b.WriteString("\n")
	}
	if !m.finished {
		b.WriteString("\n")
		b.WriteString(FooterKeyStyle.Render("q"))
		b.WriteString(FooterDescStyle.Render(" stop watching (the run continues)"))
		b.WriteString("\n")
	}
	return b.String()
}

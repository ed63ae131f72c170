package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/hitwatch/internal/keys"
	"github.com/nhle/hitwatch/internal/model"
	"github.com/nhle/hitwatch/internal/source"
	appsync "github.com/nhle/hitwatch/internal/sync"
	"github.com/nhle/hitwatch/internal/theme"
	"github.com/nhle/hitwatch/internal/ui"
	"github.com/nhle/hitwatch/internal/ui/events"
	helpview "github.com/nhle/hitwatch/internal/ui/help"
)

// historySize is how many past deliveries are shown at startup.
const historySize = 20

// Controller is the scheduler surface the panel drives. Every method must
// return immediately.
type Controller interface {
	TogglePause()
	Refresh()
	ClearSeen()
	SendTest()
}

// DeliveryLog provides past delivery attempts.
type DeliveryLog interface {
	RecentDeliveries(ctx context.Context, limit int) ([]model.Delivery, error)
}

// historyLoadedMsg carries deliveries read from the store at startup.
type historyLoadedMsg struct {
	deliveries []model.Delivery
	err        error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewEvents ViewState = iota
	ViewHelp
	ViewConfirmClear
)

// Model is the root Bubble Tea model: header with scheduler state, the
// event list, and the status bar.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap
	ctrl        Controller
	history     DeliveryLog
	events      events.Model
	helpView    helpview.Model
	spinner     spinner.Model

	confirm      *huh.Form
	clearConfirm *bool

	state      appsync.State
	passing    bool
	seenCount  int
	lastStatus source.Status
	lastPass   time.Time
	ready      bool
}

// New creates the root model. summary lines are shown in the help view.
func New(ctrl Controller, history DeliveryLog, summary []string) Model {
	k := keys.DefaultKeyMap()
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.ColorWhite)),
	)

	return Model{
		currentView:  ViewEvents,
		keys:         k,
		ctrl:         ctrl,
		history:      history,
		events:       events.New(80, 22),
		helpView:     helpview.New(k, summary, 80, 22),
		spinner:      sp,
		clearConfirm: new(bool),
	}
}

// Init starts the spinner and loads the delivery history.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadHistory())
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.events.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		if m.confirm != nil {
			m.confirm = m.confirm.WithWidth(m.formWidth())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case historyLoadedMsg:
		if msg.err != nil {
			m.events.Push(events.Event{At: time.Now(), Kind: events.KindWarning,
				Title: "could not load delivery history", Detail: msg.err.Error()})
			return m, nil
		}
		for i := len(msg.deliveries) - 1; i >= 0; i-- {
			m.events.Push(deliveryEvent(msg.deliveries[i]))
		}
		return m, nil

	case appsync.StateChangedMsg:
		m.state = msg.State
		if msg.State != appsync.Stopped {
			m.events.Push(events.Event{At: time.Now(), Kind: events.KindInfo,
				Title: "scheduler " + msg.State.String()})
		}
		return m, nil

	case appsync.PassStartedMsg:
		m.passing = true
		return m, nil

	case appsync.PassCompletedMsg:
		m.applyReport(msg.Report)
		return m, nil

	case appsync.RecordObservedMsg:
		m.events.Push(recordEvent(msg))
		return m, nil

	case appsync.SeenClearedMsg:
		if msg.Err != nil {
			m.events.Push(events.Event{At: time.Now(), Kind: events.KindFailed,
				Title: "clearing seen set failed", Detail: msg.Err.Error()})
			return m, nil
		}
		m.seenCount = 0
		m.events.Push(events.Event{At: time.Now(), Kind: events.KindInfo,
			Title: "seen set cleared"})
		return m, nil

	case appsync.TestSentMsg:
		e := events.Event{At: time.Now(), Kind: events.KindTest,
			Title: "test notification", Detail: resultDetail(msg.Result)}
		if !msg.Result.OK() {
			e.Kind = events.KindFailed
		}
		m.events.Push(e)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.currentView {
		case ViewConfirmClear:
			if key.Matches(msg, m.keys.Back) {
				m.confirm = nil
				m.currentView = ViewEvents
				return m, nil
			}
			return m.updateConfirm(msg)
		case ViewHelp:
			if key.Matches(msg, m.keys.Help, m.keys.Back) {
				m.currentView = ViewEvents
			}
			return m, nil
		}
		return m.handleEventKeys(msg)
	}

	if m.currentView == ViewConfirmClear {
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleEventKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.currentView = ViewHelp
		return m, nil
	case key.Matches(msg, m.keys.Pause):
		m.ctrl.TogglePause()
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		m.ctrl.Refresh()
		return m, nil
	case key.Matches(msg, m.keys.Test):
		m.ctrl.SendTest()
		return m, nil
	case key.Matches(msg, m.keys.Clear):
		*m.clearConfirm = false
		m.confirm = m.buildClearConfirmForm()
		m.currentView = ViewConfirmClear
		return m, m.confirm.Init()
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

func (m Model) buildClearConfirmForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Clear %d seen assignments?", m.seenCount)).
				Description(
					"Every assignment currently in the queue will be " +
						"notified again on the next pass.",
				).
				Affirmative("Yes, clear").
				Negative("Cancel").
				Value(m.clearConfirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.confirm == nil {
		m.currentView = ViewEvents
		return m, nil
	}

	mdl, cmd := m.confirm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm = f
	}

	if done := m.resolveConfirm(); done {
		return m, nil
	}
	return m, cmd
}

// resolveConfirm acts on a finished confirm form and reports whether the
// dialog is closed.
func (m *Model) resolveConfirm() bool {
	switch m.confirm.State {
	case huh.StateCompleted:
		if *m.clearConfirm {
			m.ctrl.ClearSeen()
		}
	case huh.StateAborted:
	default:
		return false
	}
	m.confirm = nil
	m.currentView = ViewEvents
	return true
}

func (m *Model) applyReport(r appsync.PassReport) {
	m.passing = false
	m.seenCount = r.SeenCount
	m.lastPass = r.Finished

	if r.Status != m.lastStatus {
		switch r.Status {
		case source.StatusBlocked:
			m.events.Push(events.Event{At: r.Finished, Kind: events.KindWarning,
				Title: "sign-in or captcha required", Detail: "open the queue in a browser"})
		case source.StatusUnavailable:
			e := events.Event{At: r.Finished, Kind: events.KindWarning, Title: "queue unavailable"}
			if r.Err != nil {
				e.Detail = r.Err.Error()
			}
			m.events.Push(e)
		case source.StatusOK:
			m.events.Push(events.Event{At: r.Finished, Kind: events.KindInfo, Title: "queue reachable"})
		}
		m.lastStatus = r.Status
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("hitwatch", m.statusText())

	var content string
	switch m.currentView {
	case ViewHelp:
		content = m.helpView.View()
	case ViewConfirmClear:
		content = theme.PanelStyle.Render(m.confirm.View())
	default:
		content = m.events.View()
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.lastStatus == source.StatusBlocked)
	return m.layout.RenderWithFrame(header, content, statusBar)
}

// statusText returns the right-hand side of the header.
func (m Model) statusText() string {
	state := theme.StateStyle(m.state.String()).Render(m.state.String())
	if m.passing {
		state = m.spinner.View() + " polling"
	}
	text := fmt.Sprintf("%s | %d seen", state, m.seenCount)
	if !m.lastPass.IsZero() {
		text += " | last " + m.lastPass.Format("15:04:05")
	}
	return text
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewConfirmClear:
		return "y/n choose | enter confirm | esc cancel"
	}
	if m.lastStatus == source.StatusBlocked {
		return "sign-in required: open the task queue in a browser | q quit"
	}
	pause := "pause"
	if m.state == appsync.Paused {
		pause = "resume"
	}
	return fmt.Sprintf("t test | c clear | p %s | r refresh | ? help | q quit", pause)
}

func (m Model) formWidth() int {
	w := m.layout.Width - 8
	if w < 30 {
		return 30
	}
	if w > 70 {
		return 70
	}
	return w
}

// loadHistory returns a command that reads recent deliveries.
func (m Model) loadHistory() tea.Cmd {
	h := m.history
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d, err := h.RecentDeliveries(ctx, historySize)
		return historyLoadedMsg{deliveries: d, err: err}
	}
}

func recordEvent(msg appsync.RecordObservedMsg) events.Event {
	r := msg.Record
	e := events.Event{At: time.Now(), Kind: events.KindNew, Title: r.Title}
	if e.Title == "" {
		e.Title = r.Identifier
	}
	detail := r.RequesterName
	if r.Reward.Valid {
		detail += " $" + r.Reward.Decimal.StringFixed(2)
	}
	if !msg.Result.OK() {
		e.Kind = events.KindFailed
		detail += " | " + resultDetail(msg.Result)
	}
	e.Detail = detail
	return e
}

func deliveryEvent(d model.Delivery) events.Event {
	e := events.Event{At: d.CreatedAt, Kind: events.KindSent, Title: d.Title}
	if d.Event == model.EventTest {
		e.Kind = events.KindTest
		e.Title = "test notification"
	}
	if e.Title == "" {
		e.Title = d.AssignmentID
	}
	if !d.OK {
		e.Kind = events.KindFailed
		e.Detail = d.Error
	}
	return e
}

func resultDetail(res model.DeliveryResult) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	return fmt.Sprintf("HTTP %d in %s", res.StatusCode, res.Duration.Round(time.Millisecond))
}

package events

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/hitwatch/internal/theme"
)

// MaxEvents caps how many rows the list keeps.
const MaxEvents = 200

// Model is the scrolling event list, newest first.
type Model struct {
	list   list.Model
	width  int
	height int
}

// New creates a new event list model.
func New(width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height)
	l.Title = "Events"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	return Model{list: l, width: width, height: height}
}

// Push prepends events in the order given, so the last one ends up on top.
func (m *Model) Push(evs ...Event) {
	items := m.list.Items()
	for _, e := range evs {
		items = append([]list.Item{e}, items...)
	}
	if len(items) > MaxEvents {
		items = items[:MaxEvents]
	}
	m.list.SetItems(items)
	m.list.Select(0)
}

// Events returns the current rows, newest first.
func (m Model) Events() []Event {
	items := m.list.Items()
	out := make([]Event, 0, len(items))
	for _, it := range items {
		if e, ok := it.(Event); ok {
			out = append(out, e)
		}
	}
	return out
}

// Update forwards navigation keys to the list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return theme.HelpStyle.PaddingLeft(2).Render("Waiting for the first pass...")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}

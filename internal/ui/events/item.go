package events

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/hitwatch/internal/theme"
)

// Kind classifies an event row. Its string form selects the badge style.
type Kind string

const (
	KindNew     Kind = "new"
	KindFailed  Kind = "fail"
	KindWarning Kind = "warn"
	KindTest    Kind = "test"
	KindSent    Kind = "sent"
	KindInfo    Kind = "info"
)

// Event is one row of the event list.
type Event struct {
	At     time.Time
	Kind   Kind
	Title  string
	Detail string
}

// FilterValue returns the string used for fuzzy filtering.
func (e Event) FilterValue() string { return e.Title }

// Delegate implements list.ItemDelegate for event rows.
type Delegate struct {
	// now is the reference time for relative timestamps.
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws a single event line.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	e, ok := item.(Event)
	if !ok {
		return
	}

	now := time.Now()
	if d.now != nil {
		now = d.now()
	}

	badge := theme.BadgeStyle(string(e.Kind)).Render(string(e.Kind))
	ts := theme.DimmedStyle.Render(fmt.Sprintf("%8s", relativeTime(now, e.At)))

	line := fmt.Sprintf("%s %s %s", ts, badge, theme.TitleStyle.Render(e.Title))
	if e.Detail != "" {
		line += "  " + theme.DimmedStyle.Render(e.Detail)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a short relative time string.
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < 10*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/hitwatch/internal/keys"
	"github.com/nhle/hitwatch/internal/theme"
)

// Model is the help overlay: key bindings plus a short summary of the
// running configuration.
type Model struct {
	keys    *keys.KeyMap
	help    help.Model
	summary []string
	width   int
	height  int
}

// New creates a new help view model. summary lines are shown under the
// key bindings.
func New(keys *keys.KeyMap, summary []string, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:    keys,
		help:    h,
		summary: summary,
		width:   width,
		height:  height,
	}
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
	}
	if len(m.summary) > 0 {
		parts = append(parts, "", titleStyle.Render("Configuration"),
			theme.DimmedStyle.Render(strings.Join(m.summary, "\n")))
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

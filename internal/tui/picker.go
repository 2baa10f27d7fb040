// Package tui provides the interactive connection picker: type-to-search
// over the ranking engine, arrow keys to select, enter to connect.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"bssh/internal/rank"
	"bssh/internal/storage"
)

// Model is the picker's bubbletea model. The search input stays focused the
// whole time; every keystroke re-runs the ranking engine.
type Model struct {
	engine *rank.Engine

	input  textinput.Model
	items  []rank.Scored
	mode   rank.Mode
	cursor int
	offset int
	width  int
	height int

	err      error
	choice   *storage.Connection
	quitting bool
}

// NewModel builds the picker with the initial (recent) listing loaded.
func NewModel(engine *rank.Engine) Model {
	ti := textinput.New()
	ti.Placeholder = "type to search connections..."
	ti.CharLimit = 100
	ti.Focus()

	m := Model{
		engine: engine,
		input:  ti,
		width:  100,
		height: 30,
	}
	m.refresh()
	return m
}

// Run shows the picker and returns the chosen connection, or nil when the
// user cancelled.
func Run(engine *rank.Engine) (*storage.Connection, error) {
	p := tea.NewProgram(NewModel(engine), tea.WithAltScreen())
	out, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("picker failed: %w", err)
	}
	return out.(Model).choice, nil
}

// refresh re-queries the engine for the current input.
func (m *Model) refresh() {
	res, err := m.engine.Search(context.Background(), m.input.Value())
	if err != nil {
		m.err = err
		m.items = nil
		m.cursor = 0
		m.offset = 0
		return
	}

	m.err = nil
	m.items = res.Items
	m.mode = res.Mode
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
	m.clampOffset()
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
				m.clampOffset()
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.items)-1 {
				m.cursor++
				m.clampOffset()
			}
			return m, nil

		case "enter":
			if len(m.items) > 0 {
				conn := m.items[m.cursor].Connection
				m.choice = &conn
			}
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.refresh()
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	mode := "ranked"
	if m.mode == rank.ModeRecent {
		mode = "recent"
	}
	b.WriteString(titleStyle.Render("bssh") +
		dimStyle.Render(fmt.Sprintf("  %d connections  [%s]", len(m.items), mode)) + "\n")
	b.WriteString("  " + m.input.View() + "\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("  " + m.err.Error()) + "\n")
	}

	visible := m.visibleRows()
	end := min(m.offset+visible, len(m.items))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.items[i], i == m.cursor) + "\n")
	}
	for i := end - m.offset; i < visible; i++ {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  enter: connect  ↑/↓: select  esc: quit"))
	return b.String()
}

func (m Model) renderRow(it rank.Scored, selected bool) string {
	name := pad(it.Connection.Name, 24)
	target := pad(it.Connection.User+"@"+it.Connection.Host, 36)

	var info string
	if m.mode == rank.ModeRanked {
		info = tierStyle.Render(pad(it.Tier.String(), 9)) + scoreStyle.Render(fmt.Sprintf("%.3f", it.Score))
	} else {
		info = dimStyle.Render(ago(it.Connection.LastUsed))
	}

	row := fmt.Sprintf("%s %s %s", name, target, info)
	if selected {
		return selectedStyle.Render("> " + fmt.Sprintf("%s %s", name, target)) + " " + info
	}
	return "  " + row
}

func (m Model) visibleRows() int {
	rows := m.height - 5
	if rows < 3 {
		rows = 3
	}
	return rows
}

func (m *Model) clampOffset() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func pad(s string, w int) string {
	runes := []rune(s)
	if len(runes) > w {
		return string(runes[:w-2]) + ".."
	}
	return s + strings.Repeat(" ", w-len(runes))
}

func ago(t *time.Time) string {
	if t == nil {
		return "never used"
	}
	d := time.Since(*t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/penplot/pkg/core/raster"
	"github.com/matzehuels/penplot/pkg/core/sequence"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ChannelPickerModel - Interactive channel selection
// =============================================================================

// PickerChannel is one row of the channel picker.
type PickerChannel struct {
	Name    string
	Path    string
	Holder  float64
	Mounted bool // the tool table has a holder for this channel
	Enabled bool
}

// ChannelPickerModel is the bubbletea model that lets the user choose which
// channels to plot before a run.
type ChannelPickerModel struct {
	Channels  []PickerChannel
	Cursor    int
	Height    int
	Offset    int
	Confirmed bool
}

// NewChannelPickerModel lists sources against the tool table. Channels
// without a holder are shown but cannot be enabled; channels already in
// disabled start unchecked.
func NewChannelPickerModel(sources []raster.Source, tools sequence.ToolTable, disabled []string) ChannelPickerModel {
	off := make(map[string]bool, len(disabled))
	for _, d := range disabled {
		off[d] = true
	}
	chs := make([]PickerChannel, len(sources))
	for i, src := range sources {
		x, mounted := tools[src.Channel]
		chs[i] = PickerChannel{
			Name:    src.Channel,
			Path:    src.Path,
			Holder:  x,
			Mounted: mounted,
			Enabled: mounted && !off[src.Channel],
		}
	}
	return ChannelPickerModel{Channels: chs, Height: 15}
}

// Disabled returns the names of the unchecked channels.
func (m ChannelPickerModel) Disabled() []string {
	var out []string
	for _, ch := range m.Channels {
		if !ch.Enabled {
			out = append(out, ch.Name)
		}
	}
	return out
}

func (m ChannelPickerModel) enabledCount() int {
	n := 0
	for _, ch := range m.Channels {
		if ch.Enabled {
			n++
		}
	}
	return n
}

func (m ChannelPickerModel) Init() tea.Cmd {
	return nil
}

func (m ChannelPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Channels)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Channels) == 0 {
				return m, nil
			}
			ch := &m.Channels[m.Cursor]
			if ch.Mounted {
				chs := append([]PickerChannel(nil), m.Channels...)
				chs[m.Cursor].Enabled = !ch.Enabled
				m.Channels = chs
			}
		case "a":
			chs := append([]PickerChannel(nil), m.Channels...)
			all := m.enabledCount() < m.mountedCount()
			for i := range chs {
				chs[i].Enabled = all && chs[i].Mounted
			}
			m.Channels = chs
		case "enter":
			if m.enabledCount() == 0 {
				return m, nil
			}
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 7
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ChannelPickerModel) mountedCount() int {
	n := 0
	for _, ch := range m.Channels {
		if ch.Mounted {
			n++
		}
	}
	return n
}

func (m ChannelPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Channels"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  ⏎ plot  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Channels))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		ch := m.Channels[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if ch.Enabled {
			check = "[x]"
		}
		holder := "—"
		if ch.Mounted {
			holder = strconv.FormatFloat(ch.Holder, 'f', -1, 64)
		}
		rows = append(rows, []string{cursor, check, ch.Name, holder, ch.Path})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Channel", "Holder X", "Mask").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			idx := m.Offset + row
			if idx < 0 || idx >= len(m.Channels) {
				return lipgloss.NewStyle()
			}
			ch := m.Channels[idx]
			switch {
			case !ch.Mounted:
				return listDimStyle
			case idx == m.Cursor:
				return listSelectedStyle
			case ch.Enabled:
				return listNormalStyle.Foreground(colorGreen)
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d of %d channels selected", m.enabledCount(), len(m.Channels))))

	return b.String()
}

// pickChannels runs the picker and returns the disabled set. ok is false
// when the user quit without confirming.
func pickChannels(sources []raster.Source, tools sequence.ToolTable, disabled []string) (off []string, ok bool, err error) {
	model := NewChannelPickerModel(sources, tools, disabled)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, false, err
	}
	picked := final.(ChannelPickerModel)
	if !picked.Confirmed {
		return nil, false, nil
	}
	return picked.Disabled(), true, nil
}

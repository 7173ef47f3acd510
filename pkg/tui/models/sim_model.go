package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/bigredbutton/pkg/state"
	"github.com/go-go-golems/bigredbutton/pkg/tui"
	"github.com/go-go-golems/bigredbutton/pkg/tui/styles"
	"github.com/go-go-golems/bigredbutton/pkg/tui/widgets"
)

const refreshInterval = 50 * time.Millisecond

type refreshMsg time.Time

type keyMap struct {
	Button key.Binding
	Link   key.Binding
	Clear  key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Button, k.Link, k.Clear, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Button: key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "press/release button")),
		Link:   key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "toggle network")),
		Clear:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear log")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// SimModel draws the simulated device and maps keys onto its button and
// network link.
type SimModel struct {
	device tui.Device
	keys   keyMap
	help   help.Model
	theme  styles.Theme

	view    tui.DeviceView
	events  []tui.EventEntry
	max     int
	width   int
	started time.Time
}

func NewSimModel(device tui.Device) SimModel {
	return SimModel{
		device:  device,
		keys:    defaultKeyMap(),
		help:    help.New(),
		theme:   styles.DefaultTheme(),
		view:    device.View(),
		max:     12,
		width:   80,
		started: time.Now(),
	}
}

func (m SimModel) Init() tea.Cmd { return refresh() }

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m SimModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = v.Width
		m.help.Width = v.Width
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(v, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(v, m.keys.Button):
			m.device.ToggleButton()
			m.view = m.device.View()
		case key.Matches(v, m.keys.Link):
			m.device.ToggleLink()
			m.view = m.device.View()
		case key.Matches(v, m.keys.Clear):
			m.events = nil
		}
		return m, nil
	case refreshMsg:
		m.view = m.device.View()
		return m, refresh()
	case tui.EventMsg:
		m.events = append(m.events, v.Entry)
		if len(m.events) > m.max {
			m.events = append([]tui.EventEntry{}, m.events[len(m.events)-m.max:]...)
		}
		return m, nil
	}
	return m, nil
}

func (m SimModel) Events() []tui.EventEntry { return m.events }

func (m SimModel) View() string {
	width := m.width
	if width <= 0 || width > 100 {
		width = 100
	}

	header := widgets.NewHeader("bigredbutton sim").
		WithStatus(m.view.Snapshot.Connection.String(), m.view.Snapshot.Connection == state.Connected).
		WithUptime(time.Since(m.started)).
		WithWidth(width).
		Render()
	device := widgets.NewBox("Device").
		WithTitleRight(m.view.Mode).
		WithWidth(width).
		WithContent(m.renderDevice()).
		Render()
	events := widgets.NewBox("Events").
		WithTitleRight(fmt.Sprintf("%d", len(m.events))).
		WithWidth(width).
		WithContent(m.renderEvents()).
		Render()

	return lipgloss.JoinVertical(lipgloss.Left, header, device, events, m.help.View(m.keys))
}

func (m SimModel) renderDevice() string {
	t := m.theme
	snap := m.view.Snapshot

	led := t.LEDOff.Render(styles.IconLEDOff + " off")
	if m.view.LEDOn {
		led = t.LEDOn.Render(styles.IconLED + " on")
	}
	button := t.ButtonUp.Render("[ DEPLOY ]")
	if m.view.ButtonPressed {
		button = t.ButtonDown.Render("[ DEPLOY ]")
	}

	var conn string
	switch snap.Connection {
	case state.Connected:
		conn = t.StatusOK.Render(snap.Connection.String())
	case state.Connecting:
		conn = t.StatusMaybe.Render(snap.Connection.String())
	default:
		conn = t.StatusBad.Render(snap.Connection.String())
	}
	link := t.StatusBad.Render("down")
	if m.view.LinkUp {
		link = t.StatusOK.Render("up")
	}

	candidate := t.TitleMuted.Render("none")
	if snap.Candidate != "" {
		candidate = t.StatusMaybe.Render(snap.Candidate)
	}
	last := t.TitleMuted.Render("none")
	if d := snap.LastDeploy; d != nil {
		if d.OK {
			last = t.StatusOK.Render(fmt.Sprintf("%s %s (%s)", styles.IconSuccess, d.BuildID, d.Source))
		} else {
			last = t.StatusBad.Render(fmt.Sprintf("%s %s: %s", styles.IconError, d.BuildID, d.Error))
		}
	}
	addresses := t.TitleMuted.Render("unknown")
	if snap.LocalAddress != "" || snap.ExternalAddress != "" {
		addresses = t.Value.Render(fmt.Sprintf("%s / %s", snap.LocalAddress, snap.ExternalAddress))
	}

	rows := [][2]string{
		{"LED", led},
		{"Button", button},
		{"Network", link + "  " + conn},
		{"Addresses", addresses},
		{"Candidate", candidate},
		{"In progress", t.Value.Render(fmt.Sprintf("%v", snap.InProgress))},
		{"Last deploy", last},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, t.Label.Render(r[0]), r[1]))
	}
	return strings.Join(lines, "\n")
}

func (m SimModel) renderEvents() string {
	t := m.theme
	if len(m.events) == 0 {
		return t.TitleMuted.Render("no events yet")
	}
	lines := make([]string, 0, len(m.events))
	for _, e := range m.events {
		icon := styles.EventIcon(e.Type, e.OK)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			t.EventTime.Render(e.At.Format("15:04:05.000")+" "),
			icon+" ",
			t.EventType.Render(e.Type),
			t.EventSummary.Render(e.Summary),
		))
	}
	return strings.Join(lines, "\n")
}

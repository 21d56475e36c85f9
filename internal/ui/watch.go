package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lineus/lineus/internal/discovery"
)

// DeviceFoundMsg reports a device announced while watching
type DeviceFoundMsg struct {
	Device discovery.DeviceHandle
}

// feedClosedMsg signals that no more devices will arrive
type feedClosedMsg struct{}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Quit key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

// WatchModel lists devices as they are announced until the user quits
type WatchModel struct {
	feed    <-chan discovery.DeviceHandle
	devices []discovery.DeviceHandle
	seen    map[string]bool
	started time.Time
	closed  bool

	Width   int
	Spinner spinner.Model
	Help    help.Model
	Keys    watchKeyMap
}

// NewWatchModel creates a watch screen reading from feed
func NewWatchModel(feed <-chan discovery.DeviceHandle) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WatchModel{
		feed:    feed,
		seen:    make(map[string]bool),
		started: time.Now(),
		Width:   GetTerminalWidth(),
		Spinner: s,
		Help:    help.New(),
		Keys: watchKeyMap{
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// Init starts the spinner and the first feed read
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, waitForDevice(m.feed))
}

// waitForDevice blocks on the feed for the next device
func waitForDevice(feed <-chan discovery.DeviceHandle) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return DeviceFoundMsg{Device: d}
	}
}

// Update handles messages
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.Keys.Quit) {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		if m.Width > MaxContentWidth {
			m.Width = MaxContentWidth
		}

	case DeviceFoundMsg:
		if k := msg.Device.Key(); !m.seen[k] {
			m.seen[k] = true
			m.devices = append(m.devices, msg.Device)
		}
		return m, waitForDevice(m.feed)

	case feedClosedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the screen
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render("WATCHING FOR LINE-US DEVICES"))
	b.WriteString("\n\n")

	if m.closed {
		b.WriteString(ProgressLabelStyle.Render("Discovery stopped"))
	} else {
		elapsed := time.Since(m.started).Round(time.Second)
		b.WriteString(fmt.Sprintf("%s %s", m.Spinner.View(),
			ProgressLabelStyle.Render(fmt.Sprintf("Listening for mDNS announcements (%s)", elapsed))))
	}
	b.WriteString("\n\n")

	if len(m.devices) == 0 {
		b.WriteString(HelpStyle.Render("No devices yet"))
	} else {
		b.WriteString(RenderDeviceTable(m.devices))
	}
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	b.WriteString("\n")

	return b.String()
}

// Devices returns the devices seen so far, in arrival order
func (m WatchModel) Devices() []discovery.DeviceHandle {
	out := make([]discovery.DeviceHandle, len(m.devices))
	copy(out, m.devices)
	return out
}

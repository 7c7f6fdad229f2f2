package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/staffproof/internal/otel"
)

// App is the root Bubble Tea model. It owns the tabs and routes messages to
// the screen they belong to.
type App struct {
	screens []Screen
	active  int
	ring    *otel.RingBuffer
	events  *otel.Logger
	spinner spinner.Model

	showDebug bool
	width     int
	height    int
	ready     bool
}

// NewApp creates an App over screens. ring feeds the debug overlay and may
// be nil; events records key presses when tracing is on and may be nil.
func NewApp(screens []Screen, ring *otel.RingBuffer, events *otel.Logger) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return App{screens: screens, ring: ring, events: events, spinner: s}
}

// Init starts the first screen.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick}
	if len(a.screens) > 0 {
		cmds = append(cmds, a.screens[0].Start())
	}
	return tea.Batch(cmds...)
}

// Close stops every screen's controller.
func (a App) Close() {
	for _, s := range a.screens {
		s.Close()
	}
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case listEvent:
		return a, a.route(msg.Resource, msg)

	case mutationDone:
		return a, a.route(msg.Resource, msg)

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)
	}
	return a, nil
}

func (a App) route(resource string, msg tea.Msg) tea.Cmd {
	for _, s := range a.screens {
		if s.Descriptor().Name == resource {
			return s.Update(msg)
		}
	}
	return nil
}

func (a App) current() Screen {
	if len(a.screens) == 0 {
		return nil
	}
	return a.screens[a.active]
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	cur := a.current()
	if cur != nil && cur.Capturing() {
		return a, cur.Update(msg)
	}

	if a.events != nil && cur != nil && otel.TraceEnabled() {
		a.events.Emit(otel.Event{
			Level: otel.LevelDebug, Kind: otel.KindKeyPress, Comp: "ui",
			Resource: cur.Descriptor().Name, Msg: key,
		})
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "D":
		a.showDebug = !a.showDebug
		return a, nil
	case "tab":
		return a.switchTo(a.active + 1)
	case "shift+tab":
		return a.switchTo(a.active - 1)
	}

	if a.showDebug || cur == nil {
		return a, nil
	}
	return a, cur.Update(msg)
}

func (a App) switchTo(i int) (tea.Model, tea.Cmd) {
	n := len(a.screens)
	if n == 0 {
		return a, nil
	}
	a.active = ((i % n) + n) % n
	return a, a.screens[a.active].Start()
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.showDebug {
		return debugOverlay(a.ring, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	cur := a.current()
	if cur == nil {
		return HelpStyle.Render("No screens configured.")
	}

	tabs := a.renderTabs()
	body := cur.View(a.width, a.height-2, a.spinner.View())
	return tabs + "\n" + body + "\n" + a.statusBar(cur)
}

func (a App) renderTabs() string {
	tabs := make([]string, len(a.screens))
	for i, s := range a.screens {
		style := InactiveTab
		if i == a.active {
			style = ActiveTab
		}
		tabs[i] = style.Render(s.Descriptor().Title)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a App) statusBar(cur Screen) string {
	d := cur.Descriptor()
	hints := []string{"tab:screen", "/:search", "1-9:filter", "0:clear", "←→:page", "+-:size", "r:refresh"}
	if d.HasAction("read") {
		hints = append(hints, "enter:read")
	}
	if d.HasAction("assign") {
		hints = append(hints, "a:assign")
	}
	if d.HasAction("close") {
		hints = append(hints, "x:close")
	}
	if !d.ReadOnly {
		hints = append(hints, "dd:delete")
	}
	if d.HasBulk("mark-all-read") {
		hints = append(hints, "A:all read")
	}
	if d.HasBulk("clear-read") {
		hints = append(hints, "C:clear read")
	}
	hints = append(hints, "D:debug", "q:quit")

	rendered := make([]string, len(hints))
	for i, h := range hints {
		k, text, _ := strings.Cut(h, ":")
		rendered[i] = StatusBarKey.Render(k) + StatusBarText.Render(":"+text)
	}
	return StatusBar.Width(a.width).Render(strings.Join(rendered, " "))
}

// Active returns the index of the current tab (for testing).
func (a App) Active() int {
	return a.active
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotos-lab/sysuid/internal/model"
	"github.com/dotos-lab/sysuid/internal/monet"
	"github.com/dotos-lab/sysuid/internal/overlay"
)

var (
	ErrViewExists = errors.New("ui: view already added")
	ErrNoView     = errors.New("ui: no such view")
)

type window struct {
	lp   overlay.LayoutParams
	text string
}

// Host is the terminal window manager. Overlays are drawn over the panel
// area at their layout row; the status bar header defines the top inset.
type Host struct {
	mu        sync.Mutex
	windows   map[string]window
	width     int
	height    int
	asleep    bool
	traffic   string
	listeners []func()
}

func NewHost() *Host {
	return &Host{windows: make(map[string]window), width: 120, height: 40}
}

func (h *Host) AddView(id string, lp overlay.LayoutParams, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.windows[id]; ok {
		return fmt.Errorf("%w: %s", ErrViewExists, id)
	}
	h.windows[id] = window{lp: lp, text: text}
	return nil
}

func (h *Host) UpdateViewLayout(id string, lp overlay.LayoutParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoView, id)
	}
	w.lp = lp
	h.windows[id] = w
	return nil
}

func (h *Host) SetViewText(id, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoView, id)
	}
	w.text = text
	h.windows[id] = w
	return nil
}

func (h *Host) RemoveView(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.windows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoView, id)
	}
	delete(h.windows, id)
	return nil
}

// TopInset is the rendered height of the status bar at the current width.
func (h *Host) TopInset() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lipgloss.Height(h.headerLocked(time.Time{}))
}

// OnConfigurationChanged registers fn to run after the terminal is resized.
func (h *Host) OnConfigurationChanged(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Resize applies a new terminal size and notifies listeners when it changed.
func (h *Host) Resize(width, height int) {
	h.mu.Lock()
	if width == h.width && height == h.height {
		h.mu.Unlock()
		return
	}
	h.width, h.height = width, height
	fns := append([]func(){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// SetAsleep updates the status bar's wakefulness indicator.
func (h *Host) SetAsleep(v bool) {
	h.mu.Lock()
	h.asleep = v
	h.mu.Unlock()
}

// SetTraffic updates the status bar's network traffic indicator. An empty
// text hides it.
func (h *Host) SetTraffic(text string) {
	h.mu.Lock()
	h.traffic = text
	h.mu.Unlock()
}

// Window returns the layout and text of a shown view.
func (h *Host) Window(id string) (overlay.LayoutParams, string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[id]
	return w.lp, w.text, ok
}

func (h *Host) headerLocked(now time.Time) string {
	clock := "--:--:--"
	if !now.IsZero() {
		clock = now.Format("15:04:05")
	}
	state := "awake"
	if h.asleep {
		state = "asleep"
	}
	// The traffic slot has a fixed width so the header height only depends
	// on the terminal width.
	return statusStyle.Width(h.width).Render(
		titleStyle.Render("SystemUI") + "  " + clock + "  " + subtleStyle.Render(state) +
			"  " + trafficStyle.Render(h.traffic))
}

// compose draws overlays over the body lines, below the header.
func (h *Host) compose(now time.Time, body string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines := strings.Split(h.headerLocked(now)+"\n"+body, "\n")

	ids := make([]string, 0, len(h.windows))
	for id := range h.windows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		w := h.windows[id]
		if w.lp.Y < 0 {
			continue
		}
		for len(lines) <= w.lp.Y {
			lines = append(lines, "")
		}
		lines[w.lp.Y] = strings.Repeat(" ", max(w.lp.X, 0)) + overlayStyle.Render(w.text)
	}
	return strings.Join(lines, "\n")
}

// Sources feed the panels. Nil sources are skipped.
type Sources struct {
	Tile    func() model.TileView
	Palette func() model.Palette
	Usage   func() string
	Traffic func() string
}

// Actions are bound to keys. They run off the render loop.
type Actions struct {
	ClickTile    func()
	ToggleSleep  func()
	RefreshMonet func()
}

// Model renders the host and panels.
type Model struct {
	host    *Host
	src     Sources
	act     Actions
	now     func() time.Time
	message string
}

func New(host *Host, src Sources, act Actions) *Model {
	return &Model{host: host, src: src, act: act, now: time.Now}
}

// Messages
type (
	tickMsg   struct{}
	actionMsg string
)

func tickCmd() tea.Cmd { return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} }) }

func actionCmd(name string, fn func()) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		fn()
		return actionMsg(name)
	}
}

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.host.Resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			return m, actionCmd("tile clicked", m.act.ClickTile)
		case "z":
			return m, actionCmd("sleep toggled", m.act.ToggleSleep)
		case "m":
			return m, actionCmd("monet refreshed", m.act.RefreshMonet)
		}
	case actionMsg:
		m.message = string(msg)
	case tickMsg:
		if m.src.Traffic != nil {
			m.host.SetTraffic(m.src.Traffic())
		}
		return m, tickCmd()
	}
	return m, nil
}

// trafficWidth fits "↓1023.9 MB/s ↑1023.9 MB/s".
const trafficWidth = 26

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Background(lipgloss.Color("236"))
	trafficStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Width(trafficWidth)
	overlayStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#000000")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	var cards []string
	if m.src.Tile != nil {
		v := m.src.Tile()
		cards = append(cards, card(v.Label, fmt.Sprintf("%s\n%s", v.State, subtleStyle.Render(v.ContentDescription))))
	}
	if m.src.Usage != nil {
		cards = append(cards, card("Data", m.src.Usage()))
	}
	if m.src.Palette != nil {
		cards = append(cards, card("Monet", swatches(m.src.Palette())))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	help := subtleStyle.Render("f fps tile · z sleep/wake · m monet · q quit")
	if m.message != "" {
		help += "  " + m.message
	}
	return m.host.compose(m.now(), lipgloss.JoinVertical(lipgloss.Left, body, help))
}

// Helpers
func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func swatches(p model.Palette) string {
	rows := []struct {
		name string
		v    int32
	}{
		{"accent", p.Accent},
		{"accent2", p.AccentSecondary},
		{"accent3", p.AccentTertiary},
		{"bg", p.Background},
		{"bg light", p.BackgroundLight},
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		if r.v == -1 || (r.v == 0 && p.Accent == 0) {
			fmt.Fprintf(&b, "%-9s %s", r.name, subtleStyle.Render("none"))
			continue
		}
		hex := monet.Hex(r.v)
		chip := lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("  ")
		fmt.Fprintf(&b, "%-9s %s %s", r.name, chip, hex)
	}
	return b.String()
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// ends.
func Run(ctx context.Context, m *Model) error {
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dotos-lab/sysuid/internal/model"
	"github.com/dotos-lab/sysuid/internal/overlay"
)

func TestHostViewLifecycle(t *testing.T) {
	h := NewHost()
	lp := overlay.LayoutParams{Y: h.TopInset()}
	if err := h.AddView("fps", lp, "0"); err != nil {
		t.Fatalf("AddView failed: %v", err)
	}
	if err := h.AddView("fps", lp, "0"); !errors.Is(err, ErrViewExists) {
		t.Fatalf("Expected ErrViewExists, got %v", err)
	}
	if err := h.SetViewText("fps", "60"); err != nil {
		t.Fatal(err)
	}
	if _, text, ok := h.Window("fps"); !ok || text != "60" {
		t.Fatalf("Expected text 60, got %q", text)
	}
	if err := h.RemoveView("fps"); err != nil {
		t.Fatal(err)
	}
	if err := h.SetViewText("fps", "1"); !errors.Is(err, ErrNoView) {
		t.Fatalf("Expected ErrNoView, got %v", err)
	}
}

func TestTopInsetFollowsWidth(t *testing.T) {
	h := NewHost()
	if got := h.TopInset(); got != 1 {
		t.Fatalf("Expected single line status bar, got %d", got)
	}
	calls := 0
	h.OnConfigurationChanged(func() { calls++ })

	h.Resize(8, 40)
	if got := h.TopInset(); got <= 1 {
		t.Fatalf("Expected status bar to wrap on a narrow terminal, got %d", got)
	}
	h.Resize(8, 40)
	if calls != 1 {
		t.Fatalf("Expected one configuration change, got %d", calls)
	}
}

func TestOverlayDrawnBelowStatusBar(t *testing.T) {
	h := NewHost()
	m := New(h, Sources{
		Tile:  func() model.TileView { return model.TileView{Label: "FPS Info", State: model.TileActive} },
		Usage: func() string { return "1.5 kB used" },
	}, Actions{})
	m.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	y := h.TopInset()
	if err := h.AddView("fps", overlay.LayoutParams{Y: y}, "59"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(m.View(), "\n")
	if len(lines) <= y || !strings.Contains(lines[y], "59") {
		t.Fatalf("Expected overlay on row %d, got %q", y, lines)
	}
	if !strings.Contains(lines[0], "12:00:00") {
		t.Fatalf("Expected clock in status bar, got %q", lines[0])
	}
	if !strings.Contains(m.View(), "1.5 kB used") {
		t.Fatal("Expected data usage panel")
	}
}

func TestKeysTriggerActions(t *testing.T) {
	clicked := make(chan struct{}, 1)
	m := New(NewHost(), Sources{}, Actions{ClickTile: func() { clicked <- struct{}{} }})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if cmd == nil {
		t.Fatal("Expected a command for f")
	}
	msg := cmd()
	select {
	case <-clicked:
	default:
		t.Fatal("Expected tile click to run")
	}
	m.Update(msg)
	if m.message != "tile clicked" {
		t.Fatalf("Expected status message, got %q", m.message)
	}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("z")}); cmd != nil {
		t.Fatal("Expected no command for an unbound action")
	}
}

func TestWindowSizeIsConfigurationChange(t *testing.T) {
	h := NewHost()
	changed := false
	h.OnConfigurationChanged(func() { changed = true })
	m := New(h, Sources{}, Actions{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	if !changed {
		t.Fatal("Expected resize to notify listeners")
	}
}

func TestHeadless(t *testing.T) {
	h := NewHeadless(3, nil)
	if h.TopInset() != 3 {
		t.Fatalf("Expected inset 3, got %d", h.TopInset())
	}
	h.AddView("fps", overlay.LayoutParams{Y: 3}, "0")
	h.SetViewText("fps", "42")
	if text, ok := h.Text("fps"); !ok || text != "42" {
		t.Fatalf("Expected 42, got %q", text)
	}
	if err := h.RemoveView("fps"); err != nil {
		t.Fatal(err)
	}
	if err := h.RemoveView("fps"); !errors.Is(err, ErrNoView) {
		t.Fatalf("Expected ErrNoView, got %v", err)
	}
	if Interactive(&bytes.Buffer{}) {
		t.Fatal("Expected a buffer not to be interactive")
	}
}

func TestTrafficShownInStatusBar(t *testing.T) {
	h := NewHost()
	m := New(h, Sources{Traffic: func() string { return "↓1.5 kB/s ↑0 B/s" }}, Actions{})
	if strings.Contains(m.View(), "kB/s") {
		t.Fatal("Expected no traffic before the first tick")
	}
	if _, cmd := m.Update(tickMsg{}); cmd == nil {
		t.Fatal("Expected tick to reschedule")
	}
	first := strings.Split(m.View(), "\n")[0]
	if !strings.Contains(first, "↓1.5 kB/s ↑0 B/s") {
		t.Fatalf("Expected traffic in the status bar, got %q", first)
	}
}

func TestTrafficDoesNotMoveTopInset(t *testing.T) {
	h := NewHost()
	h.Resize(40, 24)
	before := h.TopInset()
	h.SetTraffic("↓1023.9 MB/s ↑1023.9 MB/s")
	if got := h.TopInset(); got != before {
		t.Fatalf("Expected inset %d regardless of traffic text, got %d", before, got)
	}
}

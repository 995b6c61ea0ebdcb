package ui

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/dotos-lab/sysuid/internal/overlay"
)

// Interactive reports whether out is a terminal the TUI can draw on.
func Interactive(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Headless is a window manager without a display. Views are tracked and
// every operation is logged.
type Headless struct {
	inset int
	log   *slog.Logger

	mu    sync.Mutex
	views map[string]window
}

// NewHeadless reports inset as the status bar height.
func NewHeadless(inset int, log *slog.Logger) *Headless {
	if log == nil {
		log = slog.Default()
	}
	return &Headless{inset: inset, log: log.With("component", "wm"), views: make(map[string]window)}
}

func (h *Headless) AddView(id string, lp overlay.LayoutParams, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.views[id]; ok {
		return fmt.Errorf("%w: %s", ErrViewExists, id)
	}
	h.views[id] = window{lp: lp, text: text}
	h.log.Info("view added", "id", id, "x", lp.X, "y", lp.Y, "text", text)
	return nil
}

func (h *Headless) UpdateViewLayout(id string, lp overlay.LayoutParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.views[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoView, id)
	}
	w.lp = lp
	h.views[id] = w
	h.log.Info("view moved", "id", id, "x", lp.X, "y", lp.Y)
	return nil
}

func (h *Headless) SetViewText(id, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.views[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoView, id)
	}
	w.text = text
	h.views[id] = w
	h.log.Debug("view text", "id", id, "text", text)
	return nil
}

func (h *Headless) RemoveView(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.views[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoView, id)
	}
	delete(h.views, id)
	h.log.Info("view removed", "id", id)
	return nil
}

func (h *Headless) TopInset() int { return h.inset }

// Text returns the label of a shown view.
func (h *Headless) Text(id string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.views[id]
	return w.text, ok
}

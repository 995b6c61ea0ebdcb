// Package overlay owns a single non-interactive status window.
package overlay

import (
	"fmt"
	"log/slog"
)

// LayoutParams positions a window. Overlays never take touches or focus.
type LayoutParams struct {
	X, Y      int
	Touchable bool
	Focusable bool
}

// WindowManager is the display host capability the presenter draws through.
type WindowManager interface {
	AddView(id string, lp LayoutParams, text string) error
	UpdateViewLayout(id string, lp LayoutParams) error
	SetViewText(id, text string) error
	RemoveView(id string) error
	// TopInset is the live height of the top system bar.
	TopInset() int
}

// Presenter manages one overlay surface. It is not safe for concurrent use;
// drive it from the mainloop handler.
type Presenter struct {
	wm    WindowManager
	id    string
	lp    LayoutParams
	text  string
	shown bool
	log   *slog.Logger
}

func NewPresenter(wm WindowManager, id, placeholder string, log *slog.Logger) *Presenter {
	if log == nil {
		log = slog.Default()
	}
	return &Presenter{wm: wm, id: id, text: placeholder, log: log}
}

// Show adds the surface at the current top inset. No-op when shown.
func (p *Presenter) Show() error {
	if p.shown {
		return nil
	}
	p.lp = LayoutParams{X: 0, Y: p.wm.TopInset()}
	if err := p.wm.AddView(p.id, p.lp, p.text); err != nil {
		return fmt.Errorf("add overlay %s: %w", p.id, err)
	}
	p.shown = true
	p.log.Debug("overlay shown", "id", p.id, "y", p.lp.Y)
	return nil
}

// Update changes the label. The text is kept for the next Show when hidden.
func (p *Presenter) Update(text string) error {
	if text == p.text {
		return nil
	}
	p.text = text
	if !p.shown {
		return nil
	}
	return p.wm.SetViewText(p.id, text)
}

// Hide removes the surface. No-op when hidden.
func (p *Presenter) Hide() error {
	if !p.shown {
		return nil
	}
	p.shown = false
	if err := p.wm.RemoveView(p.id); err != nil {
		return fmt.Errorf("remove overlay %s: %w", p.id, err)
	}
	p.log.Debug("overlay hidden", "id", p.id)
	return nil
}

// OnConfigurationChanged re-reads the top inset and moves the surface if it
// is shown. A hidden surface picks the new inset up on the next Show.
func (p *Presenter) OnConfigurationChanged() error {
	y := p.wm.TopInset()
	if y == p.lp.Y {
		return nil
	}
	p.lp.Y = y
	if !p.shown {
		return nil
	}
	p.log.Debug("overlay repositioned", "id", p.id, "y", y)
	return p.wm.UpdateViewLayout(p.id, p.lp)
}

func (p *Presenter) Shown() bool { return p.shown }

// Package tile implements quick-settings style toggles that drive services
// across the control boundary.
package tile

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/dotos-lab/sysuid/internal/model"
)

// Binder is the client side of a service binding.
type Binder interface {
	Bind(ctx context.Context) bool
	Unbind()
	Bound() bool
	Start() error
	Stop() error
	IsRunning() bool
}

// Phase is the toggle's view of the binding.
type Phase int

const (
	Unbound Phase = iota
	BoundStopped
	BoundRunning
)

func (p Phase) String() string {
	switch p {
	case BoundStopped:
		return "bound-stopped"
	case BoundRunning:
		return "bound-running"
	default:
		return "unbound"
	}
}

const (
	fpsLabel      = "FPS Info"
	fpsDescOn     = "FPS overlay on"
	fpsDescOff    = "FPS overlay off"
	fpsDescAbsent = "FPS overlay unavailable"
)

// FPSInfo toggles the fps overlay service.
type FPSInfo struct {
	binder    Binder
	available bool
	log       *slog.Logger

	mu          sync.Mutex
	initialized bool
	running     bool
}

// NewFPSInfo returns a tile for the service reading node. The tile is only
// available when node is a regular file.
func NewFPSInfo(node string, b Binder, log *slog.Logger) *FPSInfo {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "tile", "tile", "fpsinfo")
	available := false
	if node != "" {
		if info, err := os.Stat(node); err == nil && info.Mode().IsRegular() {
			available = true
		}
	}
	log.Debug("fps tile", "node", node, "available", available)
	return &FPSInfo{binder: b, available: available, log: log}
}

func (t *FPSInfo) IsAvailable() bool { return t.available }

// HandleInitialize binds the service the first time the tile is shown.
func (t *FPSInfo) HandleInitialize(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return
	}
	t.initialized = true
	bound := t.binder.Bind(ctx)
	t.log.Debug("handleInitialize", "bound", bound)
	if bound {
		t.running = t.binder.IsRunning()
	}
}

// HandleDestroy drops the binding.
func (t *FPSInfo) HandleDestroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.binder.Bound() {
		t.log.Debug("unbinding")
		t.binder.Unbind()
	}
	t.initialized = false
	t.running = false
}

// HandleClick flips the service and refreshes from its reported state, so a
// failed start leaves the tile showing stopped. Clicks while unbound do
// nothing.
func (t *FPSInfo) HandleClick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.binder.Bound() {
		t.log.Debug("click ignored, service not bound")
		t.running = false
		return
	}
	var err error
	if t.binder.IsRunning() {
		t.log.Debug("stopReading")
		err = t.binder.Stop()
	} else {
		t.log.Debug("startReading")
		err = t.binder.Start()
	}
	if err != nil {
		t.log.Warn("toggle failed", "error", err)
	}
	t.running = t.binder.IsRunning()
}

// Refresh re-reads the service state. A shown tile whose binding was lost
// binds again first.
func (t *FPSInfo) Refresh(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized && !t.binder.Bound() {
		if t.binder.Bind(ctx) {
			t.log.Info("service rebound")
		}
	}
	t.running = t.binder.Bound() && t.binder.IsRunning()
}

func (t *FPSInfo) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phaseLocked()
}

func (t *FPSInfo) phaseLocked() Phase {
	switch {
	case !t.binder.Bound():
		return Unbound
	case t.running:
		return BoundRunning
	default:
		return BoundStopped
	}
}

// State is what the panel draws.
func (t *FPSInfo) State() model.TileView {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := model.TileView{Label: fpsLabel}
	switch {
	case !t.available || t.phaseLocked() == Unbound:
		v.State = model.TileUnavailable
		v.ContentDescription = fpsDescAbsent
	case t.running:
		v.State = model.TileActive
		v.ContentDescription = fpsDescOn
	default:
		v.State = model.TileInactive
		v.ContentDescription = fpsDescOff
	}
	return v
}

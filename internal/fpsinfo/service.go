// Package fpsinfo runs the fps overlay: a sysfs poller whose readings are
// drawn in a status window, suspended while the device sleeps.
package fpsinfo

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dotos-lab/sysuid/internal/mainloop"
	"github.com/dotos-lab/sysuid/internal/model"
	"github.com/dotos-lab/sysuid/internal/overlay"
	"github.com/dotos-lab/sysuid/internal/poller"
	"github.com/dotos-lab/sysuid/internal/sampler"
	"github.com/dotos-lab/sysuid/internal/wakefulness"
)

// OverlayID names the fps window in the window manager.
const OverlayID = "fps_info"

// Sampler is the reading side of the service.
type Sampler interface {
	Sample() int
	Close() error
}

// SampleSink receives every sample. Publish must not block.
type SampleSink interface {
	Publish(model.Sample)
}

// Deps are the collaborators the service is wired to.
type Deps struct {
	Handler   *mainloop.Handler
	WM        overlay.WindowManager
	Lifecycle *wakefulness.Lifecycle
	Sink      SampleSink
	Log       *slog.Logger
}

// Status is a point-in-time view for the control protocol.
type Status struct {
	Reading bool
	Polling bool
	Asleep  bool
}

// Service separates the user's intent (reading) from the loop's physical
// state, which is also dropped while the device sleeps.
type Service struct {
	handler   *mainloop.Handler
	lifecycle *wakefulness.Lifecycle
	sampler   Sampler
	sink      SampleSink
	presenter *overlay.Presenter
	loop      *poller.Loop
	interval  time.Duration
	log       *slog.Logger
	observer  *wakefulnessObserver

	mu      sync.Mutex
	reading bool
	asleep  bool
	closed  bool
}

// New opens node and builds a stopped service. When node cannot be opened
// the service declines to start and the error wraps
// sampler.ErrNodeUnavailable.
func New(node string, interval time.Duration, deps Deps) (*Service, error) {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	log := deps.Log.With("component", "fpsinfo")
	s, err := sampler.Open(node, log)
	if err != nil {
		log.Error("unable to open fps node", "path", node, "error", err)
		return nil, err
	}
	svc, err := newService(s, interval, deps)
	if err != nil {
		s.Close()
		return nil, err
	}
	return svc, nil
}

func newService(s Sampler, interval time.Duration, deps Deps) (*Service, error) {
	if deps.Handler == nil || deps.WM == nil {
		return nil, errors.New("fpsinfo: handler and window manager are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("fpsinfo: invalid interval %s", interval)
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	svc := &Service{
		handler:   deps.Handler,
		lifecycle: deps.Lifecycle,
		sampler:   s,
		sink:      deps.Sink,
		interval:  interval,
		log:       deps.Log.With("component", "fpsinfo"),
	}
	svc.presenter = overlay.NewPresenter(deps.WM, OverlayID, FormatFPS(0), svc.log)
	svc.loop = poller.New(s.Sample, svc.onSample)
	if svc.lifecycle != nil {
		svc.observer = &wakefulnessObserver{svc: svc}
		svc.asleep = svc.lifecycle.State() == wakefulness.Asleep
		svc.lifecycle.AddObserver(svc.observer)
	}
	return svc, nil
}

// FormatFPS is the overlay label for a reading.
func FormatFPS(v int) string { return fmt.Sprintf("%d", v) }

// StartReading records the intent to show fps and starts polling unless the
// device is asleep. Repeated calls are no-ops.
func (s *Service) StartReading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Debug("startReading", "reading", s.reading)
	if s.reading || s.closed {
		return
	}
	s.reading = true
	s.startLocked()
}

// StopReading clears the intent and stops polling.
func (s *Service) StopReading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Debug("stopReading", "reading", s.reading)
	if !s.reading {
		return
	}
	s.reading = false
	s.stopLocked()
}

// IsReading reports the user's intent, not whether the loop is running.
func (s *Service) IsReading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

// Polling reports whether the sampling loop is physically running.
func (s *Service) Polling() bool {
	return s.loop.State() == model.Running
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Reading: s.reading,
		Polling: s.loop.State() == model.Running,
		Asleep:  s.asleep,
	}
}

// OnConfigurationChanged recomputes the overlay position on the handler.
func (s *Service) OnConfigurationChanged() {
	s.handler.Post(func() {
		if err := s.presenter.OnConfigurationChanged(); err != nil {
			s.log.Warn("overlay reposition failed", "error", err)
		}
	})
}

// Close stops polling, detaches from the lifecycle and releases the node.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.reading = false
	s.stopLocked()
	s.mu.Unlock()

	if s.lifecycle != nil {
		s.lifecycle.RemoveObserver(s.observer)
	}
	return s.sampler.Close()
}

func (s *Service) startLocked() {
	if !s.reading || s.asleep || s.loop.State() == model.Running {
		return
	}
	s.handler.Post(func() {
		if err := s.presenter.Show(); err != nil {
			s.log.Warn("overlay add failed", "error", err)
		}
	})
	s.loop.Start(s.interval)
}

// stopLocked cancels sampling before the surface is released so no tick can
// reach a removed window.
func (s *Service) stopLocked() {
	s.loop.Stop()
	s.handler.Post(func() {
		if err := s.presenter.Hide(); err != nil {
			s.log.Warn("overlay remove failed", "error", err)
		}
	})
}

func (s *Service) onSample(smp model.Sample, tok poller.Token) {
	if s.sink != nil {
		s.sink.Publish(smp)
	}
	text := FormatFPS(smp.Value)
	s.handler.Post(func() {
		if !tok.Live() {
			return
		}
		if err := s.presenter.Update(text); err != nil {
			s.log.Debug("overlay update failed", "error", err)
		}
	})
}

func (s *Service) suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Debug("onStartedGoingToSleep")
	s.asleep = true
	s.stopLocked()
}

func (s *Service) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Debug("onFinishedWakingUp")
	s.asleep = false
	if !s.closed {
		s.startLocked()
	}
}

type wakefulnessObserver struct {
	svc *Service
}

func (o *wakefulnessObserver) OnStartedGoingToSleep() { o.svc.suspend() }
func (o *wakefulnessObserver) OnFinishedWakingUp()    { o.svc.resume() }

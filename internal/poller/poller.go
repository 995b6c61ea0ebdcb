package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dotos-lab/sysuid/internal/model"
)

// Token identifies the run a sample belongs to. A token stays live until
// the run that issued it is stopped.
type Token struct {
	gen  uint64
	loop *Loop
}

// Live reports whether the issuing run is still the current one. Callbacks
// that land after Stop must check it before touching shared state.
func (t Token) Live() bool {
	return t.loop != nil && t.loop.gen.Load() == t.gen
}

// Loop periodically samples and hands each reading to deliver. At most one
// sampling task is outstanding at any time.
type Loop struct {
	sample  func() int
	deliver func(model.Sample, Token)

	// gen is odd while a run is live; Stop bumps it so stale tokens fail.
	gen atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a stopped loop. deliver runs on the sampling goroutine and must
// not call Stop.
func New(sample func() int, deliver func(model.Sample, Token)) *Loop {
	return &Loop{sample: sample, deliver: deliver}
}

// Start launches the sampling task. It refuses, returning false, while a
// task is already outstanding.
func (l *Loop) Start(interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	gen := l.gen.Add(1)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, Token{gen: gen, loop: l}, interval, l.done)
	return true
}

// Stop cancels the outstanding task and waits for it to exit. Stopping a
// stopped loop is a no-op. After Stop returns every token from the old run
// reports not live.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	if cancel == nil {
		l.mu.Unlock()
		return
	}
	l.gen.Add(1)
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	cancel()
	<-done
}

// State reports whether a sampling task is outstanding.
func (l *Loop) State() model.PollerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return model.Running
	}
	return model.Stopped
}

func (l *Loop) run(ctx context.Context, tok Token, interval time.Duration, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	var seq uint64
	for {
		v := l.sample()
		if ctx.Err() != nil || !tok.Live() {
			return
		}
		seq++
		l.deliver(model.Sample{Value: v, Seq: seq, Timestamp: time.Now()}, tok)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

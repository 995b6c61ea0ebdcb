// Package mainloop provides the single UI-affinity execution context.
//
// Every overlay mutation and configuration-change reaction runs on the
// Handler goroutine, one callback at a time, in post order. Post never blocks
// so background loops can hand work over without waiting on the UI.
package mainloop

import (
	"context"
	"sync"
)

// Handler is a serial executor fed by an unbounded FIFO queue.
type Handler struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	closed  bool
	done    chan struct{}
	running bool
}

func New() *Handler {
	return &Handler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It returns false once the handler is closed.
func (h *Handler) Post(fn func()) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.queue = append(h.queue, fn)
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the handler and waits for it to finish. It returns false
// without running fn if the handler is closed or ctx ends first.
func (h *Handler) Call(ctx context.Context, fn func()) bool {
	finished := make(chan struct{})
	if !h.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-ctx.Done():
		return false
	case <-h.done:
		return false
	}
}

// Run drains the queue until ctx ends or Close is called. Pending callbacks
// are dropped when ctx ends. Only one Run may be active at a time.
func (h *Handler) Run(ctx context.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	defer close(h.done)

	for {
		for {
			fn, ok := h.next()
			if !ok {
				break
			}
			fn()
		}
		h.mu.Lock()
		finished := h.closed && len(h.queue) == 0
		h.mu.Unlock()
		if finished {
			return
		}
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-h.wake:
		}
	}
}

func (h *Handler) next() (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return nil, false
	}
	fn := h.queue[0]
	h.queue[0] = nil
	h.queue = h.queue[1:]
	return fn, true
}

// Close stops accepting work. Callbacks already queued still run.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (h *Handler) Done() <-chan struct{} { return h.done }

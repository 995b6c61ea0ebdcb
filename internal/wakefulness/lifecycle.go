// Package wakefulness tracks whether the device is awake and tells
// observers about sleep and wake edges.
package wakefulness

import "sync"

// State is the current wakefulness.
type State int

const (
	Awake State = iota
	Asleep
)

func (s State) String() string {
	if s == Asleep {
		return "asleep"
	}
	return "awake"
}

// Observer receives edge notifications. Callbacks run on the goroutine that
// drove the transition.
type Observer interface {
	OnStartedGoingToSleep()
	OnFinishedWakingUp()
}

// Lifecycle fans transitions out to observers. Repeating the current state
// is dropped.
type Lifecycle struct {
	mu        sync.Mutex
	state     State
	observers []Observer
}

func New() *Lifecycle { return &Lifecycle{} }

func (l *Lifecycle) AddObserver(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *Lifecycle) RemoveObserver(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, cur := range l.observers {
		if cur == o {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			return
		}
	}
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// GoToSleep reports false when the device was already asleep.
func (l *Lifecycle) GoToSleep() bool {
	obs, ok := l.transition(Asleep)
	for _, o := range obs {
		o.OnStartedGoingToSleep()
	}
	return ok
}

// WakeUp reports false when the device was already awake.
func (l *Lifecycle) WakeUp() bool {
	obs, ok := l.transition(Awake)
	for _, o := range obs {
		o.OnFinishedWakingUp()
	}
	return ok
}

func (l *Lifecycle) transition(to State) ([]Observer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == to {
		return nil, false
	}
	l.state = to
	return append([]Observer(nil), l.observers...), true
}

package datausage

import (
	"log/slog"
	"sync"
	"time"
)

// speedInterval is the shortest window a rate is computed over. Samples
// taken sooner return the previous rate.
const speedInterval = time.Second

// Speed is the status bar network traffic meter: receive and transmit rates
// between successive counter readings.
type Speed struct {
	read Counters
	now  func() time.Time
	log  *slog.Logger

	mu       sync.Mutex
	prevRecv uint64
	prevSent uint64
	prevAt   time.Time
	rx, tx   float64
	haveRate bool
}

// NewSpeed reads an initial baseline. A nil read uses SystemCounters.
func NewSpeed(read Counters, log *slog.Logger) *Speed {
	if read == nil {
		read = SystemCounters
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Speed{read: read, now: time.Now, log: log.With("component", "networktraffic")}
	s.Sample()
	return s
}

// Sample returns bytes per second received and sent. ok is false until two
// readings at least speedInterval apart exist, or while the counters cannot
// be read.
func (s *Speed) Sample() (rx, tx float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.prevAt.IsZero() && now.Sub(s.prevAt) < speedInterval {
		return s.rx, s.tx, s.haveRate
	}
	recv, sent, err := s.read()
	if err != nil {
		s.log.Debug("traffic unavailable", "error", err)
		s.prevAt = time.Time{}
		s.haveRate = false
		return 0, 0, false
	}
	if s.prevAt.IsZero() {
		s.prevRecv, s.prevSent, s.prevAt = recv, sent, now
		return 0, 0, false
	}
	dur := now.Sub(s.prevAt).Seconds()
	// Counters reset when interfaces go away; restart from the new values.
	if recv < s.prevRecv || sent < s.prevSent {
		s.rx, s.tx = 0, 0
	} else {
		s.rx = float64(recv-s.prevRecv) / dur
		s.tx = float64(sent-s.prevSent) / dur
	}
	s.prevRecv, s.prevSent, s.prevAt = recv, sent, now
	s.haveRate = true
	return s.rx, s.tx, true
}

// Label renders the current rates, e.g. "↓1.5 kB/s ↑0 B/s". It is empty
// while no rate is known, which hides the indicator.
func (s *Speed) Label() string {
	rx, tx, ok := s.Sample()
	if !ok {
		return ""
	}
	return "↓" + FormatSize(int64(rx)) + "/s ↑" + FormatSize(int64(tx)) + "/s"
}

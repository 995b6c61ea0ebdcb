// Package datausage reports network traffic since the daemon started and
// the current transfer rate.
package datausage

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/shirou/gopsutil/v3/net"
)

// Unknown is shown when no interface counters are available.
const Unknown = "Data usage unknown"

// FormatSize renders bytes with binary units and one decimal, e.g. "1.5 kB".
func FormatSize(bytes int64) string {
	absB := bytes
	switch {
	case bytes == math.MinInt64:
		absB = math.MaxInt64
	case bytes < 0:
		absB = -bytes
	}
	if absB < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	const units = "kMGTPE"
	value := absB
	u := 0
	for i := 40; i >= 0 && absB > 0xfffcccccccccccc>>i; i -= 10 {
		value >>= 10
		u++
	}
	value *= signum(bytes)
	return fmt.Sprintf("%.1f %cB", float64(value)/1024.0, units[u])
}

func signum(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Counters returns the total bytes received and sent across interfaces.
type Counters func() (recv, sent uint64, err error)

// SystemCounters reads the aggregate interface counters.
func SystemCounters() (uint64, uint64, error) {
	stats, err := net.IOCounters(false)
	if err != nil {
		return 0, 0, fmt.Errorf("read net counters: %w", err)
	}
	if len(stats) == 0 {
		return 0, 0, fmt.Errorf("read net counters: no interfaces")
	}
	return stats[0].BytesRecv, stats[0].BytesSent, nil
}

// Controller measures traffic relative to the first successful reading.
type Controller struct {
	read Counters
	log  *slog.Logger

	mu       sync.Mutex
	baseRecv uint64
	baseSent uint64
	haveBase bool
}

// NewController takes a baseline immediately. A nil read uses
// SystemCounters.
func NewController(read Counters, log *slog.Logger) *Controller {
	if read == nil {
		read = SystemCounters
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{read: read, log: log.With("component", "datausage")}
	c.Reset()
	return c
}

// Reset moves the baseline to the current counters.
func (c *Controller) Reset() {
	recv, sent, err := c.read()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Debug("baseline unavailable", "error", err)
		c.haveBase = false
		return
	}
	c.baseRecv, c.baseSent, c.haveBase = recv, sent, true
}

// Usage returns bytes received plus sent since the baseline. ok is false
// when the counters cannot be read.
func (c *Controller) Usage() (used int64, ok bool) {
	recv, sent, err := c.read()
	if err != nil {
		c.log.Debug("usage unavailable", "error", err)
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveBase {
		c.baseRecv, c.baseSent, c.haveBase = recv, sent, true
	}
	// Counters can wrap or reset when interfaces go away.
	if recv < c.baseRecv || sent < c.baseSent {
		c.baseRecv, c.baseSent = recv, sent
	}
	return int64((recv - c.baseRecv) + (sent - c.baseSent)), true
}

// Label is the user-facing usage line.
func (c *Controller) Label() string {
	used, ok := c.Usage()
	if !ok {
		return Unknown
	}
	return FormatSize(used) + " used"
}

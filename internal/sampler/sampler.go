package sampler

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// ErrNodeUnavailable is returned by Open when the node cannot be opened.
var ErrNodeUnavailable = errors.New("fps node unavailable")

// Sysfs reads the first decimal number from a kernel-exposed text node.
// The file is opened once and re-read from offset 0 on every Sample.
type Sysfs struct {
	path string
	log  *slog.Logger

	mu sync.Mutex
	f  *os.File
	rd *bufio.Reader
}

// Open opens path for reading. A missing or unreadable node is fatal for the
// caller; there is no retry.
func Open(path string, log *slog.Logger) (*Sysfs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNodeUnavailable, path, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sysfs{
		path: path,
		log:  log,
		f:    f,
		rd:   bufio.NewReaderSize(f, 256),
	}, nil
}

// Sample returns the current reading, or 0 if the read or parse failed.
// A dropped sample is preferred to interrupting the display; the next tick
// is the retry.
func (s *Sysfs) Sample() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		s.log.Debug("fps node seek failed", "path", s.path, "error", err)
		return 0
	}
	s.rd.Reset(s.f)
	line, err := s.rd.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		s.log.Debug("fps node read failed", "path", s.path, "error", err)
		return 0
	}
	return FirstNumber(line)
}

// Close releases the node. Later samples return 0.
func (s *Sysfs) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// FirstNumber returns the first maximal run of decimal digits in line, or 0.
func FirstNumber(line string) int {
	start := -1
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return parseInt(line[start:i])
		}
	}
	if start >= 0 {
		return parseInt(line[start:])
	}
	return 0
}

// Helpers
func parseInt(digits string) int {
	v, err := strconv.Atoi(digits)
	if err != nil {
		// overflow
		return 0
	}
	return v
}

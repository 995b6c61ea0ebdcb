package sampler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeNode(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write node: %v", err)
	}
}

func TestFirstNumber(t *testing.T) {
	cases := map[string]int{
		"fps: 59":              59,
		"59.94":                59,
		"   120\n":             120,
		"":                     0,
		"fps: none":            0,
		"\n":                   0,
		"abc":                  0,
		"99999999999999999999": 0,
		"a1b2":                 1,
	}
	for line, want := range cases {
		if got := FirstNumber(line); got != want {
			t.Errorf("FirstNumber(%q) = %d, want %d", line, got, want)
		}
	}
}

func TestOpenMissingNodeIsFatal(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, ErrNodeUnavailable) {
		t.Fatalf("Expected ErrNodeUnavailable, got %v", err)
	}
}

func TestSampleRereadsFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measured_fps")
	writeNode(t, path, "fps: 59\n")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if got := s.Sample(); got != 59 {
		t.Fatalf("Expected 59, got %d", got)
	}
	writeNode(t, path, "fps: 120")
	if got := s.Sample(); got != 120 {
		t.Fatalf("Expected 120 after rewrite, got %d", got)
	}
}

func TestSampleMalformedReturnsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measured_fps")
	for _, content := range []string{"", "\n", "fps: n/a\n", "--"} {
		writeNode(t, path, content)
		s, err := Open(path, nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if got := s.Sample(); got != 0 {
			t.Errorf("content %q: expected 0, got %d", content, got)
		}
		s.Close()
	}
}

func TestSampleAfterCloseReturnsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measured_fps")
	writeNode(t, path, "60")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := s.Sample(); got != 0 {
		t.Fatalf("Expected 0 after close, got %d", got)
	}
}

func TestSampleReadErrorReturnsZero(t *testing.T) {
	// A directory opens fine but every read fails with EISDIR.
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	for i := 0; i < 2; i++ {
		if got := s.Sample(); got != 0 {
			t.Fatalf("Expected 0 from an unreadable node, got %d", got)
		}
	}
}

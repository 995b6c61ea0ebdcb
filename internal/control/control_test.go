package control

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dotos-lab/sysuid/internal/mainloop"
)

type fakeService struct {
	mu      sync.Mutex
	running bool
	asleep  bool
	sleeps  int
	wakes   int
}

func (f *fakeService) callbacks() Callbacks {
	return Callbacks{
		OnStart: func() { f.mu.Lock(); f.running = true; f.mu.Unlock() },
		OnStop:  func() { f.mu.Lock(); f.running = false; f.mu.Unlock() },
		Status: func() State {
			f.mu.Lock()
			defer f.mu.Unlock()
			return State{Running: f.running, Polling: f.running && !f.asleep, Asleep: f.asleep}
		},
		OnSleep: func() { f.mu.Lock(); f.sleeps++; f.asleep = true; f.mu.Unlock() },
		OnWake:  func() { f.mu.Lock(); f.wakes++; f.asleep = false; f.mu.Unlock() },
	}
}

// socketPath keeps paths short enough for sun_path.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ctl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func startServer(t *testing.T, path string, cb Callbacks) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := mainloop.New()
	go h.Run(ctx)

	srv, err := Listen(path, h, cb, nil)
	if err != nil {
		cancel()
		t.Fatalf("Listen failed: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not exit")
		}
	})
	return srv
}

func TestStartStopStatus(t *testing.T) {
	path := socketPath(t)
	svc := &fakeService{}
	startServer(t, path, svc.callbacks())

	c := NewClient(path, nil)
	if !c.Bind(context.Background()) {
		t.Fatal("Bind failed")
	}
	defer c.Unbind()

	if c.IsRunning() {
		t.Fatal("Expected not running initially")
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !c.IsRunning() {
		t.Fatal("Expected running after Start")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.IsRunning() {
		t.Fatal("Expected not running after Stop")
	}
}

func TestLifecycleCommands(t *testing.T) {
	path := socketPath(t)
	svc := &fakeService{}
	startServer(t, path, svc.callbacks())

	c := NewClient(path, nil)
	c.Bind(context.Background())
	defer c.Unbind()

	if _, err := c.Send(CmdSleep); err != nil {
		t.Fatalf("sleep failed: %v", err)
	}
	if _, err := c.Send(CmdWake); err != nil {
		t.Fatalf("wake failed: %v", err)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.sleeps != 1 || svc.wakes != 1 {
		t.Fatalf("Expected 1 sleep and 1 wake, got %d and %d", svc.sleeps, svc.wakes)
	}
}

func TestStatusCarriesPhysicalState(t *testing.T) {
	path := socketPath(t)
	svc := &fakeService{}
	startServer(t, path, svc.callbacks())

	c := NewClient(path, nil)
	c.Bind(context.Background())
	defer c.Unbind()

	c.Start()
	resp, err := c.Send(CmdStatus)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !resp.Running || !resp.Polling || resp.Asleep {
		t.Fatalf("Expected running and polling while awake, got %+v", resp)
	}

	resp, err = c.Send(CmdSleep)
	if err != nil {
		t.Fatalf("sleep failed: %v", err)
	}
	if !resp.Running || resp.Polling || !resp.Asleep {
		t.Fatalf("Expected intent kept with polling suspended, got %+v", resp)
	}
}

func TestSlowHandlerKeepsBinding(t *testing.T) {
	if defaultRequestTimeout <= dispatchTimeout {
		t.Fatalf("Client timeout %s must exceed dispatch timeout %s", defaultRequestTimeout, dispatchTimeout)
	}
	path := socketPath(t)
	svc := &fakeService{}
	cb := svc.callbacks()
	start := cb.OnStart
	cb.OnStart = func() {
		time.Sleep(2500 * time.Millisecond)
		start()
	}
	startServer(t, path, cb)

	c := NewClient(path, nil)
	c.Bind(context.Background())
	defer c.Unbind()

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !c.Bound() {
		t.Fatal("Slow command dropped the binding")
	}
	if !c.IsRunning() {
		t.Fatal("Expected running after a slow start")
	}
}

func TestUnboundClientIsInert(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "none.sock"), nil)
	if c.Bind(context.Background()) {
		t.Fatal("Bind succeeded without a server")
	}
	if c.IsRunning() {
		t.Fatal("Unbound IsRunning returned true")
	}
	if err := c.Start(); !errors.Is(err, ErrNotBound) {
		t.Fatalf("Expected ErrNotBound, got %v", err)
	}
}

func TestUnknownAndUnsupportedCommands(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, Callbacks{})

	c := NewClient(path, nil)
	c.Bind(context.Background())
	defer c.Unbind()

	resp, err := c.Send("reboot")
	if err == nil || resp.OK() {
		t.Fatal("Expected unknown command to fail")
	}
	if _, err := c.Send(CmdMonetRefresh); err == nil {
		t.Fatal("Expected unsupported command to fail")
	}
	if !c.Bound() {
		t.Fatal("Rejected command dropped the binding")
	}
}

func TestServerCloseDisconnectsClient(t *testing.T) {
	path := socketPath(t)
	svc := &fakeService{running: true}
	srv := startServer(t, path, svc.callbacks())

	c := NewClient(path, nil)
	c.Bind(context.Background())
	if !c.IsRunning() {
		t.Fatal("Expected running")
	}

	srv.Close()
	if c.IsRunning() {
		t.Fatal("IsRunning true after the service went away")
	}
	if c.Bound() {
		t.Fatal("Client still bound after disconnect")
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	// Leave the socket file behind without a listener.
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()

	startServer(t, path, (&fakeService{}).callbacks())
}

func TestListenRejectsSecondInstance(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, (&fakeService{}).callbacks())

	if _, err := Listen(path, mainloop.New(), Callbacks{}, nil); !errors.Is(err, ErrAlreadyServing) {
		t.Fatalf("Expected ErrAlreadyServing, got %v", err)
	}
}

package tile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotos-lab/sysuid/internal/control"
	"github.com/dotos-lab/sysuid/internal/fpsinfo"
	"github.com/dotos-lab/sysuid/internal/mainloop"
	"github.com/dotos-lab/sysuid/internal/model"
	"github.com/dotos-lab/sysuid/internal/tile"
	"github.com/dotos-lab/sysuid/internal/ui"
	"github.com/dotos-lab/sysuid/internal/wakefulness"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTileDrivesOverlayAcrossSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "sysuid")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	node := filepath.Join(dir, "measured_fps")
	if err := os.WriteFile(node, []byte("fps: 60\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := mainloop.New()
	go handler.Run(ctx)

	wm := ui.NewHeadless(2, nil)
	svc, err := fpsinfo.New(node, 10*time.Millisecond, fpsinfo.Deps{
		Handler:   handler,
		WM:        wm,
		Lifecycle: wakefulness.New(),
	})
	if err != nil {
		t.Fatalf("fpsinfo.New failed: %v", err)
	}
	defer svc.Close()

	sock := filepath.Join(dir, "c.sock")
	srv, err := control.Listen(sock, handler, control.Callbacks{
		OnStart: svc.StartReading,
		OnStop:  svc.StopReading,
		Status: func() control.State {
			st := svc.Status()
			return control.State{Running: st.Reading, Polling: st.Polling, Asleep: st.Asleep}
		},
	}, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer srv.Close()
	go srv.Serve(ctx)

	fps := tile.NewFPSInfo(node, control.NewClient(sock, nil), nil)
	fps.HandleInitialize(ctx)
	defer fps.HandleDestroy()
	if got := fps.Phase(); got != tile.BoundStopped {
		t.Fatalf("Expected bound-stopped, got %s", got)
	}

	fps.HandleClick()
	if got := fps.State().State; got != model.TileActive {
		t.Fatalf("Expected active tile, got %s", got)
	}
	waitFor(t, "overlay to show 60", func() bool {
		text, ok := wm.Text(fpsinfo.OverlayID)
		return ok && text == "60"
	})

	fps.HandleClick()
	if got := fps.State().State; got != model.TileInactive {
		t.Fatalf("Expected inactive tile, got %s", got)
	}
	waitFor(t, "overlay removal", func() bool {
		_, ok := wm.Text(fpsinfo.OverlayID)
		return !ok
	})
}

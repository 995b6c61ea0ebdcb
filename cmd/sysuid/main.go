// Command sysuid runs the system UI daemon and its one-shot clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/dotos-lab/sysuid/internal/config"
	"github.com/dotos-lab/sysuid/internal/control"
	"github.com/dotos-lab/sysuid/internal/datausage"
	"github.com/dotos-lab/sysuid/internal/emitter"
	"github.com/dotos-lab/sysuid/internal/fpsinfo"
	"github.com/dotos-lab/sysuid/internal/mainloop"
	"github.com/dotos-lab/sysuid/internal/model"
	"github.com/dotos-lab/sysuid/internal/monet"
	"github.com/dotos-lab/sysuid/internal/overlay"
	"github.com/dotos-lab/sysuid/internal/settings"
	"github.com/dotos-lab/sysuid/internal/tile"
	"github.com/dotos-lab/sysuid/internal/ui"
	"github.com/dotos-lab/sysuid/internal/wakefulness"
)

const usage = `usage:
  sysuid [serve] [flags]          run the daemon
  sysuid tile [status|click] [flags]
  sysuid monet [-lock] [flags]    extract wallpaper colors into settings`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "sysuid:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		return serve(args)
	case "tile":
		return tileCmd(args)
	case "monet":
		return monetCmd(args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// sleepIndicator mirrors wakefulness into the status bar.
type sleepIndicator struct{ host *ui.Host }

func (s sleepIndicator) OnStartedGoingToSleep() { s.host.SetAsleep(true) }
func (s sleepIndicator) OnFinishedWakingUp()    { s.host.SetAsleep(false) }

func serve(args []string) error {
	cfg, err := config.FromFlags("sysuid serve", args)
	if err != nil {
		return err
	}

	interactive := !cfg.Headless && ui.Interactive(os.Stdout)
	logOut := io.Writer(os.Stderr)
	if interactive {
		// The TUI owns the terminal.
		f, err := tea.LogToFile(filepath.Join(os.TempDir(), "sysuid.log"), "sysuid")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := newLogger(cfg, logOut)
	slog.SetDefault(log)
	log.Info("starting sysuid", "fps_node", cfg.FPSNode, "socket", cfg.Socket, "interactive", interactive)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The handler outlives ctx so the overlay removal queued at shutdown
	// still runs.
	handler := mainloop.New()
	go handler.Run(context.Background())
	lifecycle := wakefulness.New()

	var (
		wm   overlay.WindowManager
		host *ui.Host
	)
	if interactive {
		host = ui.NewHost()
		lifecycle.AddObserver(sleepIndicator{host})
		wm = host
	} else {
		wm = ui.NewHeadless(1, log)
	}

	deps := fpsinfo.Deps{Handler: handler, WM: wm, Lifecycle: lifecycle, Log: log}
	if cfg.MQTTBroker != "" {
		em := emitter.NewMQTTEmitter(cfg.MQTTBroker, cfg.MQTTTopic, log)
		if err := em.Connect(ctx); err != nil {
			log.Warn("mqtt unavailable, samples will be dropped until it connects", "error", err)
		}
		defer em.Disconnect()
		deps.Sink = em
	}

	svc, err := fpsinfo.New(cfg.FPSNode, cfg.FPSInterval, deps)
	if err != nil {
		log.Warn("fps overlay disabled", "error", err)
	} else if host != nil {
		host.OnConfigurationChanged(svc.OnConfigurationChanged)
	}
	defer shutdown(svc, handler, log)

	store, err := settings.Open(cfg.SettingsPath, log)
	if err != nil {
		return err
	}
	watcher := monet.NewWatcher(store, cfg.Wallpaper, cfg.LockWallpaper, cfg.MonetInterval, log)

	cb := control.Callbacks{
		OnSleep: func() { lifecycle.GoToSleep() },
		OnWake:  func() { lifecycle.WakeUp() },
		OnMonetRefresh: func() error {
			if err := watcher.ForceUpdate(); err != nil && !errors.Is(err, monet.ErrNoWallpaper) {
				return err
			}
			return nil
		},
	}
	if svc != nil {
		cb.OnStart = svc.StartReading
		cb.OnStop = svc.StopReading
		cb.Status = func() control.State {
			st := svc.Status()
			return control.State{Running: st.Reading, Polling: st.Polling, Asleep: st.Asleep}
		}
	}
	srv, err := control.Listen(cfg.Socket, handler, cb, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })

	if interactive {
		fpsTile := tile.NewFPSInfo(cfg.FPSNode, control.NewClient(cfg.Socket, log), log)
		g.Go(func() error {
			fpsTile.HandleInitialize(gctx)
			defer fpsTile.HandleDestroy()
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					fpsTile.Refresh(gctx)
				}
			}
		})

		traffic := datausage.NewController(nil, log)
		speed := datausage.NewSpeed(nil, log)
		m := ui.New(host, ui.Sources{
			Tile: fpsTile.State,
			Palette: func() model.Palette {
				p, _ := watcher.Palettes()
				return p
			},
			Usage:   traffic.Label,
			Traffic: speed.Label,
		}, ui.Actions{
			ClickTile: fpsTile.HandleClick,
			ToggleSleep: func() {
				handler.Call(gctx, func() {
					if lifecycle.State() == wakefulness.Asleep {
						lifecycle.WakeUp()
					} else {
						lifecycle.GoToSleep()
					}
				})
			},
			RefreshMonet: func() {
				if err := cb.OnMonetRefresh(); err != nil {
					log.Warn("monet refresh failed", "error", err)
				}
			},
		})
		g.Go(func() error {
			defer cancel()
			return ui.Run(gctx, m)
		})
	}

	err = g.Wait()
	log.Info("sysuid stopped", "error", err)
	return err
}

const shutdownTimeout = 2 * time.Second

// shutdown stops the service, which queues the overlay removal, then drains
// the handler so the removal runs before exit.
func shutdown(svc *fpsinfo.Service, handler *mainloop.Handler, log *slog.Logger) {
	if svc != nil {
		svc.Close()
	}
	handler.Close()
	select {
	case <-handler.Done():
	case <-time.After(shutdownTimeout):
		log.Warn("handler did not drain before shutdown")
	}
}

func tileCmd(args []string) error {
	action := "status"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}
	if action != "status" && action != "click" {
		return fmt.Errorf("unknown tile action %q\n%s", action, usage)
	}
	cfg, err := config.FromFlags("sysuid tile", args)
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := control.NewClient(cfg.Socket, log)
	t := tile.NewFPSInfo(cfg.FPSNode, client, log)
	t.HandleInitialize(ctx)
	defer t.HandleDestroy()

	if t.Phase() == tile.Unbound {
		return fmt.Errorf("no sysuid daemon at %s", cfg.Socket)
	}
	if action == "click" {
		if !t.IsAvailable() {
			return fmt.Errorf("fps node %s unavailable", cfg.FPSNode)
		}
		t.HandleClick()
	}
	v := t.State()
	fmt.Printf("%s: %s (%s)\n", v.Label, v.State, v.ContentDescription)
	resp, err := client.Send(control.CmdStatus)
	if err != nil {
		return err
	}
	fmt.Println(serviceLine(resp))
	return nil
}

func serviceLine(resp control.Response) string {
	reading := "stopped"
	if resp.Running {
		reading = "reading"
	}
	polling := "idle"
	if resp.Polling {
		polling = "polling"
	}
	wake := "awake"
	if resp.Asleep {
		wake = "asleep"
	}
	return fmt.Sprintf("service: %s, %s, %s", reading, polling, wake)
}

func monetCmd(args []string) error {
	lock := false
	rest := args[:0:0]
	for _, a := range args {
		if a == "-lock" || a == "--lock" {
			lock = true
			continue
		}
		rest = append(rest, a)
	}
	cfg, err := config.FromFlags("sysuid monet", rest)
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stderr)

	store, err := settings.Open(cfg.SettingsPath, log)
	if err != nil {
		return err
	}
	w := monet.NewWatcher(store, cfg.Wallpaper, cfg.LockWallpaper, cfg.MonetInterval, log)
	var p model.Palette
	if lock {
		p, err = w.UpdateKeyguard()
	} else {
		p, err = w.UpdateSystem()
	}
	if err != nil {
		return err
	}
	log.Debug("monet pass done", "lock", lock, "accent", monet.Hex(p.Accent))
	writeMonetSettings(os.Stdout, store.Snapshot(), lock)
	return nil
}

// writeMonetSettings prints the stored theme keys of one pass, sorted, with
// colors as hex.
func writeMonetSettings(w io.Writer, snap map[string]string, keyguard bool) {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		if !strings.HasPrefix(k, "monet_") || strings.Contains(k, "keyguard") != keyguard {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := snap[k]
		if k != settings.MonetChroma && k != settings.MonetLightness {
			if n, err := strconv.ParseInt(v, 10, 32); err == nil && n != -1 {
				v = monet.Hex(int32(n))
			}
		}
		fmt.Fprintf(w, "%-42s %s\n", k, v)
	}
}

package monet

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dotos-lab/sysuid/internal/model"
	"github.com/dotos-lab/sysuid/internal/settings"
)

// ErrNoWallpaper is returned when a pass has no usable wallpaper.
var ErrNoWallpaper = errors.New("monet: no wallpaper")

// Watcher recomputes the theme when a wallpaper or the engine settings
// change.
type Watcher struct {
	store    *settings.Store
	system   string
	lock     string
	interval time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	sysMod   time.Time
	lockMod  time.Time
	palette  model.Palette
	keyguard model.Palette
}

// NewWatcher wires the watcher to store. Changes to the chroma or lightness
// settings force an immediate update.
func NewWatcher(store *settings.Store, system, lock string, interval time.Duration, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{
		store:    store,
		system:   system,
		lock:     lock,
		interval: interval,
		log:      log.With("component", "monet"),
	}
	onEngineChange := func(key, value string) {
		w.log.Debug("engine setting changed", "key", key, "value", value)
		if err := w.ForceUpdate(); err != nil && !errors.Is(err, ErrNoWallpaper) {
			w.log.Warn("monet update failed", "error", err)
		}
	}
	store.Observe(settings.MonetChroma, onEngineChange)
	store.Observe(settings.MonetLightness, onEngineChange)
	return w
}

// Run polls wallpapers and settings until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	w.poll()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.store.Reload(); err != nil {
				w.log.Warn("settings reload failed", "error", err)
			}
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	if changed(w.system, &w.mu, &w.sysMod) {
		if _, err := w.UpdateSystem(); err != nil {
			w.log.Warn("system wallpaper update failed", "path", w.system, "error", err)
		}
	}
	if changed(w.lock, &w.mu, &w.lockMod) {
		if _, err := w.UpdateKeyguard(); err != nil {
			w.log.Warn("lock wallpaper update failed", "path", w.lock, "error", err)
		}
	}
}

func changed(path string, mu *sync.Mutex, last *time.Time) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mu.Lock()
	defer mu.Unlock()
	if info.ModTime().Equal(*last) {
		return false
	}
	*last = info.ModTime()
	return true
}

// ForceUpdate recomputes both the system and keyguard colors.
func (w *Watcher) ForceUpdate() error {
	_, errSys := w.UpdateSystem()
	_, errLock := w.UpdateKeyguard()
	if errors.Is(errSys, ErrNoWallpaper) && errors.Is(errLock, ErrNoWallpaper) {
		return ErrNoWallpaper
	}
	if errors.Is(errSys, ErrNoWallpaper) {
		errSys = nil
	}
	if errors.Is(errLock, ErrNoWallpaper) {
		errLock = nil
	}
	return errors.Join(errSys, errLock)
}

// UpdateSystem extracts the system wallpaper seed, honouring a user-picked
// color when the wallpaper offers it, and writes the base theme keys.
func (w *Watcher) UpdateSystem() (model.Palette, error) {
	if w.system == "" {
		return model.Palette{}, ErrNoWallpaper
	}
	img, err := Load(w.system)
	if err != nil {
		return model.Palette{}, err
	}
	candidates := Extract(img)
	if len(candidates) == 0 {
		return model.Palette{}, ErrNoWallpaper
	}

	picked := int32(w.store.GetInt(settings.MonetWallpaperColorPicker, -1))
	seed := candidates[0]
	for _, c := range candidates {
		if ARGB(c) == picked {
			seed = c
			break
		}
	}
	if ARGB(seed) != picked {
		if err := w.store.PutInt(settings.MonetWallpaperColorPicker, int(ARGB(seed))); err != nil {
			return model.Palette{}, err
		}
	}

	p := w.scheme(seed).Palette()
	err = w.store.PutAll(map[string]string{
		settings.MonetBaseAccent:               itoa(p.Accent),
		settings.MonetBaseAccentLight:          itoa(p.AccentLight),
		settings.MonetBaseAccentSecondary:      itoa(p.AccentSecondary),
		settings.MonetBaseAccentSecondaryLight: itoa(p.AccentSecondaryLight),
		settings.MonetBaseAccentTertiary:       itoa(p.AccentTertiary),
		settings.MonetBaseAccentTertiaryLight:  itoa(p.AccentTertiaryLight),
		settings.MonetBackground:               itoa(p.Background),
		settings.MonetBackgroundLight:          itoa(p.BackgroundLight),
		settings.MonetBackgroundSecondary:      itoa(p.BackgroundSecondary),
		settings.MonetBackgroundSecondaryLight: itoa(p.BackgroundSecondaryLight),
	})
	if err != nil {
		return model.Palette{}, err
	}
	w.mu.Lock()
	w.palette = p
	w.mu.Unlock()
	w.log.Info("system colors updated", "seed", seed.Hex(), "accent", Hex(p.Accent))
	return p, nil
}

// UpdateKeyguard derives the lock screen colors from the lock wallpaper's
// primary color.
func (w *Watcher) UpdateKeyguard() (model.Palette, error) {
	if w.lock == "" {
		return model.Palette{}, ErrNoWallpaper
	}
	img, err := Load(w.lock)
	if err != nil {
		return model.Palette{}, err
	}
	candidates := Extract(img)
	if len(candidates) == 0 {
		return model.Palette{}, ErrNoWallpaper
	}

	p := w.scheme(candidates[0]).Palette()
	err = w.store.PutAll(map[string]string{
		settings.MonetBaseKeyguardAccent:               itoa(p.Accent),
		settings.MonetBaseKeyguardAccentLight:          itoa(p.AccentLight),
		settings.MonetKeyguardBackground:               itoa(p.Background),
		settings.MonetKeyguardBackgroundLight:          itoa(p.BackgroundLight),
		settings.MonetKeyguardBackgroundSecondary:      itoa(p.BackgroundSecondary),
		settings.MonetKeyguardBackgroundSecondaryLight: itoa(p.BackgroundSecondaryLight),
	})
	if err != nil {
		return model.Palette{}, err
	}
	w.mu.Lock()
	w.keyguard = p
	w.mu.Unlock()
	w.log.Info("keyguard colors updated", "accent", Hex(p.Accent))
	return p, nil
}

// Palettes returns the last system and keyguard results.
func (w *Watcher) Palettes() (system, keyguard model.Palette) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.palette, w.keyguard
}

func (w *Watcher) scheme(seed colorful.Color) Scheme {
	chroma := w.store.GetFloat(settings.MonetChroma, DefaultChroma)
	lightness := w.store.GetFloat(settings.MonetLightness, DefaultLightness)
	return NewScheme(seed, chroma, WhiteLuminance(lightness))
}

func itoa(v int32) string { return strconv.Itoa(int(v)) }

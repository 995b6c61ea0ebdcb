package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries runtime options for sysuid.
type Config struct {
	FPSNode       string        `yaml:"fps_node"`
	FPSInterval   time.Duration `yaml:"fps_interval"`
	Socket        string        `yaml:"socket"`
	SettingsPath  string        `yaml:"settings_path"`
	Wallpaper     string        `yaml:"wallpaper"`
	LockWallpaper string        `yaml:"lock_wallpaper"`
	MonetInterval time.Duration `yaml:"monet_interval"`
	MQTTBroker    string        `yaml:"mqtt_broker"`
	MQTTTopic     string        `yaml:"mqtt_topic"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	Headless      bool          `yaml:"headless"`
}

func Default() Config {
	return Config{
		FPSNode:       "/sys/class/drm/sde-crtc-0/measured_fps",
		FPSInterval:   time.Second,
		Socket:        defaultSocket(),
		SettingsPath:  defaultSettingsPath(),
		MonetInterval: 5 * time.Second,
		MQTTTopic:     "sysuid/fps",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func defaultSocket() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "sysuid.sock")
	}
	return "/tmp/sysuid.sock"
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "settings_secure.yaml"
	}
	return filepath.Join(dir, "sysuid", "settings_secure.yaml")
}

// FromFlags parses flags, an optional YAML file and environment overrides.
// Precedence, lowest first: defaults, file, environment, explicit flags.
func FromFlags(name string, args []string) (Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	file := fs.String("config", "", "YAML config file")
	fs.StringVar(&cfg.FPSNode, "fps-node", cfg.FPSNode, "sysfs node reporting measured fps")
	fs.DurationVar(&cfg.FPSInterval, "fps-interval", cfg.FPSInterval, "fps read interval")
	fs.StringVar(&cfg.Socket, "socket", cfg.Socket, "control socket path")
	fs.StringVar(&cfg.SettingsPath, "settings", cfg.SettingsPath, "secure settings file")
	fs.StringVar(&cfg.Wallpaper, "wallpaper", cfg.Wallpaper, "system wallpaper image")
	fs.StringVar(&cfg.LockWallpaper, "lock-wallpaper", cfg.LockWallpaper, "lock screen wallpaper image")
	fs.DurationVar(&cfg.MonetInterval, "monet-interval", cfg.MonetInterval, "wallpaper poll interval")
	fs.StringVar(&cfg.MQTTBroker, "mqtt", cfg.MQTTBroker, "MQTT broker host:port, empty disables")
	fs.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT topic for fps samples")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text|json")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "log overlay operations instead of drawing")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	flagged := cfg

	if *file != "" {
		if err := cfg.loadFile(*file); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()

	// Explicit flags win over file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fps-node":
			cfg.FPSNode = flagged.FPSNode
		case "fps-interval":
			cfg.FPSInterval = flagged.FPSInterval
		case "socket":
			cfg.Socket = flagged.Socket
		case "settings":
			cfg.SettingsPath = flagged.SettingsPath
		case "wallpaper":
			cfg.Wallpaper = flagged.Wallpaper
		case "lock-wallpaper":
			cfg.LockWallpaper = flagged.LockWallpaper
		case "monet-interval":
			cfg.MonetInterval = flagged.MonetInterval
		case "mqtt":
			cfg.MQTTBroker = flagged.MQTTBroker
		case "mqtt-topic":
			cfg.MQTTTopic = flagged.MQTTTopic
		case "log-level":
			cfg.LogLevel = flagged.LogLevel
		case "log-format":
			cfg.LogFormat = flagged.LogFormat
		case "headless":
			cfg.Headless = flagged.Headless
		}
	})
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SYSUID_FPS_NODE"); v != "" {
		c.FPSNode = v
	}
	if v := os.Getenv("SYSUID_FPS_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.FPSInterval = parsed
		} else if parsed, err2 := time.ParseDuration(v + "ms"); err2 == nil {
			c.FPSInterval = parsed
		}
	}
	if v := os.Getenv("SYSUID_SOCKET"); v != "" {
		c.Socket = v
	}
	if v := os.Getenv("SYSUID_MQTT"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("SYSUID_HEADLESS"); v == "1" {
		c.Headless = true
	}
}

// Validate reports configuration errors that make the daemon unusable.
func (c Config) Validate() error {
	var errs []error
	if c.FPSInterval <= 0 {
		errs = append(errs, fmt.Errorf("fps interval must be positive, got %s", c.FPSInterval))
	}
	if c.FPSNode != "" && !filepath.IsAbs(c.FPSNode) {
		errs = append(errs, fmt.Errorf("fps node must be an absolute path, got %q", c.FPSNode))
	}
	if c.MonetInterval <= 0 {
		errs = append(errs, fmt.Errorf("monet interval must be positive, got %s", c.MonetInterval))
	}
	if c.Socket == "" {
		errs = append(errs, errors.New("socket path is empty"))
	}
	return errors.Join(errs...)
}

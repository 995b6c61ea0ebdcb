package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromFlagsDefaults(t *testing.T) {
	cfg, err := FromFlags("sysuid", nil)
	if err != nil {
		t.Fatalf("FromFlags failed: %v", err)
	}
	if cfg.FPSInterval != time.Second {
		t.Errorf("Expected default interval 1s, got %s", cfg.FPSInterval)
	}
	if cfg.FPSNode != Default().FPSNode {
		t.Errorf("Expected default node, got %q", cfg.FPSNode)
	}
}

func TestFromFlagsFileEnvAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sysuid.yaml")
	data := []byte("fps_node: /sys/fake/fps\nfps_interval: 250ms\nmqtt_topic: lab/fps\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYSUID_FPS_INTERVAL", "500")

	cfg, err := FromFlags("sysuid", []string{"-config", path, "-mqtt-topic", "cli/fps"})
	if err != nil {
		t.Fatalf("FromFlags failed: %v", err)
	}
	if cfg.FPSNode != "/sys/fake/fps" {
		t.Errorf("Expected node from file, got %q", cfg.FPSNode)
	}
	if cfg.FPSInterval != 500*time.Millisecond {
		t.Errorf("Expected env interval 500ms, got %s", cfg.FPSInterval)
	}
	if cfg.MQTTTopic != "cli/fps" {
		t.Errorf("Expected flag topic to win, got %q", cfg.MQTTTopic)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.FPSInterval = 0
	cfg.FPSNode = "relative/fps"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error")
	}
}

func TestMissingConfigFile(t *testing.T) {
	if _, err := FromFlags("sysuid", []string{"-config", "/nonexistent/sysuid.yaml"}); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

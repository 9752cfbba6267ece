package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tmuras/teamctl/internal/config"
	"github.com/tmuras/teamctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teamctl.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	t.Setenv(config.EnvAPIToken, "secret")

	path := writeConfig(t, `
server_url = " https://cx.example.com "
data_dir = "ops/data"
timeout = "10s"
user_limit = 250
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "https://cx.example.com" {
		t.Fatalf("unexpected server url: %q", cfg.ServerURL)
	}
	if cfg.DataDir != "ops/data" {
		t.Fatalf("unexpected data dir: %q", cfg.DataDir)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout)
	}
	if cfg.UserLimit != 250 {
		t.Fatalf("unexpected user limit: %d", cfg.UserLimit)
	}
	if cfg.Token != "secret" {
		t.Fatalf("token not resolved from environment")
	}
}

func TestLoadKeepsDefaultsForAbsentKeys(t *testing.T) {
	testlog.Start(t)
	t.Setenv(config.EnvAPIToken, "secret")

	cfg, err := config.Load(writeConfig(t, `server_url = "https://cx.example.com"`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := config.DefaultConfig()
	if cfg.DataDir != def.DataDir || cfg.Timeout != def.Timeout || cfg.UserLimit != 0 {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	testlog.Start(t)
	if _, err := config.Load(writeConfig(t, `timeout = "soon"`)); err == nil {
		t.Fatalf("expected timeout parse error")
	}
}

func TestValidate(t *testing.T) {
	testlog.Start(t)
	cfg := config.Config{ServerURL: "https://cx.example.com", Token: "secret", DataDir: "data"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	missingURL := cfg
	missingURL.ServerURL = ""
	if err := missingURL.Validate(); !errors.Is(err, config.ErrServerURLRequired) {
		t.Fatalf("expected ErrServerURLRequired, got %v", err)
	}
	missingToken := cfg
	missingToken.Token = ""
	if err := missingToken.Validate(); !errors.Is(err, config.ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	missingDir := cfg
	missingDir.DataDir = ""
	if err := missingDir.Validate(); !errors.Is(err, config.ErrDataDirRequired) {
		t.Fatalf("expected ErrDataDirRequired, got %v", err)
	}
}

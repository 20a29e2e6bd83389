package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesTemplateOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}

	// Defaults survive the template round trip.
	if cfg.Symbol.TickPrecision != 2 {
		t.Errorf("tick_precision = %d", cfg.Symbol.TickPrecision)
	}
	if len(cfg.Defaults.LevelsUp) != 2 || cfg.Defaults.Breakdown != 9.86 {
		t.Errorf("default triggers = %+v", cfg.Defaults)
	}
	if cfg.Provider.Source != "auto" || cfg.Provider.KlineScale != 5 {
		t.Errorf("provider defaults = %+v", cfg.Provider)
	}
	if !cfg.Notifications.Console.Enabled {
		t.Error("console channel not enabled by default")
	}
	if cfg.State.LockTimeout != 3*time.Second {
		t.Errorf("lock_timeout = %v", cfg.State.LockTimeout)
	}
}

func TestLoadReadsUserConfig(t *testing.T) {
	dir := t.TempDir()
	body := `
[symbol]
code = "sh600158"
name = "中体产业"

[triggers]
levels_up = [10.00, 10.03]
breakdown = 9.86
vwap_cross = true

[calendar]
holidays = ["2024-06-10"]
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Symbol.Code != "sh600158" || cfg.Symbol.Name != "中体产业" {
		t.Errorf("symbol = %+v", cfg.Symbol)
	}
	if len(cfg.Triggers.LevelsUp) != 2 || cfg.Triggers.Breakdown != 9.86 {
		t.Errorf("triggers = %+v", cfg.Triggers)
	}
	if cfg.Triggers.VwapCross == nil || !*cfg.Triggers.VwapCross {
		t.Error("vwap_cross not parsed")
	}

	// 2024-06-10 is the Dragon Boat Festival in the configured list.
	if cfg.IsTradingDay(time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)) {
		t.Error("holiday treated as trading day")
	}
	if !cfg.IsTradingDay(time.Date(2024, 6, 11, 10, 0, 0, 0, time.UTC)) {
		t.Error("ordinary day treated as holiday")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad symbol", func(c *Config) { c.Symbol.Code = "600158" }, "invalid symbol"},
		{"bad exchange prefix", func(c *Config) { c.Symbol.Code = "bj430047" }, "invalid symbol"},
		{"precision too high", func(c *Config) { c.Symbol.TickPrecision = 5 }, "tick_precision"},
		{"unknown source", func(c *Config) { c.Provider.Source = "tencent" }, "provider source"},
		{"bad kline scale", func(c *Config) { c.Provider.KlineScale = 7 }, "kline_scale"},
		{"negative keep days", func(c *Config) { c.State.KeepDays = -1 }, "keep_days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Symbol:   SymbolConfig{Code: "sh600158", TickPrecision: 2},
				Provider: ProviderConfig{Source: "auto", KlineScale: 5},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENTINEL_TELEGRAM_BOT_TOKEN", "tok-from-env")
	t.Setenv("SENTINEL_SYMBOL", "sz000001")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notifications.Telegram.BotToken != "tok-from-env" {
		t.Errorf("bot token = %q", cfg.Notifications.Telegram.BotToken)
	}
	if cfg.Symbol.Code != "sz000001" {
		t.Errorf("symbol = %q", cfg.Symbol.Code)
	}
}

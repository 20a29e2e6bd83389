// Package config provides configuration management for the alert and
// report tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/viper"

	"ashare-sentinel/internal/rules"
)

var symbolPattern = regexp.MustCompile(`^(sh|sz)\d{6}$`)

// Config holds all application configuration.
type Config struct {
	Symbol        SymbolConfig        `mapstructure:"symbol"`
	Triggers      rules.TriggerConfig `mapstructure:"triggers"`
	Defaults      rules.TriggerConfig `mapstructure:"default_triggers"`
	State         StateConfig         `mapstructure:"state"`
	Provider      ProviderConfig      `mapstructure:"provider"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Calendar      CalendarConfig      `mapstructure:"calendar"`
	Journal       JournalConfig       `mapstructure:"journal"`
}

// SymbolConfig identifies the watched instrument.
type SymbolConfig struct {
	Code          string `mapstructure:"code"` // e.g. sh600158
	Name          string `mapstructure:"name"` // optional display name
	TickPrecision int    `mapstructure:"tick_precision"`
}

// StateConfig holds trigger-state persistence configuration.
type StateConfig struct {
	Dir         string        `mapstructure:"dir"`
	KeepDays    int           `mapstructure:"keep_days"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// ProviderConfig holds quote-provider configuration.
type ProviderConfig struct {
	Source     string        `mapstructure:"source"` // auto, eastmoney, sina
	Timeout    time.Duration `mapstructure:"timeout"`
	KlineScale int           `mapstructure:"kline_scale"` // minutes
	AuctionDir string        `mapstructure:"auction_dir"`
}

// NotificationConfig holds delivery configuration.
type NotificationConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Console  ConsoleConfig  `mapstructure:"console"`
}

// TelegramConfig holds Telegram delivery configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// DiscordConfig holds Discord webhook delivery configuration.
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// ConsoleConfig prints outbound messages to stdout, useful for dry runs.
type ConsoleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// CalendarConfig feeds the externally supplied trading-calendar predicate.
// Holiday computation is out of scope; the list is trusted as given.
type CalendarConfig struct {
	Holidays []string `mapstructure:"holidays"` // YYYY-MM-DD
}

// JournalConfig holds the sqlite alert/report journal configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ashare-sentinel"
	}
	return filepath.Join(home, ".config", "ashare-sentinel")
}

// Load loads configuration from the specified directory. If configDir is
// empty, the default config directory is used. A missing config file is
// created from the documented template.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := writeTemplate(configDir); werr != nil {
				return nil, fmt.Errorf("creating config template: %w", werr)
			}
			if rerr := v.ReadInConfig(); rerr != nil {
				return nil, fmt.Errorf("reading generated config: %w", rerr)
			}
		} else {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("symbol.tick_precision", 2)

	// The fallback rule set used when [triggers] is absent or empty.
	// Overridable here rather than hard-coded in the engine.
	v.SetDefault("default_triggers.levels_up", []float64{10.00, 10.03})
	v.SetDefault("default_triggers.breakdown", 9.86)
	v.SetDefault("default_triggers.vwap_cross", true)

	v.SetDefault("state.dir", filepath.Join(configDir, "data", "alerts"))
	v.SetDefault("state.keep_days", 7)
	v.SetDefault("state.lock_timeout", 3*time.Second)

	v.SetDefault("provider.source", "auto")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.kline_scale", 5)
	v.SetDefault("provider.auction_dir", filepath.Join(configDir, "data", "auction"))

	v.SetDefault("notifications.console.enabled", true)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(configDir, "sentinel.db"))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("SENTINEL_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("SENTINEL_DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Discord.WebhookURL = v
	}
	if v := os.Getenv("SENTINEL_SYMBOL"); v != "" {
		cfg.Symbol.Code = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Symbol.Code != "" && !symbolPattern.MatchString(c.Symbol.Code) {
		return fmt.Errorf("invalid symbol %q (expected shNNNNNN or szNNNNNN)", c.Symbol.Code)
	}
	if c.Symbol.TickPrecision < 0 || c.Symbol.TickPrecision > 4 {
		return fmt.Errorf("tick_precision must be between 0 and 4")
	}
	switch c.Provider.Source {
	case "", "auto", "eastmoney", "sina":
	default:
		return fmt.Errorf("invalid provider source %q", c.Provider.Source)
	}
	switch c.Provider.KlineScale {
	case 0, 1, 5, 15, 30, 60:
	default:
		return fmt.Errorf("kline_scale must be one of 1, 5, 15, 30, 60")
	}
	if c.State.KeepDays < 0 {
		return fmt.Errorf("state keep_days must be non-negative")
	}
	return nil
}

// IsTradingDay is the trading-calendar predicate built from the configured
// holiday list; weekends are handled by the session clock.
func (c *Config) IsTradingDay(date time.Time) bool {
	key := date.Format("2006-01-02")
	for _, h := range c.Calendar.Holidays {
		if h == key {
			return false
		}
	}
	return true
}

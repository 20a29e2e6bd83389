package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# ashare-sentinel configuration

[symbol]
code = "sh600158"
name = ""
tick_precision = 2

# Per-symbol triggers. Leave empty to fall back to [default_triggers].
[triggers]
# levels_up = [10.00, 10.03]
# breakdown = 9.86
# vwap_cross = true

# Fallback rule set used when [triggers] carries nothing.
[default_triggers]
levels_up = [10.00, 10.03]
breakdown = 9.86
vwap_cross = true

[state]
# dir = ""            # default: <config>/data/alerts
keep_days = 7
lock_timeout = "3s"

[provider]
source = "auto"       # auto = eastmoney with sina fallback
timeout = "10s"
kline_scale = 5       # minutes: 1, 5, 15, 30, 60
# auction_dir = ""    # default: <config>/data/auction

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""

[notifications.discord]
enabled = false
webhook_url = ""

[notifications.console]
enabled = true

[journal]
enabled = true
# path = ""           # default: <config>/sentinel.db

[calendar]
# Exchange holidays, YYYY-MM-DD. Weekends are excluded automatically.
holidays = []
`

// writeTemplate writes the documented config template into configDir.
func writeTemplate(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0o644)
}

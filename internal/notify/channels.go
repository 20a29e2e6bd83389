package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"ashare-sentinel/internal/config"
)

// TelegramChannel delivers messages via the Telegram bot API.
type TelegramChannel struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramChannel creates a Telegram channel.
func NewTelegramChannel(cfg config.TelegramConfig) *TelegramChannel {
	return &TelegramChannel{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the channel name.
func (t *TelegramChannel) Name() string { return "telegram" }

// IsEnabled returns whether the channel is enabled.
func (t *TelegramChannel) IsEnabled() bool { return t.enabled }

// Send delivers a message via Telegram (HTML parse mode).
func (t *TelegramChannel) Send(ctx context.Context, m Message) error {
	text := escapeHTML(m.Text)
	if m.Title != "" {
		text = fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(m.Title), text)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return postJSON(ctx, t.client, url, payload)
}

// DiscordChannel delivers messages via a Discord webhook.
type DiscordChannel struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// NewDiscordChannel creates a Discord webhook channel.
func NewDiscordChannel(cfg config.DiscordConfig) *DiscordChannel {
	return &DiscordChannel{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled && cfg.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the channel name.
func (d *DiscordChannel) Name() string { return "discord" }

// IsEnabled returns whether the channel is enabled.
func (d *DiscordChannel) IsEnabled() bool { return d.enabled }

// Send delivers a message via the webhook.
func (d *DiscordChannel) Send(ctx context.Context, m Message) error {
	content := m.Text
	if m.Title != "" {
		content = fmt.Sprintf("**%s**\n%s", m.Title, m.Text)
	}
	return postJSON(ctx, d.client, d.webhookURL, map[string]interface{}{"content": content})
}

// ConsoleChannel prints messages to stdout. Useful for dry runs and for
// piping the rendered report elsewhere.
type ConsoleChannel struct{}

// NewConsoleChannel creates a console channel.
func NewConsoleChannel() *ConsoleChannel { return &ConsoleChannel{} }

// Name returns the channel name.
func (c *ConsoleChannel) Name() string { return "console" }

// IsEnabled returns whether the channel is enabled.
func (c *ConsoleChannel) IsEnabled() bool { return true }

// Send prints the message to stdout.
func (c *ConsoleChannel) Send(_ context.Context, m Message) error {
	if m.Title != "" {
		fmt.Fprintln(os.Stdout, m.Title)
	}
	_, err := fmt.Fprintln(os.Stdout, m.Text)
	return err
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

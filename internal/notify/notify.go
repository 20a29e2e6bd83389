// Package notify delivers rendered alert and report text to configured
// channels. The core produces text; this layer owns transport.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ashare-sentinel/internal/config"
)

// Message is one outbound payload.
type Message struct {
	Title string
	Text  string
}

// Channel defines the interface for a delivery channel.
type Channel interface {
	Name() string
	IsEnabled() bool
	Send(ctx context.Context, m Message) error
}

// MultiNotifier fans a message out to every enabled channel.
type MultiNotifier struct {
	channels []Channel
}

// NewMultiNotifier creates a notifier from the notification configuration.
func NewMultiNotifier(cfg config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{}
	if cfg.Telegram.Enabled {
		mn.channels = append(mn.channels, NewTelegramChannel(cfg.Telegram))
	}
	if cfg.Discord.Enabled {
		mn.channels = append(mn.channels, NewDiscordChannel(cfg.Discord))
	}
	if cfg.Console.Enabled {
		mn.channels = append(mn.channels, NewConsoleChannel())
	}
	return mn
}

// AddChannel adds a delivery channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.channels = append(mn.channels, ch)
}

// HasChannels reports whether any channel is enabled.
func (mn *MultiNotifier) HasChannels() bool {
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			return true
		}
	}
	return false
}

// Send delivers the message to all enabled channels and joins any errors.
func (mn *MultiNotifier) Send(ctx context.Context, m Message) error {
	var errs []string
	for _, ch := range mn.channels {
		if !ch.IsEnabled() {
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := ch.Send(sendCtx, m)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("delivery errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

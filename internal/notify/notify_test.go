package notify

import (
	"context"
	"fmt"
	"testing"

	"ashare-sentinel/internal/config"
)

type fakeChannel struct {
	name    string
	enabled bool
	sent    []Message
	err     error
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }
func (f *fakeChannel) Send(_ context.Context, m Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func TestMultiNotifierFansOut(t *testing.T) {
	a := &fakeChannel{name: "a", enabled: true}
	b := &fakeChannel{name: "b", enabled: true}
	off := &fakeChannel{name: "off", enabled: false}

	mn := NewMultiNotifier(config.NotificationConfig{})
	mn.AddChannel(a)
	mn.AddChannel(b)
	mn.AddChannel(off)

	if !mn.HasChannels() {
		t.Fatal("HasChannels = false")
	}

	msg := Message{Text: "sh600158 touched 10.00"}
	if err := mn.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("sent counts = %d, %d", len(a.sent), len(b.sent))
	}
	if len(off.sent) != 0 {
		t.Error("disabled channel received a message")
	}
}

func TestMultiNotifierJoinsErrors(t *testing.T) {
	failing := &fakeChannel{name: "failing", enabled: true, err: fmt.Errorf("webhook 500")}
	working := &fakeChannel{name: "working", enabled: true}

	mn := NewMultiNotifier(config.NotificationConfig{})
	mn.AddChannel(failing)
	mn.AddChannel(working)

	err := mn.Send(context.Background(), Message{Text: "x"})
	if err == nil {
		t.Fatal("Send succeeded despite a failing channel")
	}
	// The healthy channel still got the message.
	if len(working.sent) != 1 {
		t.Error("working channel skipped after earlier failure")
	}
}

func TestNewMultiNotifierRespectsConfig(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{
		Telegram: config.TelegramConfig{Enabled: true}, // no token: stays disabled
		Console:  config.ConsoleConfig{Enabled: false},
	})
	if mn.HasChannels() {
		t.Error("notifier has channels with nothing usable configured")
	}

	mn = NewMultiNotifier(config.NotificationConfig{
		Console: config.ConsoleConfig{Enabled: true},
	})
	if !mn.HasChannels() {
		t.Error("console channel not registered")
	}
}

func TestEscapeHTML(t *testing.T) {
	got := escapeHTML(`last 10.02 <vwap> & rising`)
	want := "last 10.02 &lt;vwap&gt; &amp; rising"
	if got != want {
		t.Errorf("escapeHTML = %q, want %q", got, want)
	}
}

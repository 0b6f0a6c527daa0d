package class_notify

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// DefaultAlertWindow is how long continuous status timeouts stay
	// quiet between two admin alerts.
	DefaultAlertWindow = 20 * time.Minute

	// Telegram rejects messages longer than this.
	maxMessageLength = 4096
)

type AdminAlerter struct {
	Notifier  Notifier
	ChannelID string
	Log       zerolog.Logger
}

func NewAdminAlerter(n Notifier, channelID string, log zerolog.Logger) *AdminAlerter {
	return &AdminAlerter{
		Notifier:  n,
		ChannelID: channelID,
		Log:       log.With().Str("component", "alerter").Logger(),
	}
}

func (a *AdminAlerter) Alert(ctx context.Context, msg string) {
	a.Log.Error().Str("alert", msg).Msg("admin alert")
	if a.ChannelID == "" {
		return
	}
	a.Notifier.Notify(ctx, a.ChannelID, truncate(msg, maxMessageLength))
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TimeoutBackoff tracks a run of consecutive sweep timeouts so the admin
// is alerted at most once per Window while the run lasts.
type TimeoutBackoff struct {
	Window time.Duration

	first     time.Time
	lastAlert time.Time
}

// Timeout records a timed out sweep at now and reports whether an alert
// is due.
func (b *TimeoutBackoff) Timeout(now time.Time) bool {
	if b.first.IsZero() {
		b.first = now
		b.lastAlert = now
		return true
	}
	if now.Sub(b.lastAlert) >= b.Window {
		b.lastAlert = now
		return true
	}
	return false
}

func (b *TimeoutBackoff) Since() time.Time { return b.first }

func (b *TimeoutBackoff) Reset() {
	b.first = time.Time{}
	b.lastAlert = time.Time{}
}

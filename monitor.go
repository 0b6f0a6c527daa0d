package class_notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/terrier-alert/class-notify/schools"
)

// DefaultInterval is the time between two sweeps.
const DefaultInterval = 60 * time.Second

// Monitor runs the bot's sweep on a fixed interval and turns sweep
// failures into admin alerts. Only one Monitor may run against a store
// at a time; nothing enforces this.
type Monitor struct {
	Bot      *Bot
	Alerter  Alerter
	Clock    Clock
	Interval time.Duration
	Backoff  *TimeoutBackoff
	Log      zerolog.Logger
}

func NewMonitor(bot *Bot, alerter Alerter, clock Clock, interval, alertWindow time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if alertWindow <= 0 {
		alertWindow = DefaultAlertWindow
	}
	return &Monitor{
		Bot:      bot,
		Alerter:  alerter,
		Clock:    clock,
		Interval: interval,
		Backoff:  &TimeoutBackoff{Window: alertWindow},
		Log:      log.With().Str("component", "monitor").Logger(),
	}
}

// Run sweeps immediately and then once per Interval until ctx is
// cancelled. It returns after the sweep in flight has finished.
func (m *Monitor) Run(ctx context.Context) {
	m.Log.Info().Dur("interval", m.Interval).Msg("starting monitor")
	ticker := m.Clock.NewTicker(m.Interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.Log.Info().Msg("monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one sweep. It never panics and never returns an error; a
// failing sweep must not keep the next one from running.
func (m *Monitor) Tick(ctx context.Context) {
	alertCtx := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			m.Log.Error().Interface("panic", r).Msg("sweep panicked")
			m.Alerter.Alert(alertCtx, fmt.Sprintf("Sweep panicked: %v", r))
		}
	}()

	start := m.Clock.Now()
	err := m.Bot.Sweep(ctx)

	var timeout *schools.StatusTimeoutError
	switch {
	case err == nil:
		if !m.Backoff.Since().IsZero() {
			m.Log.Info().Time("since", m.Backoff.Since()).Msg("course status lookups recovered")
		}
		m.Backoff.Reset()
		m.Log.Debug().Dur("took", m.Clock.Now().Sub(start)).Msg("sweep finished")
	case errors.Is(err, context.Canceled):
		m.Log.Info().Msg("sweep cancelled")
	case errors.As(err, &timeout):
		if m.Backoff.Timeout(start) {
			m.Alerter.Alert(alertCtx, fmt.Sprintf("Course status lookups timing out since %s: %s",
				m.Backoff.Since().Format(time.RFC3339), err))
		} else {
			m.Log.Warn().Err(err).Time("since", m.Backoff.Since()).Msg("sweep timed out, alert suppressed")
		}
	default:
		m.Alerter.Alert(alertCtx, fmt.Sprintf("Sweep failed: %s", err))
	}
}

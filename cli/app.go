package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	class_notify "github.com/terrier-alert/class-notify"
	"github.com/terrier-alert/class-notify/config"
	"github.com/terrier-alert/class-notify/schools"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

const stopTimeout = 30 * time.Second

// appOptions is the dependency graph shared by every command.
func appOptions(cfg *config.Config, log zerolog.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func() fxevent.Logger { return &fxLogger{log: log.With().Str("component", "fx").Logger()} }),
		fx.StopTimeout(stopTimeout),
		fx.Provide(
			newClock,
			newDatabase,
			newStore,
			newSchool,
			newMessenger,
			newNotifier,
			newAlerter,
			newBot,
			newMonitor,
		),
	)
}

func newClock() class_notify.Clock {
	return class_notify.RealClock{}
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (*class_notify.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	defer cancel()
	db, err := class_notify.Connect(ctx, cfg.Mongo.URL, cfg.Env, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: db.Close})
	return db, nil
}

func newStore(db *class_notify.Database) class_notify.Store {
	return db
}

func newSchool(cfg *config.Config, clock class_notify.Clock) schools.ISchool {
	bu := schools.NewBostonUniversity(cfg.Status.BaseURL, cfg.Status.Timeout, cfg.TermCodes)
	bu.Now = clock.Now
	return bu
}

func newMessenger(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (class_notify.Messenger, error) {
	switch cfg.Messenger {
	case config.MessengerTelegram:
		tg, err := class_notify.NewTelegram(cfg.Token(), cfg.Notify.Timeout, cfg.Telegram.Debug, log)
		if err != nil {
			return nil, err
		}
		return tg, nil
	case config.MessengerDiscord:
		dg := &class_notify.Discord{}
		if err := dg.Connect(cfg.Discord.Token, cfg.Notify.Timeout, []string{cfg.FeedbackChannelID}, log); err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return dg.Close() }})
		return dg, nil
	}
	return nil, fmt.Errorf("unknown messenger %q", cfg.Messenger)
}

func newNotifier(m class_notify.Messenger, cfg *config.Config, log zerolog.Logger) class_notify.Notifier {
	return class_notify.NewDispatcher(m, cfg.Notify.Timeout, log)
}

func newAlerter(n class_notify.Notifier, cfg *config.Config, log zerolog.Logger) class_notify.Alerter {
	return class_notify.NewAdminAlerter(n, cfg.FeedbackChannelID, log)
}

func newBot(school schools.ISchool, store class_notify.Store, n class_notify.Notifier, a class_notify.Alerter,
	clock class_notify.Clock, log zerolog.Logger) *class_notify.Bot {
	return &class_notify.Bot{
		School:   school,
		DB:       store,
		Notifier: n,
		Alerter:  a,
		Clock:    clock,
		Log:      log.With().Str("component", "bot").Logger(),
	}
}

func newMonitor(bot *class_notify.Bot, a class_notify.Alerter, clock class_notify.Clock, cfg *config.Config,
	log zerolog.Logger) *class_notify.Monitor {
	return class_notify.NewMonitor(bot, a, clock, cfg.Monitor.Interval, cfg.Monitor.AlertWindow, log)
}

// startMonitor runs the monitor for the lifetime of the app. Stopping
// waits for the sweep in flight to finish.
func startMonitor(lc fx.Lifecycle, m *class_notify.Monitor) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				m.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return fmt.Errorf("waiting for the sweep in flight: %w", stopCtx.Err())
			}
		},
	})
}

// fxLogger reports the fx lifecycle through zerolog.
type fxLogger struct {
	log zerolog.Logger
}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.Provided:
		if e.Err != nil {
			l.log.Error().Err(e.Err).Str("constructor", e.ConstructorName).Msg("error encountered while applying options")
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			l.log.Error().Err(e.Err).Str("function", e.FunctionName).Msg("invoke failed")
		}
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.log.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("OnStart hook failed")
		} else {
			l.log.Debug().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("OnStart hook executed")
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.log.Error().Err(e.Err).Str("callee", e.FunctionName).Msg("OnStop hook failed")
		} else {
			l.log.Debug().Str("callee", e.FunctionName).Dur("runtime", e.Runtime).Msg("OnStop hook executed")
		}
	case *fxevent.Stopping:
		l.log.Info().Str("signal", e.Signal.String()).Msg("received signal, shutting down")
	case *fxevent.RollingBack:
		l.log.Error().Err(e.StartErr).Msg("start failed, rolling back")
	case *fxevent.Started:
		if e.Err != nil {
			l.log.Error().Err(e.Err).Msg("start failed")
		} else {
			l.log.Info().Msg("started")
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	class_notify "github.com/terrier-alert/class-notify"
	"github.com/terrier-alert/class-notify/config"
	"github.com/terrier-alert/class-notify/logger"
	"go.uber.org/fx"
)

// targets are the objects one-shot commands operate on.
type targets struct {
	bot     *class_notify.Bot
	monitor *class_notify.Monitor
	db      *class_notify.Database
}

type command struct {
	name  string
	args  []string
	usage string
	run   func(ctx context.Context, t targets, args []string) error
}

var commands = []command{
	{
		name:  "run",
		usage: "check every subscribed course once a minute until interrupted",
	},
	{
		name:  "sweep",
		usage: "check every subscribed course once and exit",
		run: func(ctx context.Context, t targets, args []string) error {
			t.monitor.Tick(ctx)
			return nil
		},
	},
	{
		name:  "subscribe",
		args:  []string{"user", "course"},
		usage: `subscribe a user to a course, e.g. subscribe 12345 "CAS CS111 A1"`,
		run: func(ctx context.Context, t targets, args []string) error {
			course, err := t.bot.Subscribe(ctx, args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Printf("subscribed %s to %s\n", args[0], course)
			return nil
		},
	},
	{
		name:  "unsubscribe",
		args:  []string{"user", "course"},
		usage: "remove a user from a course",
		run: func(ctx context.Context, t targets, args []string) error {
			if err := t.bot.Unsubscribe(ctx, args[1], args[0]); err != nil {
				return err
			}
			fmt.Printf("unsubscribed %s from %s\n", args[0], args[1])
			return nil
		},
	},
	{
		name:  "status",
		args:  []string{"user"},
		usage: "show the course a user is subscribed to",
		run: func(ctx context.Context, t targets, args []string) error {
			st, err := t.bot.Status(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(formatStatus(st))
			return nil
		},
	},
	{
		name:  "sync-status",
		usage: "recompute every user's subscription status from the course documents",
		run: func(ctx context.Context, t targets, args []string) error {
			n, err := t.db.SyncUserStatuses(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("updated %d users\n", n)
			return nil
		},
	},
	{
		name:  "announce",
		args:  []string{"message"},
		usage: "send a message to every known user",
		run: func(ctx context.Context, t targets, args []string) error {
			sent, total, err := t.bot.Announce(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("announced to %d of %d users\n", sent, total)
			return nil
		},
	},
}

var errUsage = errors.New("usage")

func formatStatus(st class_notify.SubscriptionStatus) string {
	if st.Course == nil {
		if st.User.LastSubscription == "" {
			return fmt.Sprintf("%s is not subscribed", st.User.ID)
		}
		return fmt.Sprintf("%s is not subscribed (last subscription %s)", st.User.ID, st.User.LastSubscription)
	}
	msg := fmt.Sprintf("%s is subscribed to %s for %s", st.User.ID, st.Course.Name, st.Course.Semester)
	if st.User.LastSubscribed != nil {
		msg += " since " + st.User.LastSubscribed.Format(time.RFC3339)
	}
	return msg
}

// lookupCommand resolves the sub-command in args. No arguments means run.
func lookupCommand(args []string) (command, []string, error) {
	if len(args) == 0 {
		return commands[0], nil, nil
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		rest := args[1:]
		if len(rest) != len(c.args) {
			return command{}, nil, fmt.Errorf("%w: %s expects %d arguments (%s), got %d",
				errUsage, c.name, len(c.args), strings.Join(c.args, ", "), len(rest))
		}
		return c, rest, nil
	}
	return command{}, nil, fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func usage(flags *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [command] [args]\n\nCommands:\n", os.Args[0])
		for _, c := range commands {
			name := c.name
			for _, a := range c.args {
				name += " <" + a + ">"
			}
			fmt.Fprintf(os.Stderr, "  %-28s %s\n", name, c.usage)
		}
		fmt.Fprintf(os.Stderr, "\nFlags:\n%s", flags.FlagUsages())
	}
}

func main() {
	flags := pflag.NewFlagSet("class-notify", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "config.yaml", "path to the YAML configuration file")
	envFile := flags.String("env-file", ".env", "dotenv file consulted for variables the environment does not set")
	flags.Usage = usage(flags)
	_ = flags.Parse(os.Args[1:])

	cmd, args, err := lookupCommand(flags.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Configure(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Info().Str("env", cfg.Env).Str("messenger", cfg.Messenger).Str("command", cmd.name).Msg("starting")

	if cmd.run == nil {
		fx.New(appOptions(cfg, log), fx.Invoke(startMonitor)).Run()
		return
	}
	if err := runOnce(cfg, log, cmd, args); err != nil {
		log.Fatal().Err(err).Str("command", cmd.name).Msg("command failed")
	}
}

// runOnce starts the app without the monitor, runs cmd and shuts down.
func runOnce(cfg *config.Config, log zerolog.Logger, cmd command, args []string) (err error) {
	var t targets
	app := fx.New(
		appOptions(cfg, log),
		fx.Invoke(func(bot *class_notify.Bot, m *class_notify.Monitor, db *class_notify.Database) {
			t = targets{bot: bot, monitor: m, db: db}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, cancelStart := context.WithTimeout(ctx, app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancelStop()
		if stopErr := app.Stop(stopCtx); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	return cmd.run(ctx, t, args)
}

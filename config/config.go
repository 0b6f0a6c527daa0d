package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/terrier-alert/class-notify/schools"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	MessengerTelegram = "telegram"
	MessengerDiscord  = "discord"
)

// Config is the process configuration. Values are layered: defaults,
// then the YAML file, then the environment (with .env filling in
// variables the environment does not set).
type Config struct {
	Env string `yaml:"env"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Mongo struct {
		URL            string        `yaml:"url"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
	} `yaml:"mongo"`

	// Messenger is the platform users are notified on.
	Messenger string `yaml:"messenger"`

	Telegram struct {
		Token     string `yaml:"token"`
		TestToken string `yaml:"test_token"`
		Debug     bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Discord struct {
		Token string `yaml:"token"`
	} `yaml:"discord"`

	// FeedbackChannelID receives admin alerts. Empty disables them.
	FeedbackChannelID string `yaml:"feedback_channel_id"`

	Status struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"status"`

	Notify struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"notify"`

	Monitor struct {
		Interval    time.Duration `yaml:"interval"`
		AlertWindow time.Duration `yaml:"alert_window"`
	} `yaml:"monitor"`

	TermCodes schools.TermCodes `yaml:"term_codes"`
}

// Load reads the configuration. A missing YAML file or .env file is not
// an error; path may be empty to skip the file entirely.
func Load(path string, dotenv string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(file, config); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	dotenvVars := map[string]string{}
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", dotenv, err)
		default:
			dotenvVars = vars
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenvVars[key]
		return v, ok
	}
	if err := config.loadFromEnv(lookup); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func Default() *Config {
	config := &Config{}
	config.Env = EnvDev
	config.Log.Level = "info"
	config.Mongo.URL = "mongodb://127.0.0.1:27017"
	config.Mongo.ConnectTimeout = 10 * time.Second
	config.Messenger = MessengerTelegram
	config.Status.BaseURL = schools.DefaultClassSearchURL
	config.Status.Timeout = 10 * time.Second
	config.Notify.Timeout = 5 * time.Second
	config.Monitor.Interval = 60 * time.Second
	config.Monitor.AlertWindow = 20 * time.Minute
	config.TermCodes = schools.DefaultTermCodes()
	return config
}

func (c *Config) loadFromEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ENV":                 &c.Env,
		"LOG_LEVEL":           &c.Log.Level,
		"MONGO_DB_URL":        &c.Mongo.URL,
		"MESSENGER":           &c.Messenger,
		"TELEGRAM_TOKEN":      &c.Telegram.Token,
		"TEST_TELEGRAM_TOKEN": &c.Telegram.TestToken,
		"DISCORD_TOKEN":       &c.Discord.Token,
		"FEEDBACK_CHANNEL_ID": &c.FeedbackChannelID,
		"STATUS_BASE_URL":     &c.Status.BaseURL,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	var errs []error
	bools := map[string]*bool{
		"LOG_PRETTY":     &c.Log.Pretty,
		"TELEGRAM_DEBUG": &c.Telegram.Debug,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			*dst = b
		}
	}

	durations := map[string]*time.Duration{
		"MONGO_CONNECT_TIMEOUT": &c.Mongo.ConnectTimeout,
		"STATUS_TIMEOUT":        &c.Status.Timeout,
		"NOTIFY_TIMEOUT":        &c.Notify.Timeout,
		"MONITOR_INTERVAL":      &c.Monitor.Interval,
		"ALERT_WINDOW":          &c.Monitor.AlertWindow,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			*dst = d
		}
	}
	return errors.Join(errs...)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Env != EnvDev && c.Env != EnvProd {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDev, EnvProd, c.Env))
	}
	if c.Mongo.URL == "" {
		errs = append(errs, errors.New("mongo url is required"))
	}

	switch c.Messenger {
	case MessengerTelegram:
		if c.Token() == "" {
			if c.Env == EnvProd {
				errs = append(errs, errors.New("TELEGRAM_TOKEN is required in prod"))
			} else {
				errs = append(errs, errors.New("TEST_TELEGRAM_TOKEN is required outside prod"))
			}
		}
	case MessengerDiscord:
		if c.Discord.Token == "" {
			errs = append(errs, errors.New("DISCORD_TOKEN is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("messenger must be %q or %q, got %q", MessengerTelegram, MessengerDiscord, c.Messenger))
	}

	if u, err := url.Parse(c.Status.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("status base url %q is not an absolute url", c.Status.BaseURL))
	}

	positive := map[string]time.Duration{
		"mongo connect timeout": c.Mongo.ConnectTimeout,
		"status timeout":        c.Status.Timeout,
		"notify timeout":        c.Notify.Timeout,
		"monitor interval":      c.Monitor.Interval,
		"alert window":          c.Monitor.AlertWindow,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	for _, s := range []schools.Semester{schools.Spring, schools.Summer, schools.Fall} {
		if c.TermCodes.Suffixes[s] == "" {
			errs = append(errs, fmt.Errorf("term code suffix for %s is missing", s))
		}
	}
	return errors.Join(errs...)
}

// Token is the Telegram bot token for the configured environment: the
// production bot in prod, the test bot everywhere else.
func (c *Config) Token() string {
	if c.Env == EnvProd {
		return c.Telegram.Token
	}
	return c.Telegram.TestToken
}

func (c *Config) Production() bool {
	return c.Env == EnvProd
}

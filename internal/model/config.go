package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (e.g. HITWATCH_WEBHOOK_URL).
const EnvPrefix = "HITWATCH_"

// Source modes.
const (
	SourceModePage    = "page"
	SourceModeNetwork = "network"
)

// Store drivers.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// SourceConfig controls where task records are read from.
type SourceConfig struct {
	// Mode selects the extractor variant: "page" parses the embedded queue
	// attribute, "network" reads the JSON endpoint.
	Mode string `mapstructure:"mode" yaml:"mode" env:"MODE"`

	// BaseURL is the origin of the queue site.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" env:"BASE_URL"`

	// PagePath is the HTML queue page used by the page extractor.
	PagePath string `mapstructure:"page_path" yaml:"page_path" env:"PAGE_PATH"`

	// Endpoint is the JSON path used by the network extractor.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" env:"ENDPOINT"`

	// Cookie is the raw Cookie header of a signed-in session. When empty
	// the session cookie is read from the OS keyring.
	Cookie string `mapstructure:"cookie" yaml:"cookie" env:"COOKIE"`

	UserAgent string `mapstructure:"user_agent" yaml:"user_agent" env:"USER_AGENT"`

	// QueueSelector locates the element carrying the embedded queue state.
	QueueSelector string `mapstructure:"queue_selector" yaml:"queue_selector" env:"QUEUE_SELECTOR"`

	// PropsAttribute is the attribute holding the JSON blob.
	PropsAttribute string `mapstructure:"props_attribute" yaml:"props_attribute" env:"PROPS_ATTRIBUTE"`

	// RecordsField is the array field inside the JSON blob.
	RecordsField string `mapstructure:"records_field" yaml:"records_field" env:"RECORDS_FIELD"`

	// WorkerSelector locates the element exposing the signed-in worker ID.
	WorkerSelector string `mapstructure:"worker_selector" yaml:"worker_selector" env:"WORKER_SELECTOR"`
}

// StoreConfig selects and locates the seen-set backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" env:"DRIVER"`
	Path   string `mapstructure:"path" yaml:"path" env:"PATH"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" env:"DSN"`
}

// TelegramConfig enables the optional Telegram display.
type TelegramConfig struct {
	Token  string `mapstructure:"token" yaml:"token" env:"TOKEN"`
	ChatID int64  `mapstructure:"chat_id" yaml:"chat_id" env:"CHAT_ID"`
}

// Enabled reports whether both token and chat are configured.
func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != 0
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" env:"LEVEL"`
	File  string `mapstructure:"file" yaml:"file" env:"FILE"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	WebhookURL        string         `mapstructure:"webhook_url" yaml:"webhook_url" env:"WEBHOOK_URL"`
	PollIntervalMs    int            `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms" env:"POLL_INTERVAL_MS"`
	StorageKey        string         `mapstructure:"storage_key" yaml:"storage_key" env:"STORAGE_KEY"`
	WorkerID          string         `mapstructure:"worker_id" yaml:"worker_id" env:"WORKER_ID"`
	AcceptedStates    []string       `mapstructure:"accepted_states" yaml:"accepted_states" env:"ACCEPTED_STATES" envSeparator:","`
	WebhookTimeoutSec int            `mapstructure:"webhook_timeout_sec" yaml:"webhook_timeout_sec" env:"WEBHOOK_TIMEOUT_SEC"`
	Source            SourceConfig   `mapstructure:"source" yaml:"source" envPrefix:"SOURCE_"`
	Store             StoreConfig    `mapstructure:"store" yaml:"store" envPrefix:"STORE_"`
	Telegram          TelegramConfig `mapstructure:"telegram" yaml:"telegram" envPrefix:"TELEGRAM_"`
	Log               LogConfig      `mapstructure:"log" yaml:"log" envPrefix:"LOG_"`
}

// PollInterval returns the configured interval as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// WebhookTimeout returns the per-request webhook timeout.
func (c *AppConfig) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSec) * time.Second
}

// Validate checks the options that have no usable default.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.WebhookURL == "" {
		errs = append(errs, errors.New("webhook_url is required"))
	} else if u, err := url.Parse(c.WebhookURL); err != nil {
		errs = append(errs, fmt.Errorf("webhook_url: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, errors.New("webhook_url must be an absolute http(s) URL"))
	}

	if c.PollIntervalMs <= 0 {
		errs = append(errs, errors.New("poll_interval_ms must be positive"))
	}
	if strings.TrimSpace(c.StorageKey) == "" {
		errs = append(errs, errors.New("storage_key must not be empty"))
	}

	switch c.Source.Mode {
	case SourceModePage, SourceModeNetwork:
	default:
		errs = append(errs, fmt.Errorf("unknown source.mode %q", c.Source.Mode))
	}

	switch c.Store.Driver {
	case StoreDriverSQLite:
	case StoreDriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	return errors.Join(errs...)
}

// DefaultConfigDir returns ~/.config/hitwatch.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "hitwatch")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/hitwatch/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a configuration with every default applied and
// no webhook URL.
func DefaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		PollIntervalMs:    3000,
		StorageKey:        "hitwatch.seen",
		AcceptedStates:    []string{StateAssigned, StateAccepted},
		WebhookTimeoutSec: 15,
		Source: SourceConfig{
			Mode:           SourceModePage,
			BaseURL:        "https://worker.mturk.com",
			PagePath:       "/tasks",
			Endpoint:       "/tasks.json",
			UserAgent:      "hitwatch/1.0",
			QueueSelector:  "div[data-react-class*='TaskQueueTable']",
			PropsAttribute: "data-react-props",
			RecordsField:   "bodyData",
			WorkerSelector: "[data-react-class*='CopyText']",
		},
		Store: StoreConfig{
			Driver: StoreDriverSQLite,
			Path:   filepath.Join(dir, "hitwatch.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "hitwatch.log"),
		},
	}
}

// setDefaults mirrors DefaultAppConfig into viper so partially specified
// sections keep their defaults.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("poll_interval_ms", d.PollIntervalMs)
	v.SetDefault("storage_key", d.StorageKey)
	v.SetDefault("accepted_states", d.AcceptedStates)
	v.SetDefault("webhook_timeout_sec", d.WebhookTimeoutSec)
	v.SetDefault("source.mode", d.Source.Mode)
	v.SetDefault("source.base_url", d.Source.BaseURL)
	v.SetDefault("source.page_path", d.Source.PagePath)
	v.SetDefault("source.endpoint", d.Source.Endpoint)
	v.SetDefault("source.user_agent", d.Source.UserAgent)
	v.SetDefault("source.queue_selector", d.Source.QueueSelector)
	v.SetDefault("source.props_attribute", d.Source.PropsAttribute)
	v.SetDefault("source.records_field", d.Source.RecordsField)
	v.SetDefault("source.worker_selector", d.Source.WorkerSelector)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// LoadConfig reads configuration from the given YAML file path using Viper
// and then applies HITWATCH_* environment overrides. A missing file yields
// the defaults. The result is not validated; call Validate.
func LoadConfig(path string) (*AppConfig, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	return cfg, nil
}

// LoadConfigFile reads only the YAML file and the defaults. Use it when the
// result is written back, so environment secrets never reach the file.
func LoadConfigFile(path string) (*AppConfig, error) {
	defaults := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		return defaults, nil
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("webhook_url", cfg.WebhookURL)
	v.Set("poll_interval_ms", cfg.PollIntervalMs)
	v.Set("storage_key", cfg.StorageKey)
	v.Set("worker_id", cfg.WorkerID)
	v.Set("accepted_states", cfg.AcceptedStates)
	v.Set("webhook_timeout_sec", cfg.WebhookTimeoutSec)
	v.Set("source", cfg.Source)
	v.Set("store", cfg.Store)
	v.Set("telegram", cfg.Telegram)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

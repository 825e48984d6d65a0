package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Checker  CheckerConfig  `yaml:"checker" mapstructure:"checker"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Circuit  CircuitConfig  `yaml:"circuit" mapstructure:"circuit"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// InputConfig configures where domain names come from.
type InputConfig struct {
	File    string   `yaml:"file" mapstructure:"file"`
	Domains []string `yaml:"domains" mapstructure:"domains"`
}

// Wait modes for the checker page.
const (
	WaitFixed = "fixed"
	WaitPoll  = "poll"
)

// CheckerConfig configures the browser session against the checker site.
type CheckerConfig struct {
	URL             string `yaml:"url" mapstructure:"url"`
	InputSelector   string `yaml:"input_selector" mapstructure:"input_selector"`
	SubmitSelector  string `yaml:"submit_selector" mapstructure:"submit_selector"`
	ResultSelector  string `yaml:"result_selector" mapstructure:"result_selector"`
	RowSelector     string `yaml:"row_selector" mapstructure:"row_selector"`
	WaitMode        string `yaml:"wait_mode" mapstructure:"wait_mode"`
	PageLoadDelayMs int    `yaml:"page_load_delay_ms" mapstructure:"page_load_delay_ms"`
	ResultDelayMs   int    `yaml:"result_delay_ms" mapstructure:"result_delay_ms"`
	PollIntervalMs  int    `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchSize       int    `yaml:"batch_size" mapstructure:"batch_size"`
	Pages           int    `yaml:"pages" mapstructure:"pages"`
	RatePerMinute   int    `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	BrowserBin      string `yaml:"browser_bin" mapstructure:"browser_bin"`
	ControlURL      string `yaml:"control_url" mapstructure:"control_url"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// PageLoadDelay returns the settle delay after navigation.
func (c CheckerConfig) PageLoadDelay() time.Duration {
	return time.Duration(c.PageLoadDelayMs) * time.Millisecond
}

// ResultDelay returns the post-submit delay.
func (c CheckerConfig) ResultDelay() time.Duration {
	return time.Duration(c.ResultDelayMs) * time.Millisecond
}

// PollInterval returns the result polling period.
func (c CheckerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Timeout returns the per-submission deadline.
func (c CheckerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ClassifyConfig holds the keyword lists used to label scraped results.
type ClassifyConfig struct {
	BlockedKeywords    []string `yaml:"blocked_keywords" mapstructure:"blocked_keywords"`
	NotBlockedKeywords []string `yaml:"not_blocked_keywords" mapstructure:"not_blocked_keywords"`
}

// NotifyConfig configures report delivery.
type NotifyConfig struct {
	Telegram    TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Webhook     WebhookConfig  `yaml:"webhook" mapstructure:"webhook"`
	OnlyChanges bool           `yaml:"only_changes" mapstructure:"only_changes"`
	TimeoutSecs int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-request timeout for notifier calls.
func (c NotifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" mapstructure:"bot_token"`
	ChatID   string `yaml:"chat_id" mapstructure:"chat_id"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
}

// WebhookConfig holds a generic JSON webhook target.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ReportConfig configures report rendering.
type ReportConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
	Title    string `yaml:"title" mapstructure:"title"`
}

// Location resolves the configured timezone, falling back to local time.
func (c ReportConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		zap.L().Warn("config: unknown timezone, using local", zap.String("timezone", c.Timezone))
		return time.Local
	}
	return loc
}

// StoreConfig configures the history backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
}

// RetryConfig configures backoff for checker submissions and notifications.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the per-notifier circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// WatchConfig configures the periodic check loop.
type WatchConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BLOCKCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.file", "domains.txt")
	v.SetDefault("input.domains", []string{})
	v.SetDefault("checker.url", "https://nawalacheck.skiddle.id/")
	v.SetDefault("checker.input_selector", "#domains")
	v.SetDefault("checker.submit_selector", "")
	v.SetDefault("checker.result_selector", "#results")
	v.SetDefault("checker.row_selector", "table tbody tr")
	v.SetDefault("checker.wait_mode", WaitPoll)
	v.SetDefault("checker.page_load_delay_ms", 3000)
	v.SetDefault("checker.result_delay_ms", 5000)
	v.SetDefault("checker.poll_interval_ms", 500)
	v.SetDefault("checker.timeout_secs", 60)
	v.SetDefault("checker.batch_size", 1)
	v.SetDefault("checker.pages", 1)
	v.SetDefault("checker.rate_per_minute", 20)
	v.SetDefault("checker.headless", true)
	v.SetDefault("checker.browser_bin", "")
	v.SetDefault("checker.control_url", "")
	v.SetDefault("checker.user_agent", "")
	v.SetDefault("classify.blocked_keywords", []string{
		"diblokir", "terblokir", "blocked", "internet positif", "trustpositif", "nawala",
	})
	v.SetDefault("classify.not_blocked_keywords", []string{
		"tidak diblokir", "tidak terblokir", "not blocked", "unblocked", "aman", "safe", "accessible",
	})
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.telegram.base_url", "https://api.telegram.org")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.only_changes", false)
	v.SetDefault("notify.timeout_secs", 10)
	v.SetDefault("report.timezone", "Local")
	v.SetDefault("report.title", "Domain block report")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "blockcheck.db")
	v.SetDefault("store.retention_days", 90)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 15000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 300)
	v.SetDefault("watch.interval_secs", 3600)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given command mode are
// usable. Mode is one of "check", "watch", or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "check":
	case "watch":
		if c.Watch.IntervalSecs <= 0 {
			problems = append(problems, "watch.interval_secs must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if strings.TrimSpace(c.Checker.URL) == "" {
		problems = append(problems, "checker.url is required")
	}
	switch c.Checker.WaitMode {
	case WaitFixed, WaitPoll:
	default:
		problems = append(problems, fmt.Sprintf("checker.wait_mode must be %q or %q, got %q", WaitFixed, WaitPoll, c.Checker.WaitMode))
	}
	if c.Checker.BatchSize < 1 {
		problems = append(problems, "checker.batch_size must be >= 1")
	}
	if c.Checker.Pages < 1 || c.Checker.Pages > 10 {
		problems = append(problems, "checker.pages must be between 1 and 10")
	}
	if c.Checker.RatePerMinute < 0 {
		problems = append(problems, "checker.rate_per_minute must be >= 0")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Notify.Telegram.BotToken != "" && c.Notify.Telegram.ChatID == "" {
		problems = append(problems, "notify.telegram.chat_id is required when bot_token is set")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Cron     CronConfig     `mapstructure:"cron"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type IngestConfig struct {
	Source   string         `mapstructure:"source"`
	QueueCap int            `mapstructure:"queue_cap"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Feed     FeedConfig     `mapstructure:"feed"`
}

type TelegramConfig struct {
	Token    string  `mapstructure:"token"`
	Channels []int64 `mapstructure:"channels"`
}

type FeedConfig struct {
	URL      string  `mapstructure:"url"`
	Channels []int64 `mapstructure:"channels"`
}

type FilterConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	Mode        string `mapstructure:"mode"`
	MinLength   int    `mapstructure:"min_length"`
	MaxURLCount int    `mapstructure:"max_url_count"`
}

type AnalysisConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

type NotifyConfig struct {
	MaxLength int                  `mapstructure:"max_length"`
	Webhook   WebhookNotifyConfig  `mapstructure:"webhook"`
	Email     EmailNotifyConfig    `mapstructure:"email"`
	Telegram  TelegramNotifyConfig `mapstructure:"telegram"`
}

type WebhookNotifyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EmailNotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

type TelegramNotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

type JobsConfig struct {
	BatchInterval   time.Duration `mapstructure:"batch_interval"`
	DigestHour      int           `mapstructure:"digest_hour"`
	DigestMinute    int           `mapstructure:"digest_minute"`
	TrendHour       int           `mapstructure:"trend_hour"`
	TrendMinute     int           `mapstructure:"trend_minute"`
	ImpactThreshold int           `mapstructure:"impact_threshold"`
	RetentionDays   int           `mapstructure:"retention_days"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cleanup  string `mapstructure:"cleanup"`
	StatsLog string `mapstructure:"stats_log"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("app.timezone", "Asia/Shanghai")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("ingest.source", "telegram")
	v.SetDefault("ingest.queue_cap", 200)
	v.SetDefault("ingest.feed.url", "")

	v.SetDefault("filter.data_dir", "./data")
	v.SetDefault("filter.mode", "standard")
	v.SetDefault("filter.min_length", 10)
	v.SetDefault("filter.max_url_count", 3)

	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.model", "gpt-4o-mini")
	v.SetDefault("analysis.timeout", "60s")
	v.SetDefault("analysis.max_tokens", 4096)
	v.SetDefault("analysis.temperature", 0.3)

	v.SetDefault("notify.max_length", 3800)
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("notify.webhook.timeout", "10s")
	v.SetDefault("notify.email.enabled", false)
	v.SetDefault("notify.email.port", 465)
	v.SetDefault("notify.telegram.enabled", false)

	v.SetDefault("jobs.batch_interval", "5m")
	v.SetDefault("jobs.digest_hour", 8)
	v.SetDefault("jobs.digest_minute", 30)
	v.SetDefault("jobs.trend_hour", 6)
	v.SetDefault("jobs.trend_minute", 0)
	v.SetDefault("jobs.impact_threshold", 4)
	v.SetDefault("jobs.retention_days", 30)

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.cleanup", "@every 24h")
	v.SetDefault("cron.stats_log", "@every 1h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

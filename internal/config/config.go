package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// postgres
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDBName   string `toml:"postgres_db_name"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresMaxConns int32  `toml:"postgres_max_conns"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// kafka
	KafkaBrokers       []string `toml:"kafka_brokers"`
	KafkaWriteTimeout  Duration `toml:"kafka_write_timeout"`
	OutboxPollInterval Duration `toml:"outbox_poll_interval"`
	OutboxBatchSize    int      `toml:"outbox_batch_size"`
	// challenge
	WindowTimezone       string `toml:"window_timezone"`
	WindowOffsetMinutes  int    `toml:"window_offset_minutes"`
	WindowBoundaryHour   int    `toml:"window_boundary_hour"`
	CompletionsPerMinute int    `toml:"completions_per_minute"`
	// plan sheets
	HomePlanSheetURL string   `toml:"home_plan_sheet_url"`
	GymPlanSheetURL  string   `toml:"gym_plan_sheet_url"`
	PlanFetchTimeout Duration `toml:"plan_fetch_timeout"`
	PlanCacheTTL     Duration `toml:"plan_cache_ttl"`
	// hosts a custom plan sheet may live on, https only
	PlanSheetHosts []string `toml:"plan_sheet_hosts"`
	// auth
	SessionLocalCacheTTL Duration `toml:"session_local_cache_ttl"`
	AllowedOrigins       []string `toml:"allowed_origins"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// one-shot commands push here, empty disables
	PrometheusPushgatewayURL string `toml:"prometheus_pushgateway_url"`
}

// Duration reads values like "500ms" or "15m" from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type Toml struct {
	Development *Config
	Production  *Config
	DockerDev   *Config `toml:"dockerdev"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "ddev", "dockerdev":
		cfg = t.DockerDev
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

func Load(env, configPath string) (*Config, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}
	return Parse(env, string(content))
}

func Parse(env, content string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.Decode(content, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode toml config: %w", err)
	}

	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.WindowTimezone == "" {
		c.WindowTimezone = "IST"
		c.WindowOffsetMinutes = 330
	}
	if c.WindowBoundaryHour == 0 {
		c.WindowBoundaryHour = 3
	}
	if c.OutboxPollInterval.Duration == 0 {
		c.OutboxPollInterval.Duration = time.Second
	}
	if c.OutboxBatchSize == 0 {
		c.OutboxBatchSize = 100
	}
	if c.KafkaWriteTimeout.Duration == 0 {
		c.KafkaWriteTimeout.Duration = 10 * time.Second
	}
	if c.CompletionsPerMinute == 0 {
		c.CompletionsPerMinute = 10
	}
	if c.PlanFetchTimeout.Duration == 0 {
		c.PlanFetchTimeout.Duration = 10 * time.Second
	}
	if c.SessionLocalCacheTTL.Duration == 0 {
		c.SessionLocalCacheTTL.Duration = time.Minute
	}
}

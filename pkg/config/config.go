package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full Vigil daemon configuration. Values are read from
// the environment with FromEnv and may be overridden by a YAML file.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string (required for serve
	// and migrations).
	DatabaseURL string `yaml:"database_url"`

	// DatabaseMaxConnections bounds the shared connection pool.
	DatabaseMaxConnections int `yaml:"database_max_connections"`

	Monitors      MonitorExecutorConfig `yaml:"monitors"`
	Notifications DispatcherConfig      `yaml:"notifications"`
	DeadTaskRuns  CollectorConfig       `yaml:"dead_task_runs"`
	TaskCollect   CollectorConfig       `yaml:"task_collectors"`

	// BrowserServiceGRPCAddress is the browser-based prober endpoint.
	// Empty disables browser probing; monitors fall back to plain HTTP.
	BrowserServiceGRPCAddress string `yaml:"browser_service_grpc_address"`

	SMTP SMTPConfig    `yaml:"smtp"`
	SMS  SMSConfig     `yaml:"sms"`
	Push PushConfig    `yaml:"push"`
	S3   StorageConfig `yaml:"s3"`

	// MetricsAddress is the listen address for the Prometheus endpoint.
	MetricsAddress string `yaml:"metrics_address"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// MonitorExecutorConfig configures the HTTP monitor executor.
type MonitorExecutorConfig struct {
	// Interval between executor ticks.
	Interval time.Duration `yaml:"interval"`

	// ConcurrentTasks is the number of parallel executor loops.
	ConcurrentTasks int `yaml:"concurrent_tasks"`

	// PingConcurrency bounds the per-batch probe pool.
	PingConcurrency int `yaml:"ping_concurrency"`

	// SelectLimit is the maximum rows claimed per batch.
	SelectLimit int `yaml:"select_limit"`
}

// DispatcherConfig configures the incident notification dispatcher.
type DispatcherConfig struct {
	Interval        time.Duration `yaml:"interval"`
	ConcurrentTasks int           `yaml:"concurrent_tasks"`
	SelectLimit     int           `yaml:"select_limit"`
}

// CollectorConfig configures a periodic collector worker.
type CollectorConfig struct {
	Interval        time.Duration `yaml:"interval"`
	ConcurrentTasks int           `yaml:"concurrent_tasks"`
	SelectLimit     int           `yaml:"select_limit"`
}

// SMTPConfig configures the e-mail channel.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMSConfig configures the SNS-backed SMS channel.
type SMSConfig struct {
	Region   string `yaml:"region"`
	SenderID string `yaml:"sender_id"`
}

// PushConfig configures the push gateway channel.
type PushConfig struct {
	GatewayURL string        `yaml:"gateway_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StorageConfig configures the S3 file store for probe screenshots.
type StorageConfig struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
}

// Default returns a Config with documented defaults applied.
func Default() Config {
	return Config{
		DatabaseMaxConnections: 10,
		Monitors: MonitorExecutorConfig{
			Interval:        2 * time.Second,
			ConcurrentTasks: 2,
			PingConcurrency: 100,
			SelectLimit:     500,
		},
		Notifications: DispatcherConfig{
			Interval:        1 * time.Second,
			ConcurrentTasks: 1,
			SelectLimit:     500,
		},
		DeadTaskRuns: CollectorConfig{
			Interval:        10 * time.Second,
			ConcurrentTasks: 1,
			SelectLimit:     500,
		},
		TaskCollect: CollectorConfig{
			Interval:        1 * time.Second,
			ConcurrentTasks: 1,
			SelectLimit:     500,
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "alerts@vigil.local",
		},
		Push: PushConfig{
			Timeout: 10 * time.Second,
		},
		MetricsAddress: ":9090",
		LogLevel:       "info",
		LogJSON:        true,
	}
}

// FromEnv builds a Config from environment variables layered over the
// defaults. Unset variables keep their default; malformed values fail.
func FromEnv() (Config, error) {
	cfg := Default()

	var err error
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	if cfg.DatabaseMaxConnections, err = envInt("DATABASE_MAX_CONNECTIONS", cfg.DatabaseMaxConnections); err != nil {
		return cfg, err
	}

	if cfg.Monitors.Interval, err = envSeconds("HTTP_MONITORS_EXECUTOR_INTERVAL_SECONDS", cfg.Monitors.Interval); err != nil {
		return cfg, err
	}
	if cfg.Monitors.ConcurrentTasks, err = envInt("HTTP_MONITORS_CONCURRENT_TASKS", cfg.Monitors.ConcurrentTasks); err != nil {
		return cfg, err
	}
	if cfg.Monitors.PingConcurrency, err = envInt("HTTP_MONITORS_PING_CONCURRENCY", cfg.Monitors.PingConcurrency); err != nil {
		return cfg, err
	}
	if cfg.Monitors.SelectLimit, err = envInt("HTTP_MONITORS_SELECT_LIMIT", cfg.Monitors.SelectLimit); err != nil {
		return cfg, err
	}

	if cfg.Notifications.Interval, err = envSeconds("NOTIFICATIONS_INTERVAL_SECONDS", cfg.Notifications.Interval); err != nil {
		return cfg, err
	}
	if cfg.Notifications.ConcurrentTasks, err = envInt("NOTIFICATIONS_CONCURRENT_TASKS", cfg.Notifications.ConcurrentTasks); err != nil {
		return cfg, err
	}
	if cfg.Notifications.SelectLimit, err = envInt("NOTIFICATIONS_SELECT_LIMIT", cfg.Notifications.SelectLimit); err != nil {
		return cfg, err
	}

	if cfg.DeadTaskRuns.Interval, err = envSeconds("DEAD_TASK_RUNS_COLLECTOR_INTERVAL_SECONDS", cfg.DeadTaskRuns.Interval); err != nil {
		return cfg, err
	}
	if cfg.DeadTaskRuns.ConcurrentTasks, err = envInt("DEAD_TASK_RUNS_COLLECTOR_CONCURRENT_TASKS", cfg.DeadTaskRuns.ConcurrentTasks); err != nil {
		return cfg, err
	}
	if cfg.DeadTaskRuns.SelectLimit, err = envInt("DEAD_TASK_RUNS_COLLECTOR_SELECT_LIMIT", cfg.DeadTaskRuns.SelectLimit); err != nil {
		return cfg, err
	}

	if cfg.TaskCollect.Interval, err = envSeconds("TASK_COLLECTORS_INTERVAL_SECONDS", cfg.TaskCollect.Interval); err != nil {
		return cfg, err
	}
	if cfg.TaskCollect.SelectLimit, err = envInt("TASK_COLLECTORS_SELECT_LIMIT", cfg.TaskCollect.SelectLimit); err != nil {
		return cfg, err
	}

	cfg.BrowserServiceGRPCAddress = envString("BROWSER_SERVICE_GRPC_ADDRESS", cfg.BrowserServiceGRPCAddress)

	cfg.SMTP.Host = envString("SMTP_HOST", cfg.SMTP.Host)
	if cfg.SMTP.Port, err = envInt("SMTP_PORT", cfg.SMTP.Port); err != nil {
		return cfg, err
	}
	cfg.SMTP.Username = envString("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = envString("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.From = envString("SMTP_FROM", cfg.SMTP.From)

	cfg.SMS.Region = envString("SMS_SNS_REGION", cfg.SMS.Region)
	cfg.SMS.SenderID = envString("SMS_SENDER_ID", cfg.SMS.SenderID)

	cfg.Push.GatewayURL = envString("PUSH_GATEWAY_URL", cfg.Push.GatewayURL)

	cfg.S3.Region = envString("S3_REGION", cfg.S3.Region)
	cfg.S3.Bucket = envString("S3_BUCKET", cfg.S3.Bucket)

	cfg.MetricsAddress = envString("METRICS_ADDRESS", cfg.MetricsAddress)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	if cfg.LogJSON, err = envBool("LOG_JSON", cfg.LogJSON); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ApplyFile overlays values from a YAML config file onto the receiver.
// Zero values in the file keep the current setting.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks settings required to boot the daemon.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseMaxConnections < 1 {
		return fmt.Errorf("DATABASE_MAX_CONNECTIONS must be at least 1")
	}
	if c.Monitors.PingConcurrency < 1 {
		return fmt.Errorf("HTTP_MONITORS_PING_CONCURRENCY must be at least 1")
	}
	if c.Monitors.SelectLimit < 1 || c.Notifications.SelectLimit < 1 {
		return fmt.Errorf("select limits must be at least 1")
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, v)
	}
	return b, nil
}

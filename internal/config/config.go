// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names.
const (
	BackendS3       = "s3"
	BackendGCS      = "gcs"
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendNone     = "none"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendSSM      = "ssm"
	BackendEnv      = "env"
	BackendSQS      = "sqs"
	BackendPubSub   = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	AWS        AWSConfig        `mapstructure:"aws"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CrawlerConfig governs portal sessions.
type CrawlerConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	UserAgent             string `mapstructure:"user_agent"`
	RedirectLimit         int    `mapstructure:"redirect_limit"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`

	// RequestsPerSecond paces requests to each host. Zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RequestTimeout bounds one exchange. Zero means no limit.
func (c CrawlerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ArchiveConfig selects where fetched responses are recorded.
type ArchiveConfig struct {
	BlobBackend   string `mapstructure:"blob_backend"`
	RecordBackend string `mapstructure:"record_backend"`
	Bucket        string `mapstructure:"bucket"`
	Directory     string `mapstructure:"directory"`
	Prefix        string `mapstructure:"prefix"`
	Table         string `mapstructure:"table"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
}

// Enabled reports whether fetches are archived at all.
func (c ArchiveConfig) Enabled() bool {
	return c.BlobBackend != BackendNone
}

// SecretsConfig selects the credential source.
type SecretsConfig struct {
	Backend string `mapstructure:"backend"`
	Prefix  string `mapstructure:"prefix"`
}

// QueueConfig describes the crawl step queue.
type QueueConfig struct {
	Backend      string `mapstructure:"backend"`
	QueueURL     string `mapstructure:"queue_url"`
	ProjectID    string `mapstructure:"project_id"`
	Topic        string `mapstructure:"topic"`
	Subscription string `mapstructure:"subscription"`
	WaitSeconds  int    `mapstructure:"wait_seconds"`
	Capacity     int    `mapstructure:"capacity"`
}

// DispatcherConfig controls batch failure handling.
type DispatcherConfig struct {
	ReportItemFailures bool `mapstructure:"report_item_failures"`
}

// AWSConfig overrides the SDK's region and endpoint resolution.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Environment names recognized in addition to the GOVSCOUT_ ones.
var aliases = map[string][]string{
	"archive.bucket": {"LOG_S3_BUCKET"},
	"archive.prefix": {"LOG_S3_PREFIX"},
	"archive.table":  {"LOG_DYNAMODB_TABLE", "LOG_DDB_TABLE"},
	"secrets.prefix": {"SSM_PREFIX"},
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOVSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, names := range aliases {
		envKey := "GOVSCOUT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envKey}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "https://pr-webs-vendor.des.wa.gov")
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.redirect_limit", 10)
	v.SetDefault("crawler.request_timeout_seconds", 0)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("archive.blob_backend", BackendS3)
	v.SetDefault("archive.record_backend", BackendDynamoDB)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.directory", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("archive.table", "")
	v.SetDefault("archive.postgres_dsn", "")
	v.SetDefault("secrets.backend", BackendSSM)
	v.SetDefault("secrets.prefix", "/GovScout/")
	v.SetDefault("queue.backend", BackendSQS)
	v.SetDefault("queue.queue_url", "")
	v.SetDefault("queue.project_id", "")
	v.SetDefault("queue.topic", "")
	v.SetDefault("queue.subscription", "")
	v.SetDefault("queue.wait_seconds", 20)
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("dispatcher.report_item_failures", false)
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("server.port", 9090)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.RedirectLimit <= 0 {
		return fmt.Errorf("crawler.redirect_limit must be > 0")
	}
	if c.Crawler.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be >= 0")
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must be >= 0")
	}
	if err := c.Archive.validate(); err != nil {
		return err
	}
	if !slices.Contains([]string{BackendSSM, BackendEnv}, c.Secrets.Backend) {
		return fmt.Errorf("secrets.backend %q must be one of ssm, env", c.Secrets.Backend)
	}
	if !slices.Contains([]string{BackendSQS, BackendPubSub, BackendMemory}, c.Queue.Backend) {
		return fmt.Errorf("queue.backend %q must be one of sqs, pubsub, memory", c.Queue.Backend)
	}
	if c.Queue.WaitSeconds < 0 || c.Queue.WaitSeconds > 20 {
		return fmt.Errorf("queue.wait_seconds must be between 0 and 20")
	}
	if c.Queue.Backend == BackendMemory && c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be > 0 for the memory queue")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

func (c ArchiveConfig) validate() error {
	switch c.BlobBackend {
	case BackendNone:
		return nil
	case BackendS3, BackendGCS:
		if c.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the %s blob backend", c.BlobBackend)
		}
	case BackendFile:
		if c.Directory == "" {
			return fmt.Errorf("archive.directory must be set for the file blob backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("archive.blob_backend %q must be one of s3, gcs, file, memory, none", c.BlobBackend)
	}
	switch c.RecordBackend {
	case BackendDynamoDB:
		if c.Table == "" {
			return fmt.Errorf("archive.table must be set for the dynamodb record backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("archive.postgres_dsn must be set for the postgres record backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("archive.record_backend %q must be one of dynamodb, postgres, memory", c.RecordBackend)
	}
	return nil
}

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// EnvPrefix namespaces environment overrides, e.g. OUTREACH_MYSQL_DSN.
const EnvPrefix = "OUTREACH"

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Warmup     WarmupConfig     `mapstructure:"warmup"`
	Sequence   SequenceConfig   `mapstructure:"sequence"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Events     EventsConfig     `mapstructure:"events"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Service string `mapstructure:"service"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	EventsTopic    string   `mapstructure:"events_topic"`
	CallbacksTopic string   `mapstructure:"callbacks_topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type EnrichmentConfig struct {
	MinICPScore       int           `mapstructure:"min_icp_score"`
	SuppressionDays   int           `mapstructure:"suppression_days"`
	PersonTTL         time.Duration `mapstructure:"person_ttl"`
	CompanyTTL        time.Duration `mapstructure:"company_ttl"`
	BatchSize         int           `mapstructure:"batch_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Interval          time.Duration `mapstructure:"interval"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
}

type WarmupConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	// SenderLockTTL bounds how long one send may hold a sender's budget; keep
	// it above sequence.dispatch_timeout.
	SenderLockTTL  time.Duration `mapstructure:"sender_lock_ttl"`
	SenderLockWait time.Duration `mapstructure:"sender_lock_wait"`
}

type SequenceConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollBatch       int           `mapstructure:"poll_batch"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	ClaimTTL        time.Duration `mapstructure:"claim_ttl"`
	ThrottleDelay   time.Duration `mapstructure:"throttle_delay"`
	DefaultSender   string        `mapstructure:"default_sender"`
	NetworkDailyCap int           `mapstructure:"network_daily_cap"`
	VoiceWebhookURL string        `mapstructure:"voice_webhook_url"`
}

type ScoringConfig struct {
	ReadinessThreshold int `mapstructure:"readiness_threshold"`
	HysteresisBand     int `mapstructure:"hysteresis_band"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ProviderConfig struct {
	Name         string        `mapstructure:"name"`
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APIKeyHeader string        `mapstructure:"api_key_header"`
	TimeoutMs    int           `mapstructure:"timeout_ms"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

type VoiceConfig struct {
	ProviderConfig `mapstructure:",squash"`
	Voice          string `mapstructure:"voice"`
	MaxDurationMin int    `mapstructure:"max_duration_min"`
}

type SESConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ConfigSet       string `mapstructure:"configuration_set"`
}

type ProvidersConfig struct {
	Enrichment ProviderConfig `mapstructure:"enrichment"`
	Voice      VoiceConfig    `mapstructure:"voice"`
	Network    ProviderConfig `mapstructure:"network"`
	SES        SESConfig      `mapstructure:"ses"`
	// DryRunEmail routes email to the log backend only.
	DryRunEmail bool `mapstructure:"dry_run_email"`
}

type AuthConfig struct {
	APIKeys       []string `mapstructure:"api_keys"`
	WebhookSecret string   `mapstructure:"webhook_secret"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

type EventsConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies
// env overrides (OUTREACH_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	// a missing user file is fine; a broken one is not
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return Config{}, fmt.Errorf("merge %s: %w", path, err)
			}
		}
	}

	// env override (OUTREACH_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

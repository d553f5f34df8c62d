package config

import (
	"time"

	"github.com/adshield/fraud-service/internal/client"
)

type Config struct {
	Env         string       `yaml:"env" env:"APP_ENV"`
	Port        int          `yaml:"port" env:"PORT"`
	DatabaseURL string       `yaml:"database_url" env:"DATABASE_URL"`
	Logger      LoggerConfig `yaml:"logger"`

	Redis client.RedisConfig `yaml:"redis"`

	// Secrets, when set, points at an AWS Secrets Manager entry holding the
	// Redis password and database URL; values from the secret override YAML.
	Secrets SecretsConfig `yaml:"secrets"`

	Fraud      FraudConfig      `yaml:"fraud"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Alerts     AlertKafkaConfig `yaml:"alerts"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Retention  RetentionConfig  `yaml:"retention"`
}

type RetentionConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ClickTTL      time.Duration `yaml:"click_ttl"`
	ActivityTTL   time.Duration `yaml:"activity_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

type LoggerConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type SecretsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SecretName string `yaml:"secret_name" env:"FRAUD_SECRET_NAME"`
}

// FraudConfig carries detection thresholds. Zero values fall back to the
// defaults the scoring formulas were tuned against.
type FraudConfig struct {
	MaxClicksPerUserHour  int           `yaml:"max_clicks_per_user_hour"`
	MaxClicksPerIPHour    int           `yaml:"max_clicks_per_ip_hour"`
	MaxClicksPerDeviceHour int          `yaml:"max_clicks_per_device_hour"`
	MaxClicksPerAdUserDay int           `yaml:"max_clicks_per_ad_user_day"`
	MinClickInterval      time.Duration `yaml:"min_click_interval"`
	SuspiciousCTRPercent  float64       `yaml:"suspicious_ctr_percent"`
	FraudScoreThreshold   int           `yaml:"fraud_score_threshold"`

	UserReputationTTL   time.Duration `yaml:"user_reputation_ttl"`
	DeviceReputationTTL time.Duration `yaml:"device_reputation_ttl"`
	IPReputationTTL     time.Duration `yaml:"ip_reputation_ttl"`

	CheckTimeout time.Duration `yaml:"check_timeout"`
}

type EnrichmentConfig struct {
	CityDBPath   string `yaml:"city_db_path" env:"GEOIP_CITY_DB"`
	ASNDBPath    string `yaml:"asn_db_path" env:"GEOIP_ASN_DB"`
	ServerPepper string `yaml:"server_pepper" env:"FRAUD_SERVER_PEPPER"`
}

type AlertKafkaConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	BatchSize     int           `yaml:"batch_size"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	TLS           bool          `yaml:"tls"`
}

type RateLimitConfig struct {
	RatePerInterval int           `yaml:"rate_per_interval"`
	Interval        time.Duration `yaml:"interval"`
	Burst           int           `yaml:"burst"`
	KeyPrefix       string        `yaml:"key_prefix"`
	BucketTTL       time.Duration `yaml:"bucket_ttl"`
}

// Package config loads runtime settings from the environment and an optional
// YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Notification backends.
const (
	NotifyLog   = "log"
	NotifyKafka = "kafka"
	NotifyMQTT  = "mqtt"
)

type Config struct {
	DBPath      string
	LogLevel    string
	LogFile     string
	MetricsAddr string

	QueueDrainInterval time.Duration
	QueueBatchSize     int
	QueueMaxRetries    int
	QueueRetention     time.Duration

	VoiceConfidenceThreshold float64

	NotifyBackend string
	KafkaBrokers  []string
	KafkaTopic    string
	MQTTBroker    string
	MQTTTopic     string
	MQTTClientID  string

	ClaudeAPIKey string
	ClaudeModel  string

	SentryDSN   string
	Environment string
}

var defaults = map[string]any{
	"db_path":                    "/data/inspectflow.db",
	"log_level":                  "info",
	"log_file":                   "",
	"metrics_addr":               ":9090",
	"queue_drain_interval":       "5s",
	"queue_batch_size":           5,
	"queue_max_retries":          3,
	"queue_retention":            "24h",
	"voice_confidence_threshold": 0.7,
	"notify_backend":             NotifyLog,
	"kafka_brokers":              "",
	"kafka_topic":                "inspection-events",
	"mqtt_broker":                "",
	"mqtt_topic":                 "inspectflow/inspections",
	"mqtt_client_id":             "inspectd",
	"claude_api_key":             "",
	"claude_model":               "claude-opus-4-6",
	"sentry_dsn":                 "",
	"environment":                "development",
}

// Load reads the process-wide viper instance, which also carries any CLI
// flags bound to it.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads settings from v. Environment variables use the upper-case
// key (DB_PATH, QUEUE_BATCH_SIZE, ...). When CONFIG_FILE is set the named
// YAML file is read first and the environment overrides it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	_ = v.BindEnv("config_file", "CONFIG_FILE")

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		DBPath:                   v.GetString("db_path"),
		LogLevel:                 strings.ToLower(v.GetString("log_level")),
		LogFile:                  v.GetString("log_file"),
		MetricsAddr:              v.GetString("metrics_addr"),
		QueueDrainInterval:       v.GetDuration("queue_drain_interval"),
		QueueBatchSize:           v.GetInt("queue_batch_size"),
		QueueMaxRetries:          v.GetInt("queue_max_retries"),
		QueueRetention:           v.GetDuration("queue_retention"),
		VoiceConfidenceThreshold: v.GetFloat64("voice_confidence_threshold"),
		NotifyBackend:            strings.ToLower(v.GetString("notify_backend")),
		KafkaBrokers:             splitList(v.GetString("kafka_brokers")),
		KafkaTopic:               v.GetString("kafka_topic"),
		MQTTBroker:               v.GetString("mqtt_broker"),
		MQTTTopic:                v.GetString("mqtt_topic"),
		MQTTClientID:             v.GetString("mqtt_client_id"),
		ClaudeAPIKey:             v.GetString("claude_api_key"),
		ClaudeModel:              v.GetString("claude_model"),
		SentryDSN:                v.GetString("sentry_dsn"),
		Environment:              v.GetString("environment"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.NotifyBackend {
	case NotifyLog, NotifyKafka:
	case NotifyMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required when NOTIFY_BACKEND is mqtt")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_BACKEND %q", c.NotifyBackend)
	}
	if c.VoiceConfidenceThreshold <= 0 || c.VoiceConfidenceThreshold > 1 {
		return fmt.Errorf("VOICE_CONFIDENCE_THRESHOLD must be in (0, 1], got %v", c.VoiceConfidenceThreshold)
	}
	if c.QueueBatchSize < 1 || c.QueueMaxRetries < 1 {
		return fmt.Errorf("QUEUE_BATCH_SIZE and QUEUE_MAX_RETRIES must be at least 1")
	}
	if c.QueueDrainInterval <= 0 || c.QueueRetention <= 0 {
		return fmt.Errorf("QUEUE_DRAIN_INTERVAL and QUEUE_RETENTION must be positive")
	}
	return nil
}

// splitList accepts comma or whitespace separated values.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// Package config loads service configuration from YAML with environment
// overrides for deploy-time settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shield-respond/internal/actions"
	"shield-respond/internal/kafka"
	"shield-respond/internal/logging"
	"shield-respond/internal/storage"
	s3archive "shield-respond/internal/storage/s3"
)

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	// DefaultActionTimeout caps each action that does not set its own.
	DefaultActionTimeout time.Duration `yaml:"default_action_timeout"`

	// HistorySize bounds the in-memory execution history.
	HistorySize int `yaml:"history_size"`
}

// PlaybooksConfig controls where playbook definitions come from.
type PlaybooksConfig struct {
	// File is an optional YAML file of playbook definitions.
	File string `yaml:"file"`

	// BuiltIn registers the stock playbooks when true.
	BuiltIn bool `yaml:"built_in"`
}

// RedisConfig wraps the Redis connection settings with an enable switch.
type RedisConfig struct {
	Enabled             bool `yaml:"enabled"`
	actions.RedisConfig `yaml:",inline"`
}

// KafkaConfig wraps the Kafka settings with an enable switch.
type KafkaConfig struct {
	Enabled      bool `yaml:"enabled"`
	kafka.Config `yaml:",inline"`
}

// StorageConfig holds the ClickHouse audit trail settings.
type StorageConfig struct {
	Enabled    bool                          `yaml:"enabled"`
	ClickHouse storage.ClickHouseConfig      `yaml:"clickhouse"`
	Writer     storage.ExecutionWriterConfig `yaml:"writer"`
	Retention  storage.RetentionConfig       `yaml:"retention"`
}

// ArchiveConfig holds the S3 long-term archive settings.
type ArchiveConfig struct {
	Enabled  bool                     `yaml:"enabled"`
	S3       s3archive.Config         `yaml:"s3"`
	Archiver s3archive.ArchiverConfig `yaml:"archiver"`
}

// Config is the root service configuration.
type Config struct {
	Logging   logging.Config  `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
	Playbooks PlaybooksConfig `yaml:"playbooks"`
	Actions   actions.Config  `yaml:"actions"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Storage   StorageConfig   `yaml:"storage"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Engine: EngineConfig{
			DefaultActionTimeout: 30 * time.Second,
			HistorySize:          1000,
		},
		Playbooks: PlaybooksConfig{
			BuiltIn: true,
		},
		Actions: actions.DefaultConfig(),
		Redis: RedisConfig{
			RedisConfig: actions.DefaultRedisConfig(),
		},
		Kafka: KafkaConfig{
			Config: *kafka.DefaultConfig(),
		},
		Storage: StorageConfig{
			ClickHouse: storage.DefaultClickHouseConfig(),
			Writer:     storage.DefaultExecutionWriterConfig(),
			Retention:  storage.DefaultRetentionConfig(),
		},
		Archive: ArchiveConfig{
			S3:       *s3archive.DefaultConfig(),
			Archiver: s3archive.DefaultArchiverConfig(),
		},
	}
}

// Load loads configuration from a file or returns defaults. The file path
// comes from RESPOND_CONFIG_PATH, falling back to configs/config.yaml.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("RESPOND_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("RESPOND_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("RESPOND_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if size := os.Getenv("RESPOND_HISTORY_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			c.Engine.HistorySize = n
		}
	}
	if timeout := os.Getenv("RESPOND_ACTION_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Engine.DefaultActionTimeout = d
		}
	}

	if file := os.Getenv("RESPOND_PLAYBOOKS_FILE"); file != "" {
		c.Playbooks.File = file
	}

	if enabled := os.Getenv("RESPOND_REDIS_ENABLED"); enabled == "true" {
		c.Redis.Enabled = true
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Redis.Password = pass
	}

	if enabled := os.Getenv("RESPOND_KAFKA_ENABLED"); enabled == "true" {
		c.Kafka.Enabled = true
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers, ",")
	}
	if user := os.Getenv("KAFKA_SASL_USERNAME"); user != "" {
		c.Kafka.SASLUsername = user
	}
	if pass := os.Getenv("KAFKA_SASL_PASSWORD"); pass != "" {
		c.Kafka.SASLPassword = pass
	}

	if enabled := os.Getenv("RESPOND_STORAGE_ENABLED"); enabled == "true" {
		c.Storage.Enabled = true
	}
	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Storage.ClickHouse.Hosts = splitAndTrim(host, ",")
	}
	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.Storage.ClickHouse.Database = db
	}
	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.Storage.ClickHouse.Username = user
	}
	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Storage.ClickHouse.Password = pass
	}

	if enabled := os.Getenv("RESPOND_ARCHIVE_ENABLED"); enabled == "true" {
		c.Archive.Enabled = true
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.Archive.S3.Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		c.Archive.S3.Region = region
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Engine.DefaultActionTimeout <= 0 {
		return fmt.Errorf("default_action_timeout must be positive")
	}
	if c.Engine.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive")
	}

	if c.Kafka.Enabled {
		if err := c.Kafka.Config.Validate(); err != nil {
			return err
		}
	}

	if c.Storage.Enabled {
		if len(c.Storage.ClickHouse.Hosts) == 0 {
			return fmt.Errorf("storage enabled but no clickhouse hosts configured")
		}
		if c.Storage.ClickHouse.Database == "" {
			return fmt.Errorf("storage enabled but no clickhouse database configured")
		}
	}

	if c.Archive.Enabled {
		if err := c.Archive.S3.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

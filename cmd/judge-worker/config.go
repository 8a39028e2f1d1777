package main

import (
	"fmt"
	"os"
	"time"

	"jarcode/internal/common/cache"
	"jarcode/internal/common/db"
	"jarcode/internal/common/mq"
	"jarcode/internal/judge"
	"jarcode/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultTopic           = "submission.evaluate"
	defaultDeadLetterTopic = "submission.evaluate.dlq"
	defaultConsumerGroup   = "jarcode-judge-worker"
	defaultConcurrency     = 4
	defaultMaxRetries      = 3
	defaultRetryDelay      = time.Second
	defaultJudgeTimeout    = 30 * time.Second
	defaultStatusTTL       = 24 * time.Hour
)

// WorkerConfig holds consumer pool settings. Concurrency bounds the number of
// sandboxes running at once.
type WorkerConfig struct {
	Topic           string        `yaml:"topic"`
	DeadLetterTopic string        `yaml:"deadLetterTopic"`
	ConsumerGroup   string        `yaml:"consumerGroup"`
	Concurrency     int           `yaml:"concurrency"`
	MaxRetries      int           `yaml:"maxRetries"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
}

// JudgeConfig holds per-language evaluation timeouts.
type JudgeConfig struct {
	Timeouts map[string]time.Duration `yaml:"timeouts"`
}

// EnrichConfig holds AI evaluation settings. The API key is read from the
// GEMINI_API_KEY environment variable when not set here.
type EnrichConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// AppConfig holds judge-worker configuration.
type AppConfig struct {
	Logger   logger.Config     `yaml:"logger"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Kafka    mq.KafkaConfig    `yaml:"kafka"`
	Worker   WorkerConfig      `yaml:"worker"`
	Judge    JudgeConfig       `yaml:"judge"`
	Enrich   EnrichConfig      `yaml:"enrich"`

	StatusTTL time.Duration `yaml:"statusTTL"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	if cfg.Worker.Topic == "" {
		cfg.Worker.Topic = defaultTopic
	}
	if cfg.Worker.DeadLetterTopic == "" {
		cfg.Worker.DeadLetterTopic = defaultDeadLetterTopic
	}
	if cfg.Worker.ConsumerGroup == "" {
		cfg.Worker.ConsumerGroup = defaultConsumerGroup
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = defaultConcurrency
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = defaultMaxRetries
	}
	if cfg.Worker.RetryDelay <= 0 {
		cfg.Worker.RetryDelay = defaultRetryDelay
	}

	if cfg.Judge.Timeouts == nil {
		cfg.Judge.Timeouts = map[string]time.Duration{}
	}
	for _, lang := range []string{judge.LanguagePython, judge.LanguageJava, judge.LanguageCpp} {
		if cfg.Judge.Timeouts[lang] == 0 {
			cfg.Judge.Timeouts[lang] = defaultJudgeTimeout
		}
	}

	if cfg.Enrich.APIKey == "" {
		cfg.Enrich.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.StatusTTL == 0 {
		cfg.StatusTTL = defaultStatusTTL
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/ceilometer-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputDir        string
	OutputDir       string
	Workers         int
	PollInterval    time.Duration
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Decoding parameters.
	ChecksumEnabled  bool
	InitialTime      time.Time
	SamplingInterval time.Duration

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel     string
	LogFormat    string
	LogFile      string
	LogMaxSizeMB int

	// Warnings lists settings that were ignored. They are logged once the
	// logger exists.
	Warnings []string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("WORKERS", "4")
	if err != nil {
		return nil, err
	}
	logMaxSize, err := parsePositiveInt("LOG_MAX_SIZE_MB", "100")
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration("POLL_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}
	samplingInterval, err := parseDuration("SAMPLING_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}

	checksum, err := parseBool("CHECKSUM_ENABLED", "false")
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", "false")
	if err != nil {
		return nil, err
	}

	// An unusable INITIAL_TIME only matters for files without timestamps,
	// so it is ignored with a warning.
	var (
		initialTime time.Time
		warnings    []string
	)
	if s := sharedcfg.EnvOrDefault("INITIAL_TIME", ""); s != "" {
		if initialTime, err = domain.ParseTimeArg(s); err != nil {
			initialTime = time.Time{}
			warnings = append(warnings, fmt.Sprintf("ignoring INITIAL_TIME: %v", err))
		}
	}

	cfg := &Config{
		InputDir:        sharedcfg.EnvOrDefault("INPUT_DIR", "data/in"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "data/out"),
		Workers:         workers,
		PollInterval:    pollInterval,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,

		ChecksumEnabled:  checksum,
		InitialTime:      initialTime,
		SamplingInterval: samplingInterval,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "ceilometer-records"),

		LogLevel:     sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogFile:      sharedcfg.EnvOrDefault("LOG_FILE", ""),
		LogMaxSizeMB: logMaxSize,

		Warnings: warnings,
	}

	if cfg.InputDir == "" {
		return nil, errors.New("INPUT_DIR is required")
	}
	if cfg.OutputDir == "" && !cfg.KafkaEnabled {
		return nil, errors.New("OUTPUT_DIR is required unless KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative duration", key)
	}
	return d, nil
}

func parseBool(key, def string) (bool, error) {
	b, err := strconv.ParseBool(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}

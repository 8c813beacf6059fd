package main

import (
	"fmt"
	"math"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ledgersync/cdnsync/pkg/clickhouse"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Config holds all configuration for the cdnsync application
type Config struct {
	// Application settings
	Verbose bool

	// Sync settings
	BaseURL       string
	NetworkID     uint16
	Start         uint64
	End           uint64
	BlocksPerFile uint64
	Concurrency   uint64
	MaxPending    uint64
	SafetyMargin  uint64

	// Kafka settings
	KafkaBrokers  string
	KafkaTopic    string
	KafkaClientID string

	// ClickHouse settings
	ClickHouse      clickhouse.Config
	BlocksTableName string

	// Metrics settings
	MetricsHost string
	MetricsPort int
	Environment string
	Region      string

	StallWatchdogInterval time.Duration
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// PublishEnabled reports whether synced blocks should be announced on Kafka.
func (c *Config) PublishEnabled() bool {
	return c.KafkaTopic != ""
}

// KafkaProducerConfig builds a Kafka producer ConfigMap from the config
func (c *Config) KafkaProducerConfig() *confluentKafka.ConfigMap {
	return &confluentKafka.ConfigMap{
		// Required
		"bootstrap.servers": c.KafkaBrokers,
		"client.id":         c.KafkaClientID,

		// Reliability: wait for all replicas to acknowledge
		"acks": "all",

		// Performance tuning
		"linger.ms":        5,     // Batch messages for 5ms
		"batch.size":       16384, // 16KB batch size
		"compression.type": "lz4", // Fast compression

		// Idempotence for exactly-once semantics
		"enable.idempotence": true,
	}
}

// buildConfig builds a Config from CLI context flags. ClickHouse settings
// come from the environment rather than flags.
func buildConfig(c *cli.Context) (*Config, error) {
	networkID := c.Uint("network-id")
	if networkID > math.MaxUint16 {
		return nil, fmt.Errorf("network-id must fit in 16 bits, got %d", networkID)
	}

	chCfg, err := clickhouse.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load ClickHouse config: %w", err)
	}

	return &Config{
		Verbose:               c.Bool("verbose"),
		BaseURL:               c.String("base-url"),
		NetworkID:             uint16(networkID),
		Start:                 c.Uint64("start-height"),
		End:                   c.Uint64("end-height"),
		BlocksPerFile:         c.Uint64("blocks-per-file"),
		Concurrency:           c.Uint64("concurrency"),
		MaxPending:            c.Uint64("max-pending-blocks"),
		SafetyMargin:          c.Uint64("safety-margin"),
		KafkaBrokers:          c.String("kafka-brokers"),
		KafkaTopic:            c.String("kafka-topic"),
		KafkaClientID:         c.String("kafka-client-id"),
		ClickHouse:            chCfg,
		BlocksTableName:       c.String("blocks-table-name"),
		MetricsHost:           c.String("metrics-host"),
		MetricsPort:           c.Int("metrics-port"),
		Environment:           c.String("environment"),
		Region:                c.String("region"),
		StallWatchdogInterval: c.Duration("stall-watchdog-interval"),
	}, nil
}

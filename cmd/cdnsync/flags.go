package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

// runFlags returns all CLI flags for the cdnsync run command
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:     "base-url",
			Aliases:  []string{"u"},
			Usage:    "The CDN base URL to fetch block bundles from",
			EnvVars:  []string{"CDN_BASE_URL"},
			Required: true,
		},
		&cli.UintFlag{
			Name:    "network-id",
			Aliases: []string{"n"},
			Usage:   "The network ID of the chain being synced",
			EnvVars: []string{"NETWORK_ID"},
			Value:   3,
		},
		&cli.Uint64Flag{
			Name:    "start-height",
			Aliases: []string{"s"},
			Usage:   "The start height to sync from. If not specified, resumes from the ledger height",
			EnvVars: []string{"START_HEIGHT"},
		},
		&cli.Uint64Flag{
			Name:    "end-height",
			Aliases: []string{"e"},
			Usage:   "The end height (exclusive) to sync to. If not specified, syncs up to the CDN height",
			EnvVars: []string{"END_HEIGHT"},
		},
		&cli.Uint64Flag{
			Name:    "blocks-per-file",
			Aliases: []string{"B"},
			Usage:   "The number of blocks per CDN bundle",
			EnvVars: []string{"BLOCKS_PER_FILE"},
			Value:   50,
		},
		&cli.Uint64Flag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "The number of concurrent bundle downloads",
			EnvVars: []string{"CONCURRENCY"},
			Value:   16,
		},
		&cli.Uint64Flag{
			Name:    "max-pending-blocks",
			Aliases: []string{"p"},
			Usage:   "The maximum number of buffered blocks awaiting application (0 for blocks-per-file * concurrency * 2)",
			EnvVars: []string{"MAX_PENDING_BLOCKS"},
		},
		&cli.Uint64Flag{
			Name:    "safety-margin",
			Aliases: []string{"M"},
			Usage:   "The number of heights backed off the advertised CDN tip",
			EnvVars: []string{"SAFETY_MARGIN"},
			Value:   10,
		},
		&cli.StringFlag{
			Name:    "blocks-table-name",
			Aliases: []string{"T"},
			Usage:   "The name of the ClickHouse table to write blocks to",
			EnvVars: []string{"BLOCKS_TABLE_NAME"},
			Value:   "blocks",
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "The Kafka brokers to use (comma-separated list)",
			EnvVars: []string{"KAFKA_BROKERS"},
			Value:   "localhost:9092",
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Aliases: []string{"t"},
			Usage:   "The Kafka topic to announce synced blocks on. If not specified, announcements are disabled",
			EnvVars: []string{"KAFKA_TOPIC"},
		},
		&cli.StringFlag{
			Name:    "kafka-client-id",
			Usage:   "The Kafka client ID to use",
			EnvVars: []string{"KAFKA_CLIENT_ID"},
			Value:   "cdnsync",
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"R"},
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
			Value:   "",
		},
		&cli.DurationFlag{
			Name:    "stall-watchdog-interval",
			Aliases: []string{"w"},
			Usage:   "The interval between stall checks (0 disables the watchdog)",
			EnvVars: []string{"STALL_WATCHDOG_INTERVAL"},
			Value:   1 * time.Minute,
		},
	}
}

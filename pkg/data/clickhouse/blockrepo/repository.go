// Package blockrepo stores synced blocks in ClickHouse and exposes
// the ledger view the sync pipeline needs.
package blockrepo

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgersync/cdnsync/pkg/cdnsync"
	"github.com/ledgersync/cdnsync/pkg/clickhouse"
	"github.com/ledgersync/cdnsync/pkg/wire"
)

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/insert-block.sql
var insertBlockQuery string

//go:embed queries/read-latest-height.sql
var readLatestHeightQuery string

//go:embed queries/read-block.sql
var readBlockQuery string

var _ cdnsync.Ledger = (*Repository)(nil)

// Repository implements cdnsync.Ledger on a ClickHouse blocks table.
// The ReplacingMergeTree engine keyed on height makes re-inserts of
// the same height idempotent after merges.
type Repository struct {
	client   clickhouse.Client
	cluster  string
	database string
	table    string
}

func NewRepository(client clickhouse.Client, cluster, database, table string) (*Repository, error) {
	if client == nil {
		return nil, errors.New("invalid client: must not be nil")
	}
	if database == "" || table == "" {
		return nil, errors.New("invalid database or table name: must not be empty")
	}
	return &Repository{client: client, cluster: cluster, database: database, table: table}, nil
}

// CreateTableIfNotExists ensures the blocks table exists. Idempotent.
func (r *Repository) CreateTableIfNotExists(ctx context.Context) error {
	var onCluster string
	if r.cluster != "" {
		onCluster = fmt.Sprintf("ON CLUSTER '%s'", r.cluster)
	}
	query := fmt.Sprintf(createTableQuery, r.database, r.table, onCluster)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create blocks table: %w", err)
	}
	return nil
}

// LatestHeight implements cdnsync.Ledger. An empty table reports 0.
func (r *Repository) LatestHeight(ctx context.Context) (uint64, error) {
	var height uint64
	query := fmt.Sprintf(readLatestHeightQuery, r.database, r.table)
	if err := r.client.Conn().QueryRow(ctx, query).Scan(&height); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read latest height: %w", err)
	}
	return height, nil
}

// Block implements cdnsync.Ledger.
func (r *Repository) Block(ctx context.Context, height uint64) (cdnsync.Block, error) {
	var (
		b       wire.Block
		payload string
	)
	query := fmt.Sprintf(readBlockQuery, r.database, r.table)
	err := r.client.Conn().QueryRow(ctx, query, height).Scan(&b.BlockHeight, &b.Hash, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("block %d not found", height)
		}
		return nil, fmt.Errorf("failed to read block %d: %w", height, err)
	}
	b.Payload = json.RawMessage(payload)
	return &b, nil
}

// Advance implements cdnsync.Ledger by inserting the block row.
func (r *Repository) Advance(ctx context.Context, blk cdnsync.Block) error {
	wb, ok := blk.(*wire.Block)
	if !ok {
		return fmt.Errorf("unsupported block type %T", blk)
	}
	query := fmt.Sprintf(insertBlockQuery, r.database, r.table)
	if err := r.client.Conn().Exec(ctx, query, wb.BlockHeight, wb.Hash, string(wb.Payload)); err != nil {
		return fmt.Errorf("failed to insert block %d: %w", wb.BlockHeight, err)
	}
	return nil
}

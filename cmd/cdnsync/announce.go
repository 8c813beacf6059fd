package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ledgersync/cdnsync/pkg/cdnsync"
	"github.com/ledgersync/cdnsync/pkg/queue"
)

// publishingLedger decorates a ledger so every applied block is also
// announced on a queue topic. The announcement is published after the
// block is durably stored; a crash between the two leaves a gap the
// next run re-publishes, so consumers must tolerate duplicates.
type publishingLedger struct {
	cdnsync.Ledger
	publisher queue.QueuePublisher
	topic     string
}

func (l *publishingLedger) Advance(ctx context.Context, blk cdnsync.Block) error {
	if err := l.Ledger.Advance(ctx, blk); err != nil {
		return err
	}

	value, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("failed to encode block announcement: %w", err)
	}

	return l.publisher.Publish(ctx, queue.Msg{
		Topic: l.topic,
		Key:   []byte(strconv.FormatUint(blk.Height(), 10)),
		Value: value,
	})
}

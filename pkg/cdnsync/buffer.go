package cdnsync

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ledgersync/cdnsync/pkg/metrics"
)

// blockBuffer is the staging area for downloaded blocks awaiting
// application: sorted by height, no duplicate heights. It is the only
// state shared between the fetch goroutines and the applier. The
// mutex is held for the duration of each operation and never across
// I/O.
type blockBuffer struct {
	mu     sync.Mutex
	blocks []Block
	log    *zap.SugaredLogger
	m      *metrics.Metrics
}

func newBlockBuffer(log *zap.SugaredLogger, m *metrics.Metrics) *blockBuffer {
	return &blockBuffer{log: log, m: m}
}

// Insert adds blk keeping the buffer sorted by height. A block whose
// height is already present is dropped with a warning; existing
// blocks are never overwritten. Reports whether blk was inserted.
func (b *blockBuffer) Insert(blk Block) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok := b.insertLocked(blk)
	b.m.SetPendingBlocks(len(b.blocks))
	return ok
}

// InsertAll adds a whole bundle under one lock acquisition, so the
// applier never observes a partially inserted bundle. TakePrefix
// relies on this for intra-prefix contiguity.
func (b *blockBuffer) InsertAll(blocks []Block) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, blk := range blocks {
		b.insertLocked(blk)
	}
	b.m.SetPendingBlocks(len(b.blocks))
}

func (b *blockBuffer) insertLocked(blk Block) bool {
	h := blk.Height()
	i := sort.Search(len(b.blocks), func(i int) bool { return b.blocks[i].Height() >= h })
	if i < len(b.blocks) && b.blocks[i].Height() == h {
		b.log.Warnw("duplicate pending block", "height", h)
		b.m.IncDuplicateBlocks()
		return false
	}

	b.blocks = append(b.blocks, nil)
	copy(b.blocks[i+1:], b.blocks[i:])
	b.blocks[i] = blk
	return true
}

// Len returns the number of buffered blocks.
func (b *blockBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blocks)
}

// PeekEarliest returns the minimum buffered height, if any.
func (b *blockBuffer) PeekEarliest() (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.blocks) == 0 {
		return 0, false
	}
	return b.blocks[0].Height(), true
}

// TakePrefix atomically removes and returns up to limit blocks
// starting from the minimum height, in ascending order.
func (b *blockBuffer) TakePrefix(limit int) []Block {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || len(b.blocks) == 0 {
		return nil
	}
	if limit > len(b.blocks) {
		limit = len(b.blocks)
	}

	taken := make([]Block, limit)
	copy(taken, b.blocks[:limit])
	n := copy(b.blocks, b.blocks[limit:])
	for i := n; i < len(b.blocks); i++ {
		b.blocks[i] = nil
	}
	b.blocks = b.blocks[:n]
	b.m.SetPendingBlocks(n)
	return taken
}

// Package ledger provides an in-memory cdnsync.Ledger for tests and
// dry runs.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgersync/cdnsync/pkg/cdnsync"
)

// Memory is a mutex-guarded in-memory ledger. Advance enforces
// contiguity: the next accepted height is always LatestHeight()+1.
type Memory struct {
	mu     sync.Mutex
	blocks map[uint64]cdnsync.Block
	latest uint64
}

func NewMemory() *Memory {
	return &Memory{blocks: make(map[uint64]cdnsync.Block)}
}

// LatestHeight implements cdnsync.Ledger. A fresh ledger reports 0.
func (m *Memory) LatestHeight(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, nil
}

// Block implements cdnsync.Ledger.
func (m *Memory) Block(_ context.Context, height uint64) (cdnsync.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[height]
	if !ok {
		return nil, fmt.Errorf("block %d not found", height)
	}
	return b, nil
}

// Advance implements cdnsync.Ledger.
func (m *Memory) Advance(_ context.Context, b cdnsync.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if want := m.latest + 1; b.Height() != want {
		return fmt.Errorf("out-of-order block: got height %d, want %d", b.Height(), want)
	}
	m.blocks[b.Height()] = b
	m.latest = b.Height()
	return nil
}

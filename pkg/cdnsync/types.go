package cdnsync

import "context"

// Block is a single ledger record downloaded from the CDN. The
// pipeline only ever inspects the height; payloads stay opaque and are
// handed to the apply function unchanged.
type Block interface {
	Height() uint64
}

// ApplyFunc durably incorporates one block into the caller's store.
// Blocks are delivered in strictly increasing, gapless height order,
// exactly once, and never concurrently. An error aborts the sync.
type ApplyFunc func(ctx context.Context, b Block) error

// DecodeFunc parses the body of one CDN bundle into blocks.
type DecodeFunc func(data []byte) ([]Block, error)

// Ledger is the external store Sync reads its resume point from and
// applies blocks into.
type Ledger interface {
	// LatestHeight reports the highest block the ledger holds; 0 for a
	// fresh ledger.
	LatestHeight(ctx context.Context) (uint64, error)
	// Block reads the block stored at the given height.
	Block(ctx context.Context, height uint64) (Block, error)
	// Advance appends the next block. Implementations should reject
	// out-of-order heights.
	Advance(ctx context.Context, b Block) error
}

// SyncRange is the effective sync window [Start, End) together with
// the bundle-aligned download range [CDNStart, CDNEnd). CDNStart is
// Start rounded down to a bundle boundary; CDNEnd equals End.
type SyncRange struct {
	Start    uint64
	End      uint64
	CDNStart uint64
	CDNEnd   uint64
}

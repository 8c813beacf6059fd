// Package wire implements the CDN's serialization formats: the JSON
// block bundles served at {start}.{end}.blocks and the
// length-prefixed string envelope wrapping latest.json. The sync
// pipeline itself is codec-agnostic; this package supplies the
// concrete DecodeFunc the CLI and tests plug in.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ledgersync/cdnsync/pkg/cdnsync"
)

// Block is one record as it appears inside a CDN bundle. Payload is
// carried opaquely; the sync pipeline never looks inside it.
type Block struct {
	BlockHeight uint64          `json:"height"`
	Hash        string          `json:"hash"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Height implements cdnsync.Block.
func (b *Block) Height() uint64 { return b.BlockHeight }

// DecodeBundle parses one bundle body into blocks in bundle order.
func DecodeBundle(data []byte) ([]cdnsync.Block, error) {
	var raw []*Block
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode block bundle: %w", err)
	}
	blocks := make([]cdnsync.Block, len(raw))
	for i, b := range raw {
		if b == nil {
			return nil, fmt.Errorf("block %d in bundle is null", i)
		}
		blocks[i] = b
	}
	return blocks, nil
}

// EncodeBundle serializes blocks into a bundle body. Used by origin
// tooling and test fixtures.
func EncodeBundle(blocks []*Block) ([]byte, error) {
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode block bundle: %w", err)
	}
	return data, nil
}

// LatestState mirrors the latest.json metadata object.
type LatestState struct {
	ExclusiveHeight uint32 `json:"exclusive_height"`
	InclusiveHeight uint32 `json:"inclusive_height"`
	Hash            string `json:"hash"`
}

// EncodeLatest serializes s into the enveloped form served at
// latest.json.
func EncodeLatest(s LatestState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode latest state: %w", err)
	}
	return EncodeEnvelope(string(data)), nil
}

// EncodeEnvelope wraps s in the CDN's string envelope: an 8-byte
// little-endian length followed by the bytes.
func EncodeEnvelope(s string) []byte {
	buf := make([]byte, 8+len(s))
	binary.LittleEndian.PutUint64(buf, uint64(len(s)))
	copy(buf[8:], s)
	return buf
}

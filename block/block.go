package block

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// Digest is the BLAKE3-256 hash of a serialized block. It is the block's only identity.
type Digest [32]byte

// HashBytes returns the digest of an already serialized block
func HashBytes(data []byte) Digest {
	return blake3.Sum256(data)
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) Bytes() []byte {
	return d[:]
}

// ParseDigest decodes a 64 character hex string
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(raw) != len(d) {
		return d, fmt.Errorf("invalid digest %q: want %d bytes, got %d", s, len(d), len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// DigestFromBytes converts a raw store key into a Digest
func DigestFromBytes(raw []byte) (Digest, error) {
	var d Digest
	if len(raw) != len(d) {
		return d, fmt.Errorf("invalid digest length %d", len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

type Block struct {
	PrevHash Digest   // Digest of the previous block
	Slot     uint64   // Slot number assigned by the beacon
	TxHashes []Digest // Transaction digests; transactions live elsewhere
	Metadata string   // Opaque block information
}

// Serialize returns the canonical encoding: an RLP list of the four fields in
// declaration order.
func (b *Block) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(b)
}

// Hash returns Digest(Serialize())
func (b *Block) Hash() (Digest, error) {
	data, err := b.Serialize()
	if err != nil {
		return Digest{}, err
	}
	return HashBytes(data), nil
}

// Decode parses a canonical encoding. Trailing bytes are rejected.
func Decode(data []byte) (*Block, error) {
	var b Block
	if err := rlp.DecodeBytes(data, &b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &b, nil
}

package merkle

import (
	"golang.org/x/crypto/blake2b"
)

// Node is a 32-byte tree value: a leaf commitment or an internal subtree root.
type Node [32]byte

// Hasher defines the tree's node algebra.
type Hasher interface {
	// EmptyLeaf is the value of an unfilled leaf slot
	EmptyLeaf() Node
	// EmptyRoot is the root of an empty subtree of the given altitude; EmptyRoot(0) == EmptyLeaf()
	EmptyRoot(alt Altitude) Node
	// Combine hashes two children at altitude alt into their parent at alt+1
	Combine(alt Altitude, left, right Node) Node
}

const (
	leafDomain    = "chainstore/merkle/leaf"
	emptyDomain   = "chainstore/merkle/empty"
	combineDomain = "chainstore/merkle/node"
)

// Blake2bHasher is the default Hasher: domain separated BLAKE2b-256 with the
// altitude mixed into every internal node.
type Blake2bHasher struct {
	emptyRoots [MaxDepth + 1]Node
}

func NewBlake2bHasher() *Blake2bHasher {
	h := &Blake2bHasher{}
	h.emptyRoots[0] = blake2b.Sum256([]byte(emptyDomain))
	for alt := 1; alt <= MaxDepth; alt++ {
		prev := h.emptyRoots[alt-1]
		h.emptyRoots[alt] = h.Combine(Altitude(alt-1), prev, prev)
	}
	return h
}

// Leaf commits arbitrary data to a leaf value
func (h *Blake2bHasher) Leaf(data []byte) Node {
	buf := make([]byte, 0, len(leafDomain)+len(data))
	buf = append(buf, leafDomain...)
	buf = append(buf, data...)
	return blake2b.Sum256(buf)
}

func (h *Blake2bHasher) EmptyLeaf() Node {
	return h.emptyRoots[0]
}

func (h *Blake2bHasher) EmptyRoot(alt Altitude) Node {
	if int(alt) > MaxDepth {
		panic("merkle: altitude out of range")
	}
	return h.emptyRoots[alt]
}

func (h *Blake2bHasher) Combine(alt Altitude, left, right Node) Node {
	var buf [len(combineDomain) + 1 + 64]byte
	n := copy(buf[:], combineDomain)
	buf[n] = byte(alt)
	copy(buf[n+1:], left[:])
	copy(buf[n+33:], right[:])
	return blake2b.Sum256(buf[:])
}

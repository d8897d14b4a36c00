package merkle

import (
	"fmt"
	"slices"
)

type LeafKind uint8

const (
	// LeafLeft: the frontier position is a left child; only its own value is known
	LeafLeft LeafKind = iota
	// LeafRight: the frontier position is a right child; both siblings are known
	LeafRight
)

// Leaf is the lowest layer of a frontier.
type Leaf struct {
	kind   LeafKind
	values [2]Node
}

func NewLeftLeaf(a Node) Leaf {
	return Leaf{kind: LeafLeft, values: [2]Node{a}}
}

func NewRightLeaf(a, b Node) Leaf {
	return Leaf{kind: LeafRight, values: [2]Node{a, b}}
}

func (l Leaf) Kind() LeafKind {
	return l.kind
}

// Values returns one value for Left and two for Right
func (l Leaf) Values() []Node {
	if l.kind == LeafRight {
		return []Node{l.values[0], l.values[1]}
	}
	return []Node{l.values[0]}
}

// Value is the most recently appended leaf
func (l Leaf) Value() Node {
	if l.kind == LeafRight {
		return l.values[1]
	}
	return l.values[0]
}

// Frontier is the non-empty rightmost edge of the tree: enough state to append
// the next leaf and compute the root without revisiting earlier leaves.
type Frontier struct {
	position Position
	leaf     Leaf
	ommers   []Node
}

// NewFrontier starts a frontier holding a single leaf at position 0
func NewFrontier(leaf Node) *Frontier {
	return &Frontier{leaf: NewLeftLeaf(leaf)}
}

// NewFrontierFromParts validates and assembles a frontier.
// Left leaves sit at even positions, Right leaves at odd ones, and there is
// exactly one ommer per set bit of position above bit 0.
func NewFrontierFromParts(position Position, leaf Leaf, ommers []Node) (*Frontier, error) {
	wantRight := position.bit(0)
	if (leaf.kind == LeafRight) != wantRight || leaf.kind > LeafRight {
		return nil, fmt.Errorf("%w: position %d", ErrLeafParity, position)
	}
	if len(ommers) != position.ommerCount() {
		return nil, fmt.Errorf("%w: position %d needs %d, got %d",
			ErrOmmerCount, position, position.ommerCount(), len(ommers))
	}
	return &Frontier{
		position: position,
		leaf:     leaf,
		ommers:   slices.Clone(ommers),
	}, nil
}

func (f *Frontier) Position() Position {
	return f.position
}

func (f *Frontier) Leaf() Leaf {
	return f.leaf
}

// Ommers returns a copy of the left siblings, ascending by altitude
func (f *Frontier) Ommers() []Node {
	return slices.Clone(f.ommers)
}

func (f *Frontier) clone() *Frontier {
	c := *f
	c.ommers = slices.Clone(f.ommers)
	return &c
}

func (f *Frontier) append(h Hasher, value Node) {
	if f.leaf.kind == LeafLeft {
		f.leaf = NewRightLeaf(f.leaf.values[0], value)
		f.position++
		return
	}

	carry := h.Combine(0, f.leaf.values[0], f.leaf.values[1])
	carryAlt := Altitude(1)
	carrying := true
	ommers := make([]Node, 0, len(f.ommers)+1)
	for i, alt := range f.position.ommerAltitudes() {
		if !carrying {
			ommers = append(ommers, f.ommers[i])
			continue
		}
		if alt == carryAlt {
			carry = h.Combine(alt, f.ommers[i], carry)
			carryAlt++
		} else {
			// first gap: the carry settles here and the rest is unchanged
			ommers = append(ommers, carry, f.ommers[i])
			carrying = false
		}
	}
	if carrying {
		ommers = append(ommers, carry)
	}
	f.ommers = ommers
	f.leaf = NewLeftLeaf(value)
	f.position++
}

// rootAt returns the root of the subtree of height alt (>= 1) that contains the
// frontier position, treating unfilled slots as empty. Ommers at or above alt
// are ignored.
func (f *Frontier) rootAt(h Hasher, alt Altitude) Node {
	right := h.EmptyLeaf()
	if f.leaf.kind == LeafRight {
		right = f.leaf.values[1]
	}
	node := h.Combine(0, f.leaf.values[0], right)
	next := 0
	for lvl := Altitude(1); lvl < alt; lvl++ {
		if f.position.bit(lvl) {
			node = h.Combine(lvl, f.ommers[next], node)
			next++
		} else {
			node = h.Combine(lvl, node, h.EmptyRoot(lvl))
		}
	}
	return node
}

// Root is the root of a tree of the given depth whose rightmost edge is f
func (f *Frontier) Root(h Hasher, depth uint8) Node {
	return f.rootAt(h, Altitude(depth))
}

// valueAt returns the completed subtree value at alt that ends at the frontier
// position, if any. At altitude 0 that is the right leaf.
func (f *Frontier) valueAt(h Hasher, alt Altitude) (Node, bool) {
	if alt == 0 {
		if f.leaf.kind == LeafRight {
			return f.leaf.values[1], true
		}
		return Node{}, false
	}
	if f.position.isComplete(alt) {
		return f.rootAt(h, alt), true
	}
	return Node{}, false
}

// siblingValue returns the (possibly partial) value of the right sibling of pos
// at alt, when the frontier has reached into that sibling subtree.
func (f *Frontier) siblingValue(h Hasher, pos Position, alt Altitude) (Node, bool) {
	if alt >= 64 || uint64(f.position)>>alt != uint64(pos)>>alt+1 {
		return Node{}, false
	}
	if alt == 0 {
		return f.leaf.Value(), true
	}
	return f.rootAt(h, alt), true
}

package merkle

// AuthenticationPath returns the sibling values, leaf level first, proving the
// leaf at pos against asOfRoot. asOfRoot must be the current root or the root
// at a retained checkpoint taken after pos was appended, and pos must be
// witnessed (or have been witnessed at that checkpoint).
func (t *Tree) AuthenticationPath(pos Position, asOfRoot Node) ([]Node, bool) {
	// earliest matching checkpoint that already contains pos, else the current state
	base := -1
	for i := len(t.checkpoints) - 1; i >= 0; i-- {
		c := t.checkpoints[i]
		cpos, ok := t.checkpointPosition(c)
		if !ok || cpos < pos {
			break
		}
		if t.checkpointRoot(c) == asOfRoot {
			base = i
		}
	}
	if base < 0 && (t.current == nil || t.currentRoot() != asOfRoot) {
		return nil, false
	}

	known := t.witnessed.has(pos)
	if !known && base >= 0 {
		for _, c := range t.checkpoints[base:] {
			if c.forgotten.has(pos) {
				known = true
				break
			}
		}
	}
	if !known {
		return nil, false
	}
	idx, ok := t.bridgeIndex(pos)
	if !ok {
		return nil, false
	}

	// everything appended after pos, up to the chosen state
	var rest *Bridge
	from := idx + 1
	switch {
	case base < 0:
		run := make([]*Bridge, 0, len(t.priorBridges)-from+1)
		run = append(run, t.priorBridges[from:]...)
		rest, ok = fuseAll(append(run, t.current))
	case from < t.checkpoints[base].bridgesLen:
		rest, ok = fuseAll(t.priorBridges[from:t.checkpoints[base].bridgesLen])
	case from == t.checkpoints[base].bridgesLen:
		rest, ok = t.priorBridges[from-1].successor(false), true
	default:
		ok = false
	}
	if !ok {
		return nil, false
	}

	var right []Node
	if frag, found := rest.fragments[pos]; found {
		right = append(right, frag.values...)
		if alt, more := frag.nextRequiredAltitude(); more {
			if v, partial := rest.frontier.siblingValue(t.hasher, pos, alt); partial {
				right = append(right, v)
			}
		}
	}
	nextRight := func(alt Altitude) Node {
		if len(right) == 0 {
			return t.hasher.EmptyRoot(alt)
		}
		v := right[0]
		right = right[1:]
		return v
	}

	frontier := t.priorBridges[idx].frontier
	path := make([]Node, 0, t.depth)
	if frontier.leaf.kind == LeafRight {
		path = append(path, frontier.leaf.values[0])
	} else {
		path = append(path, nextRight(0))
	}
	ommer := 0
	for alt := Altitude(1); alt < Altitude(t.depth); alt++ {
		if pos.bit(alt) {
			path = append(path, frontier.ommers[ommer])
			ommer++
		} else {
			path = append(path, nextRight(alt))
		}
	}
	return path, true
}

// VerifyPath recomputes the root of a depth-level tree from a leaf at pos and
// its authentication path, and compares it with root.
func VerifyPath(h Hasher, depth uint8, pos Position, leaf Node, path []Node, root Node) bool {
	if len(path) != int(depth) || depth > MaxDepth {
		return false
	}
	if depth < 64 && uint64(pos) >= uint64(1)<<depth {
		return false
	}
	node := leaf
	for i, sibling := range path {
		alt := Altitude(i)
		if pos.bit(alt) {
			node = h.Combine(alt, sibling, node)
		} else {
			node = h.Combine(alt, node, sibling)
		}
	}
	return node == root
}

package merkle

import "math/bits"

// Position is the zero-based index of a leaf in append order.
type Position uint64

// Altitude is the height of a node above the leaf layer; leaves are at altitude 0.
type Altitude uint8

// MaxDepth is the deepest tree a Position can address.
const MaxDepth = 64

// maxAltitude is the altitude of the highest set bit, or 0 for position 0.
func (p Position) maxAltitude() Altitude {
	if p == 0 {
		return 0
	}
	return Altitude(63 - bits.LeadingZeros64(uint64(p)))
}

func (p Position) bit(alt Altitude) bool {
	return alt < 64 && (uint64(p)>>alt)&1 == 1
}

// ommerCount is the number of left siblings above the leaf layer on the path to the root.
func (p Position) ommerCount() int {
	return bits.OnesCount64(uint64(p) >> 1)
}

// ommerAltitudes lists, ascending, the altitudes >= 1 at which the path turns left.
func (p Position) ommerAltitudes() []Altitude {
	var out []Altitude
	for alt := Altitude(1); alt <= p.maxAltitude(); alt++ {
		if p.bit(alt) {
			out = append(out, alt)
		}
	}
	return out
}

// requiredAltitudeCount is the number of right siblings an auth path for p needs
// over a full 64 level tree.
func (p Position) requiredAltitudeCount() int {
	return 64 - bits.OnesCount64(uint64(p))
}

// requiredAltitude returns the n-th (zero based) altitude at which p is a left
// child, i.e. whose sibling lies to the right and is observed later.
func (p Position) requiredAltitude(n int) (Altitude, bool) {
	for alt := 0; alt < 64; alt++ {
		if !p.bit(Altitude(alt)) {
			if n == 0 {
				return Altitude(alt), true
			}
			n--
		}
	}
	return 0, false
}

// isComplete reports whether the subtree of height alt containing p ends at p.
func (p Position) isComplete(alt Altitude) bool {
	if alt >= 64 {
		return uint64(p) == ^uint64(0)
	}
	mask := uint64(1)<<alt - 1
	return uint64(p)&mask == mask
}

// completedAltitudeCount is the number of required altitudes of p whose right
// sibling subtree is complete once the leaf at f has been appended.
func (p Position) completedAltitudeCount(f Position) int {
	n := 0
	for {
		alt, ok := p.requiredAltitude(n)
		if !ok {
			return n
		}
		start := (uint64(p)>>alt | 1) << alt
		if uint64(f) < start || uint64(f)-start < uint64(1)<<alt-1 {
			return n
		}
		n++
	}
}

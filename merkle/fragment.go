package merkle

import (
	"fmt"
	"slices"
)

// AuthFragment accumulates, for one tracked leaf, the right-hand sibling values
// of its authentication path as they become complete.
type AuthFragment struct {
	position Position
	// number of required altitudes observed by this fragment and the fragments
	// of earlier bridges for the same position
	altitudesObserved int
	// values observed by this fragment only
	values []Node
}

func newAuthFragment(position Position) *AuthFragment {
	return &AuthFragment{position: position}
}

// NewAuthFragmentFromParts validates and assembles a fragment.
func NewAuthFragmentFromParts(position Position, altitudesObserved uint64, values []Node) (*AuthFragment, error) {
	if altitudesObserved > uint64(position.requiredAltitudeCount()) {
		return nil, fmt.Errorf("%w: position %d cannot observe %d altitudes",
			ErrFragmentAltitudes, position, altitudesObserved)
	}
	if uint64(len(values)) > altitudesObserved {
		return nil, fmt.Errorf("%w: %d values for %d observed altitudes",
			ErrFragmentAltitudes, len(values), altitudesObserved)
	}
	return &AuthFragment{
		position:          position,
		altitudesObserved: int(altitudesObserved),
		values:            slices.Clone(values),
	}, nil
}

func (a *AuthFragment) Position() Position {
	return a.position
}

func (a *AuthFragment) AltitudesObserved() int {
	return a.altitudesObserved
}

func (a *AuthFragment) Values() []Node {
	return slices.Clone(a.values)
}

func (a *AuthFragment) clone() *AuthFragment {
	c := *a
	c.values = slices.Clone(a.values)
	return &c
}

// successor carries the observation count into the next bridge with no values
func (a *AuthFragment) successor() *AuthFragment {
	return &AuthFragment{position: a.position, altitudesObserved: a.altitudesObserved}
}

func (a *AuthFragment) nextRequiredAltitude() (Altitude, bool) {
	return a.position.requiredAltitude(a.altitudesObserved)
}

// augment records the next required sibling if the frontier just completed it
func (a *AuthFragment) augment(h Hasher, f *Frontier) {
	alt, ok := a.nextRequiredAltitude()
	if !ok {
		return
	}
	if v, ok := f.valueAt(h, alt); ok {
		a.values = append(a.values, v)
		a.altitudesObserved++
	}
}

// fuse joins a fragment with its continuation from the following bridge
func (a *AuthFragment) fuse(next *AuthFragment) (*AuthFragment, bool) {
	if a.position != next.position || a.altitudesObserved+len(next.values) != next.altitudesObserved {
		return nil, false
	}
	values := make([]Node, 0, len(a.values)+len(next.values))
	values = append(values, a.values...)
	values = append(values, next.values...)
	return &AuthFragment{
		position:          a.position,
		altitudesObserved: next.altitudesObserved,
		values:            values,
	}, true
}

package merkle

import "errors"

var (
	ErrEmptyTree              = errors.New("tree is empty")
	ErrPositionNotWitnessable = errors.New("only the most recently appended leaf can be witnessed")

	ErrNilFrontier        = errors.New("bridge has no frontier")
	ErrLeafParity         = errors.New("leaf kind does not match position parity")
	ErrOmmerCount         = errors.New("ommer count does not match position")
	ErrFragmentAltitudes  = errors.New("auth fragment altitude data inconsistent with its position")
	ErrFragmentOrder      = errors.New("auth fragments not strictly ascending by position")
	ErrFragmentPosition   = errors.New("auth fragment tracks a position beyond the bridge frontier")
	ErrBridgePosition     = errors.New("bridge frontier precedes its prior position")
	ErrDiscontinuity      = errors.New("bridges are not contiguous")
	ErrCheckpointMismatch = errors.New("checkpoint inconsistent with tree")
	ErrWitnessMismatch    = errors.New("witnessed position does not match a frozen bridge")
	ErrUnsortedSet        = errors.New("position set not strictly ascending")
	ErrTreeParameters     = errors.New("invalid tree parameters")
)

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the stores and codecs
type ErrorKind string

const (
	// KindStorage is an underlying persistent engine failure (I/O, engine fault)
	KindStorage ErrorKind = "storage_error"

	// KindCodec means bytes are present but are not a well-formed encoding
	KindCodec ErrorKind = "codec_error"

	// KindReconstruction means bytes are well-typed but describe a value that
	// violates the target structure's invariants
	KindReconstruction ErrorKind = "reconstruction_error"
)

var (
	ErrInvalidDiscriminant = stderrors.New("invalid discriminant")
	ErrTrailingBytes       = stderrors.New("trailing bytes after value")
	ErrUnsupportedVersion  = stderrors.New("unsupported encoding version")
)

// StoreError is the typed error returned by every store and codec operation
type StoreError struct {
	Kind ErrorKind `json:"code"`
	Op   string    `json:"op"`
	Err  error     `json:"-"`
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Message returns the underlying cause as text, for JSON output
func (e *StoreError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	// an already classified error keeps its kind
	var se *StoreError
	if stderrors.As(err, &se) {
		return err
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// Storage wraps an engine failure. Returns nil when err is nil.
func Storage(op string, err error) error {
	return newError(KindStorage, op, err)
}

// Codec wraps a framing/decoding failure. Returns nil when err is nil.
func Codec(op string, err error) error {
	return newError(KindCodec, op, err)
}

// Reconstruction wraps a structural validation failure. Returns nil when err is nil.
func Reconstruction(op string, err error) error {
	return newError(KindReconstruction, op, err)
}

func kindOf(err error) (ErrorKind, bool) {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func IsStorage(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindStorage
}

func IsCodec(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindCodec
}

func IsReconstruction(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindReconstruction
}

// Re-exported so callers need a single errors import.
var (
	Is  = stderrors.Is
	As  = stderrors.As
	New = stderrors.New
)

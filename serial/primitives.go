// Package serial holds the canonical binary encodings of persisted values.
// Every value is framed with RLP: scalars are RLP integers, booleans and byte
// strings; aggregates are RLP lists in original order.
package serial

import (
	"bytes"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/mezonai/chainstore/errors"
	"github.com/mezonai/chainstore/merkle"
)

func writeNode(w rlp.EncoderBuffer, n merkle.Node) {
	w.WriteBytes(n[:])
}

func readNode(s *rlp.Stream) (merkle.Node, error) {
	var n merkle.Node
	err := s.ReadBytes(n[:])
	return n, err
}

func writeNodes(w rlp.EncoderBuffer, nodes []merkle.Node) {
	idx := w.List()
	for _, n := range nodes {
		writeNode(w, n)
	}
	w.ListEnd(idx)
}

func readNodes(s *rlp.Stream) ([]merkle.Node, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var out []merkle.Node
	for {
		n, err := readNode(s)
		if err == rlp.EOL {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, s.ListEnd()
}

func writePositions(w rlp.EncoderBuffer, ps []merkle.Position) {
	idx := w.List()
	for _, p := range ps {
		w.WriteUint64(uint64(p))
	}
	w.ListEnd(idx)
}

func readPositions(s *rlp.Stream) ([]merkle.Position, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var out []merkle.Position
	for {
		v, err := s.Uint64()
		if err == rlp.EOL {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, merkle.Position(v))
	}
	return out, s.ListEnd()
}

// readList decodes list elements with fn until the list is exhausted
func readList[T any](s *rlp.Stream, fn func(*rlp.Stream) (T, error)) ([]T, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var out []T
	for {
		if _, _, err := s.Kind(); err == rlp.EOL {
			break
		} else if err != nil {
			return nil, err
		}
		v, err := fn(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, s.ListEnd()
}

func encode(fn func(w rlp.EncoderBuffer)) []byte {
	w := rlp.NewEncoderBuffer(nil)
	defer w.Flush()
	fn(w)
	return w.ToBytes()
}

// decode runs fn over data and rejects input left over after the value.
// Framing failures are reported as codec errors; fn may return an already
// classified error (e.g. a reconstruction error) which is kept as is.
func decode(op string, data []byte, fn func(s *rlp.Stream) error) error {
	s := rlp.NewStream(bytes.NewReader(data), uint64(len(data)))
	if err := fn(s); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Codec(op, err)
	}
	if _, _, err := s.Kind(); err != io.EOF {
		return errors.Codec(op, errors.ErrTrailingBytes)
	}
	return nil
}

package daemon

import (
	"encoding/binary"
	"io"

	"gitlab.com/tozd/go/errors"
)

// ErrFrameTooLarge is returned by ReadFrame when the announced length is
// over the limit.
var ErrFrameTooLarge = errors.New("frame too large")

// ErrEmptyFrame is returned by ReadFrame for a zero length header.
var ErrEmptyFrame = errors.New("empty frame")

// ReadFrame reads one 4-byte big-endian length followed by that many bytes.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, errors.WithStack(ErrEmptyFrame)
	}
	if max > 0 && uint64(n) > uint64(max) {
		return nil, errors.Errorf("%w: %d bytes over the %d byte limit", ErrFrameTooLarge, n, max)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Errorf("reading %d byte frame: %w", n, err)
	}
	return payload, nil
}

func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Errorf("writing frame: %w", err)
	}
	return nil
}

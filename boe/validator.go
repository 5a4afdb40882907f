package boe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNilFrame       = errors.New("frame is nil")
	ErrFrameTooShort  = errors.New("frame is shorter than the fixed header")
	ErrFrameTooLong   = errors.New("frame exceeds maximum wire length")
	ErrLengthMismatch = errors.New("length field mismatch")
)

// ValidateFrame is the pre-dispatch gate every inbound frame passes before
// type-specific decoding. Checks run in order and the first failure wins:
// non-nil, start marker, total length within [4, 65535], length field
// consistent with the actual payload size.
func ValidateFrame(frame []byte) error {
	if frame == nil {
		return ErrNilFrame
	}
	if len(frame) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(frame))
	}
	if frame[0] != startMarker0 || frame[1] != startMarker1 {
		return fmt.Errorf("%w: 0x%02X 0x%02X", ErrInvalidMarker, frame[0], frame[1])
	}
	if len(frame) > 0xFFFF {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLong, len(frame))
	}

	want := uint16(len(frame) - HeaderSize + 2)
	got := binary.LittleEndian.Uint16(frame[2:4])
	if got != want {
		return fmt.Errorf("%w: field %d, expected %d", ErrLengthMismatch, got, want)
	}
	return nil
}

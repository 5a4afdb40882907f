package boe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame layout: [0xBA][0xBA][uint16 length LE][payload], where the length
// field counts itself plus the payload (2 + len(payload)). All integers in
// this package are little-endian.
const (
	startMarker0 = 0xBA
	startMarker1 = 0xBA

	// HeaderSize is the fixed size of the frame header (marker + length field).
	HeaderSize = 4

	// MaxPayloadSize is the largest payload a single frame can carry.
	MaxPayloadSize = 0xFFFF - 2
)

var (
	ErrEmptyPayload    = errors.New("payload is empty")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum frame size")
	ErrInvalidMarker   = errors.New("invalid start marker")
	ErrBadLengthField  = errors.New("length field is out of range")
)

// Codec frames and unframes messages on a byte stream. It keeps no state
// between calls; a single instance is constructed by the composition root and
// shared by every connection.
type Codec struct{}

// NewCodec creates a new codec instance.
func NewCodec() *Codec {
	return &Codec{}
}

// EncodeFrame wraps payload into a wire frame. The payload must be non-empty
// and small enough for the 2-byte length field.
func (c *Codec) EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frame := make([]byte, HeaderSize+len(payload))
	frame[0] = startMarker0
	frame[1] = startMarker1
	binary.LittleEndian.PutUint16(frame[2:4], uint16(2+len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// DecodeFrame reads exactly one frame from r and returns it, header included.
// Short reads are retried until the frame is complete; a stream that ends
// mid-frame yields io.ErrUnexpectedEOF, a stream that ends cleanly before the
// first marker byte yields io.EOF.
func (c *Codec) DecodeFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:2]); err != nil {
		return nil, err
	}
	if header[0] != startMarker0 || header[1] != startMarker1 {
		return nil, fmt.Errorf("%w: 0x%02X 0x%02X", ErrInvalidMarker, header[0], header[1])
	}

	if _, err := io.ReadFull(r, header[2:4]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint16(header[2:4])
	if length < 2 {
		return nil, fmt.Errorf("%w: %d", ErrBadLengthField, length)
	}

	frame := make([]byte, HeaderSize+int(length)-2)
	copy(frame, header[:])
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// Payload returns the payload portion of a complete frame.
func Payload(frame []byte) []byte {
	if len(frame) < HeaderSize {
		return nil
	}
	return frame[HeaderSize:]
}

package boe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"nil frame", nil, ErrNilFrame},
		{"too short", []byte{0xBA, 0xBA, 0x02}, ErrFrameTooShort},
		{"bad marker", []byte{0x00, 0x00, 0x04, 0x00}, ErrInvalidMarker},
		{"empty payload ok", []byte{0xBA, 0xBA, 0x02, 0x00}, nil},
		{"length field mismatch", []byte{0xBA, 0xBA, 0x05, 0x00, 0x01}, ErrLengthMismatch},
		{"one byte payload ok", []byte{0xBA, 0xBA, 0x03, 0x00, 0x01}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFrame(tt.frame)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestValidateFrameAcceptsEncoderOutput(t *testing.T) {
	codec := NewCodec()

	msg := &ClientHeartbeat{Seq: 7}
	payload, err := msg.MarshalBinary()
	assert.NoError(t, err)

	frame, err := codec.EncodeFrame(payload)
	assert.NoError(t, err)
	assert.NoError(t, ValidateFrame(frame))
}

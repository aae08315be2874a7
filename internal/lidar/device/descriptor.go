package device

import (
	"encoding/binary"
	"fmt"
)

// SendMode says whether a command produces one response or a stream of them.
type SendMode uint8

const (
	SendModeSingle SendMode = 0
	SendModeMulti  SendMode = 1
)

func (m SendMode) String() string {
	switch m {
	case SendModeSingle:
		return "single"
	case SendModeMulti:
		return "multi"
	default:
		return fmt.Sprintf("SendMode(%d)", uint8(m))
	}
}

// ResponseDescriptor is the header the sensor sends ahead of every response.
type ResponseDescriptor struct {
	Length   uint32
	SendMode SendMode
	DataType byte
}

// ParseResponseDescriptor decodes the first DESCRIPTOR_SIZE bytes of b.
// The length is masked to 14 bits and the send mode is taken from the low two
// bits of byte 5, matching the sensors this driver talks to.
func ParseResponseDescriptor(b []byte) (ResponseDescriptor, error) {
	if len(b) < DESCRIPTOR_SIZE {
		return ResponseDescriptor{}, fmt.Errorf("%w: %d bytes, need %d", ErrMalformedDescriptor, len(b), DESCRIPTOR_SIZE)
	}
	if b[0] != REQUEST_SYNC || b[1] != RESPONSE_SYNC {
		return ResponseDescriptor{}, fmt.Errorf("%w: sync % x", ErrMalformedDescriptor, b[0:2])
	}

	mode := b[5] & SEND_MODE_MASK
	if mode != uint8(SendModeSingle) && mode != uint8(SendModeMulti) {
		return ResponseDescriptor{}, &InvalidSendModeError{Mode: mode}
	}

	return ResponseDescriptor{
		Length:   binary.LittleEndian.Uint32(b[2:6]) & DESCRIPTOR_LENGTH_MASK,
		SendMode: SendMode(mode),
		DataType: b[6],
	}, nil
}

package parse

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameSize is returned when a frame is not exactly FRAME_SIZE bytes.
	ErrFrameSize = errors.New("invalid express scan frame size")

	// ErrPipelineFailed is returned by a pipeline that has already hit a
	// fatal decode error. Reset must be called before it decodes again.
	ErrPipelineFailed = errors.New("scan decode pipeline failed")
)

// FramingError reports a frame whose sync nibbles do not form FRAME_SYNC.
// The byte stream is desynchronised.
type FramingError struct {
	Sync byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("express scan sync mismatch: got 0x%02x, want 0x%02x", e.Sync, FRAME_SYNC)
}

// IntegrityError reports a frame whose packed checksum does not match the
// XOR of its payload.
type IntegrityError struct {
	Want byte // checksum carried in the header
	Got  byte // checksum computed over the payload
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("express scan checksum mismatch: header 0x%02x, computed 0x%02x", e.Want, e.Got)
}

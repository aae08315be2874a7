package parse

import (
	"encoding/binary"
	"fmt"
	"time"
)

/*
Express Scan (extended / "ultra capsule") frame layout

The sensor streams fixed 132-byte frames once the express scan has been
started. All multi-byte fields are little-endian.

	byte 0      high nibble: sync1 (0xA), low nibble: checksum bits 0-3
	byte 1      high nibble: sync2 (0x5), low nibble: checksum bits 4-7
	bytes 2-3   start angle in 1/64 degree (15 bits); bit 15 is the
	            start-of-new-revolution flag
	bytes 4-131 32 cabins x 4 bytes

The checksum is the XOR of bytes 2..131. The start angle marks the beginning
of the sweep covered by this frame's cabins; the end of the sweep is only
known once the next frame arrives, which is why decoding lags one frame.
*/

// Express scan frame constants.
const (
	FRAME_SIZE        = 132  // bytes per express scan frame
	FRAME_HEADER_SIZE = 4    // sync/checksum + start angle
	FRAME_SYNC        = 0xA5 // sync1<<4 | sync2
	CABINS_PER_FRAME  = 32
	CABIN_SIZE        = 4
	SAMPLES_PER_CABIN = 3
	SAMPLES_PER_FRAME = CABINS_PER_FRAME * SAMPLES_PER_CABIN // 96

	START_FLAG_MASK  = 0x80   // in byte 3
	START_ANGLE_MASK = 0x7FFF // after the flag is removed

	// Angles are expressed in 1/64 degree; a full turn is 360*64 units.
	ANGLE_UNITS_PER_DEGREE = 64
	ANGLE_FULL_TURN        = 360 * ANGLE_UNITS_PER_DEGREE // 23040

	// Distances are emitted in 1/4 millimetre.
	DISTANCE_UNITS_PER_MM = 4
)

// ScanPacket is one decoded express scan frame.
type ScanPacket struct {
	CapturedAt        time.Time
	StartOfRevolution bool
	StartAngleQ6      uint16 // 1/64 degree
	Cabins            [CABINS_PER_FRAME]uint32
}

// StartAngleDegrees returns the start angle in degrees.
func (p *ScanPacket) StartAngleDegrees() float64 {
	return float64(p.StartAngleQ6) / ANGLE_UNITS_PER_DEGREE
}

// DecodeFrame validates and unpacks a raw 132-byte frame. The sync byte is
// checked before the checksum, and a frame failing either check is never
// decoded further.
func DecodeFrame(frame []byte, capturedAt time.Time) (*ScanPacket, error) {
	if len(frame) != FRAME_SIZE {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(frame), FRAME_SIZE)
	}

	sync := (frame[0] & 0xF0) | (frame[1] >> 4)
	if sync != FRAME_SYNC {
		return nil, &FramingError{Sync: sync}
	}

	want := (frame[0] & 0x0F) | (frame[1] << 4)
	got := FrameChecksum(frame)
	if want != got {
		return nil, &IntegrityError{Want: want, Got: got}
	}

	packet := &ScanPacket{
		CapturedAt:        capturedAt,
		StartOfRevolution: frame[3]&START_FLAG_MASK != 0,
		StartAngleQ6:      binary.LittleEndian.Uint16(frame[2:4]) & START_ANGLE_MASK,
	}

	for i := 0; i < CABINS_PER_FRAME; i++ {
		offset := FRAME_HEADER_SIZE + i*CABIN_SIZE
		packet.Cabins[i] = binary.LittleEndian.Uint32(frame[offset : offset+CABIN_SIZE])
	}

	return packet, nil
}

// FrameChecksum returns the XOR of every byte after the sync/checksum header.
func FrameChecksum(frame []byte) byte {
	var sum byte
	for _, b := range frame[2:] {
		sum ^= b
	}
	return sum
}

// EncodeFrame builds a wire frame from a packet, computing sync and checksum.
// It is the inverse of DecodeFrame and is used by simulators and tests.
func EncodeFrame(p *ScanPacket) []byte {
	frame := make([]byte, FRAME_SIZE)

	angle := p.StartAngleQ6 & START_ANGLE_MASK
	binary.LittleEndian.PutUint16(frame[2:4], angle)
	if p.StartOfRevolution {
		frame[3] |= START_FLAG_MASK
	}
	for i, cabin := range p.Cabins {
		offset := FRAME_HEADER_SIZE + i*CABIN_SIZE
		binary.LittleEndian.PutUint32(frame[offset:offset+CABIN_SIZE], cabin)
	}

	sum := FrameChecksum(frame)
	frame[0] = (FRAME_SYNC & 0xF0) | (sum & 0x0F)
	frame[1] = ((FRAME_SYNC & 0x0F) << 4) | (sum >> 4)
	return frame
}

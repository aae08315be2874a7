package device

import "encoding/binary"

// Request and response framing.
//
// Request layout:
//
//	Byte 0    : REQUEST_SYNC (0xA5)
//	Byte 1    : command
//	Byte 2    : payload size (only for commands carrying a payload)
//	Bytes 3..N: payload
//	Byte N+1  : XOR of every preceding byte
//
// Every response starts with a 7 byte descriptor:
//
//	Bytes 0-1 : A5 5A
//	Bytes 2-5 : little-endian uint32 length, masked to its low 14 bits
//	Byte 5    : low 2 bits carry the send mode
//	Byte 6    : data type
const (
	REQUEST_SYNC    = 0xA5
	RESPONSE_SYNC   = 0x5A
	DESCRIPTOR_SIZE = 7

	CMD_STOP           = 0x25
	CMD_GET_INFO       = 0x50
	CMD_GET_HEALTH     = 0x52
	CMD_VENDOR_STATUS  = 0x79 // undocumented; the sensor answers with a 15 byte status block
	CMD_EXPRESS_SCAN   = 0x82
	CMD_GET_LIDAR_CONF = 0x84

	CONF_SCAN_MODE_US_PER_SAMPLE = 0x71
	CONF_SCAN_MODE_MAX_DISTANCE  = 0x74
	CONF_SCAN_MODE_ANS_TYPE      = 0x75
	CONF_SCAN_MODE_NAME          = 0x7F

	// SCAN_MODE_SENSITIVITY is the express-scan working mode that streams
	// 132 byte dense-cabin frames.
	SCAN_MODE_SENSITIVITY = 3

	DATA_TYPE_HEALTH      = 0x06
	DATA_TYPE_INFO        = 0x04
	DATA_TYPE_LIDAR_CONF  = 0x20
	DATA_TYPE_EXPRESS_EXT = 0x84

	DESCRIPTOR_LENGTH_MASK = 0x3FFF
	SEND_MODE_MASK         = 0x03
)

// Request builds a command packet. Commands without a payload are sent as the
// bare two byte form.
func Request(cmd byte, payload []byte) []byte {
	if len(payload) == 0 {
		return []byte{REQUEST_SYNC, cmd}
	}

	out := make([]byte, 0, len(payload)+4)
	out = append(out, REQUEST_SYNC, cmd, byte(len(payload)))
	out = append(out, payload...)

	var sum byte
	for _, b := range out {
		sum ^= b
	}
	return append(out, sum)
}

// LidarConfRequest asks for one configuration entry of a scan mode.
func LidarConfRequest(confType uint32, scanMode uint16) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint32(payload[0:4], confType)
	binary.LittleEndian.PutUint16(payload[4:6], scanMode)
	return Request(CMD_GET_LIDAR_CONF, payload)
}

// ExpressScanRequest starts extended express-scan streaming in mode.
func ExpressScanRequest(mode byte) []byte {
	return Request(CMD_EXPRESS_SCAN, []byte{mode, 0, 0, 0, 0})
}

package device

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Info is the identity block returned by CMD_GET_INFO.
type Info struct {
	Model         uint8
	FirmwareMajor uint8
	FirmwareMinor uint8
	Hardware      uint8
	SerialNumber  string
}

// Firmware formats the firmware version as major.minor.
func (i Info) Firmware() string {
	return fmt.Sprintf("%d.%02d", i.FirmwareMajor, i.FirmwareMinor)
}

// ParseInfo decodes a full CMD_GET_INFO response, descriptor included.
//
//	Byte 0     : model
//	Byte 1     : firmware minor
//	Byte 2     : firmware major
//	Byte 3     : hardware revision
//	Bytes 4-19 : serial number
func ParseInfo(resp []byte) (Info, error) {
	body, err := responseBody(resp, DATA_TYPE_INFO, 20)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Model:         body[0],
		FirmwareMinor: body[1],
		FirmwareMajor: body[2],
		Hardware:      body[3],
		SerialNumber:  strings.ToUpper(hex.EncodeToString(body[4:20])),
	}, nil
}

// HealthStatus is the sensor's self-reported condition.
type HealthStatus uint8

const (
	HealthGood    HealthStatus = 0
	HealthWarning HealthStatus = 1
	HealthError   HealthStatus = 2
)

func (s HealthStatus) String() string {
	switch s {
	case HealthGood:
		return "good"
	case HealthWarning:
		return "warning"
	case HealthError:
		return "error"
	default:
		return fmt.Sprintf("HealthStatus(%d)", uint8(s))
	}
}

// Health is the CMD_GET_HEALTH result.
type Health struct {
	Status    HealthStatus
	ErrorCode uint16
}

// ParseHealth decodes a full CMD_GET_HEALTH response.
func ParseHealth(resp []byte) (Health, error) {
	body, err := responseBody(resp, DATA_TYPE_HEALTH, 3)
	if err != nil {
		return Health{}, err
	}
	return Health{
		Status:    HealthStatus(body[0]),
		ErrorCode: binary.LittleEndian.Uint16(body[1:3]),
	}, nil
}

// ScanMode describes the scan mode the sensor streams in, assembled from
// CMD_GET_LIDAR_CONF answers.
type ScanMode struct {
	ID              uint16
	Name            string
	MicrosPerSample float64
	MaxDistanceM    float64
	AnswerType      byte
}

// confValue returns the value bytes of a CMD_GET_LIDAR_CONF response after
// checking it answers confType.
func confValue(resp []byte, confType uint32) ([]byte, error) {
	body, err := responseBody(resp, DATA_TYPE_LIDAR_CONF, 5)
	if err != nil {
		return nil, err
	}
	if got := binary.LittleEndian.Uint32(body[0:4]); got != confType {
		return nil, fmt.Errorf("%w: conf type 0x%02x, want 0x%02x", ErrMalformedResponse, got, confType)
	}
	return body[4:], nil
}

// applyConf folds one CMD_GET_LIDAR_CONF response into m.
func (m *ScanMode) applyConf(resp []byte, confType uint32) error {
	value, err := confValue(resp, confType)
	if err != nil {
		return err
	}

	switch confType {
	case CONF_SCAN_MODE_US_PER_SAMPLE, CONF_SCAN_MODE_MAX_DISTANCE:
		if len(value) < 4 {
			return fmt.Errorf("%w: conf 0x%02x value has %d bytes", ErrMalformedResponse, confType, len(value))
		}
		q8 := float64(binary.LittleEndian.Uint32(value[0:4])) / 256
		if confType == CONF_SCAN_MODE_US_PER_SAMPLE {
			m.MicrosPerSample = q8
		} else {
			m.MaxDistanceM = q8
		}
	case CONF_SCAN_MODE_ANS_TYPE:
		m.AnswerType = value[0]
	case CONF_SCAN_MODE_NAME:
		if i := bytes.IndexByte(value, 0); i >= 0 {
			value = value[:i]
		}
		m.Name = string(value)
	}
	return nil
}

// responseBody validates the descriptor of resp and returns the payload that
// follows it, which must hold at least need bytes.
func responseBody(resp []byte, dataType byte, need int) ([]byte, error) {
	desc, err := ParseResponseDescriptor(resp)
	if err != nil {
		return nil, err
	}
	if desc.DataType != dataType {
		return nil, fmt.Errorf("%w: data type 0x%02x, want 0x%02x", ErrMalformedResponse, desc.DataType, dataType)
	}
	body := resp[DESCRIPTOR_SIZE:]
	if len(body) < need {
		return nil, fmt.Errorf("%w: %d payload bytes, need %d", ErrMalformedResponse, len(body), need)
	}
	return body, nil
}

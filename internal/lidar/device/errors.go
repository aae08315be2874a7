package device

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDescriptor is returned when a response descriptor is too
	// short or does not start with the A5 5A response sync.
	ErrMalformedDescriptor = errors.New("malformed response descriptor")

	// ErrUnexpectedScanMode is returned when the sensor acknowledges the scan
	// request with a descriptor other than the express-scan frame format.
	ErrUnexpectedScanMode = errors.New("sensor did not enter express scan mode")

	// ErrMalformedResponse is returned when a response payload is too short
	// for the structure it should carry.
	ErrMalformedResponse = errors.New("malformed response payload")
)

// IOError wraps a transport failure with the operation that was running.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("lidar %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ProtocolMismatchError reports a handshake response that differed from the
// fixed byte sequence the sensor is documented to send.
type ProtocolMismatchError struct {
	Step string
	Want []byte
	Got  []byte
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("lidar %s: unexpected response % x, want % x", e.Step, e.Got, e.Want)
}

// InvalidSendModeError reports a response descriptor whose send-mode field is
// neither single nor multi.
type InvalidSendModeError struct {
	Mode uint8
}

func (e *InvalidSendModeError) Error() string {
	return fmt.Sprintf("invalid response send mode %d", e.Mode)
}

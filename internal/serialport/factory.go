package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/banshee-data/rplidar.report/internal/monitoring"
)

// RealSerialPortFactory opens hardware ports through go.bug.st/serial.
type RealSerialPortFactory struct{}

// Open opens the serial device at path.
func (RealSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Open opens path through factory and wraps it in a buffered Port.
func Open(factory SerialPortFactory, path string, opts PortOptions) (*Port, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	raw, err := factory.Open(path, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	monitoring.Logf("opened serial port %s at %d baud", path, normalized.BaudRate)
	return NewPort(raw, normalized), nil
}

// ListPorts returns the serial devices present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

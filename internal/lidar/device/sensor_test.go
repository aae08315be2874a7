package device

import (
	"bytes"
	"testing"
	"time"

	"github.com/banshee-data/rplidar.report/internal/serialport"
	"github.com/banshee-data/rplidar.report/internal/timeutil"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeSensor answers handshake requests the way a healthy sensor does.
type fakeSensor struct {
	replies map[string][]byte

	// badHealth and silentHealth make the first N health requests fail
	// with a wrong answer or no answer at all.
	badHealth    int
	silentHealth int
	healthCalls  int

	requests [][]byte
}

func newFakeSensor() *fakeSensor {
	s := &fakeSensor{replies: map[string][]byte{}}
	health := HealthExchange()
	s.replies[string(health.Request)] = health.Expected
	for _, ex := range DefaultScript() {
		s.replies[string(ex.Request)] = ex.Expected
	}
	return s
}

func (s *fakeSensor) respond(req []byte) []byte {
	s.requests = append(s.requests, req)

	if bytes.Equal(req, HealthExchange().Request) {
		s.healthCalls++
		if s.healthCalls <= s.silentHealth {
			return nil
		}
		if s.healthCalls <= s.silentHealth+s.badHealth {
			return []byte{0xa5, 0x5a, 0x03, 0x00, 0x00, 0x00, 0x06, 0x02, 0x01, 0x80}
		}
	}
	return s.replies[string(req)]
}

// newTestRig wires a fake sensor to a buffered port on a mock clock.
func newTestRig(t *testing.T) (*fakeSensor, *serialport.Port, *serialport.TestableSerialPort, *timeutil.MockClock) {
	t.Helper()
	sensor := newFakeSensor()
	raw := serialport.NewTestableSerialPort()
	raw.OnWrite = sensor.respond

	clock := timeutil.NewMockClock(testEpoch)
	port := serialport.NewPort(raw, serialport.PortOptions{ReadTimeout: 50 * time.Millisecond})
	port.SetClock(clock)
	return sensor, port, raw, clock
}

package device

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rplidar.report/internal/serialport"
)

func TestInitializerRun(t *testing.T) {
	sensor, port, raw, clock := newTestRig(t)

	hs, err := NewInitializer(port, clock, DefaultOptions()).Run()
	require.NoError(t, err)

	want := &Handshake{
		Health: Health{Status: HealthGood},
		Info: Info{
			Model:         0x18,
			FirmwareMajor: 1,
			FirmwareMinor: 0x1d,
			Hardware:      7,
			SerialNumber:  "D98A99F6C9E59AD2C5E59CF725583412",
		},
		ScanMode: ScanMode{
			ID:              SCAN_MODE_SENSITIVITY,
			Name:            "Sensitivity",
			MicrosPerSample: 127,
			MaxDistanceM:    12,
			AnswerType:      DATA_TYPE_EXPRESS_EXT,
		},
		Descriptor:     ResponseDescriptor{Length: 132, SendMode: SendModeSingle, DataType: 0x84},
		HealthAttempts: 1,
	}
	if diff := cmp.Diff(want, hs); diff != "" {
		t.Errorf("handshake mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "1.29", hs.Info.Firmware())

	wantRequests := [][]byte{
		{0xa5, 0x25},
		{0xa5, 0x52},
		{0xa5, 0x50},
		{0xa5, 0x84, 0x06, 0x71, 0x00, 0x00, 0x00, 0x03, 0x00, 0x55},
		{0xa5, 0x84, 0x06, 0x74, 0x00, 0x00, 0x00, 0x03, 0x00, 0x50},
		{0xa5, 0x84, 0x06, 0x75, 0x00, 0x00, 0x00, 0x03, 0x00, 0x51},
		{0xa5, 0x84, 0x06, 0x7f, 0x00, 0x00, 0x00, 0x03, 0x00, 0x5b},
		{0xa5, 0x79},
		{0xa5, 0x82, 0x05, 0x03, 0x00, 0x00, 0x00, 0x00, 0x21},
	}
	if diff := cmp.Diff(wantRequests, sensor.requests); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []time.Duration{800 * time.Millisecond, 500 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, 1, raw.ResetCalls)
	assert.Zero(t, port.Buffered())
}

func TestInitializerHealthRetries(t *testing.T) {
	sensor, port, raw, clock := newTestRig(t)
	sensor.badHealth = 3

	hs, err := NewInitializer(port, clock, DefaultOptions()).Run()
	require.NoError(t, err)
	assert.Equal(t, 4, hs.HealthAttempts)
	assert.Equal(t, 4, sensor.healthCalls)
	assert.Equal(t, 1+3, raw.ResetCalls, "input is cleared after every failed health check")

	retryDelays := 0
	for _, d := range clock.Sleeps() {
		if d == 100*time.Millisecond {
			retryDelays++
		}
	}
	assert.Equal(t, 3, retryDelays)
}

func TestInitializerHealthRecoversFromTimeouts(t *testing.T) {
	sensor, port, _, clock := newTestRig(t)
	sensor.silentHealth = 2

	hs, err := NewInitializer(port, clock, DefaultOptions()).Run()
	require.NoError(t, err)
	assert.Equal(t, 3, hs.HealthAttempts)
}

func TestInitializerHealthExhausted(t *testing.T) {
	sensor, port, _, clock := newTestRig(t)
	sensor.badHealth = 100

	opts := DefaultOptions()
	hs, err := NewInitializer(port, clock, opts).Run()
	require.Error(t, err)

	var mismatch *ProtocolMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, StepHealth, mismatch.Step)
	assert.Equal(t, HealthExchange().Expected, mismatch.Want)
	assert.Equal(t, byte(0x02), mismatch.Got[7])
	assert.Equal(t, opts.HealthRetries, sensor.healthCalls)
	assert.Equal(t, opts.HealthRetries, hs.HealthAttempts)
	assert.Len(t, sensor.requests, 1+opts.HealthRetries, "nothing after the health check is sent")
}

func TestInitializerHealthExhaustedByTimeouts(t *testing.T) {
	sensor, port, _, clock := newTestRig(t)
	sensor.silentHealth = 100

	opts := DefaultOptions()
	opts.HealthRetries = 3
	_, err := NewInitializer(port, clock, opts).Run()

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read "+StepHealth, ioErr.Op)
	assert.ErrorIs(t, err, serialport.ErrReadTimeout)
	assert.Equal(t, 3, sensor.healthCalls)
}

func TestInitializerMismatchAfterHealth(t *testing.T) {
	for _, ex := range DefaultScript() {
		t.Run(ex.Name, func(t *testing.T) {
			sensor, port, _, clock := newTestRig(t)
			wrong := append([]byte(nil), ex.Expected...)
			wrong[len(wrong)-1] ^= 0xFF
			sensor.replies[string(ex.Request)] = wrong

			_, err := NewInitializer(port, clock, DefaultOptions()).Run()

			var mismatch *ProtocolMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, ex.Name, mismatch.Step)
			assert.Equal(t, wrong, mismatch.Got)
			assert.Equal(t, ex.Request, sensor.requests[len(sensor.requests)-1], "handshake stops at the failing step")
		})
	}
}

func TestInitializerInvalidSendMode(t *testing.T) {
	sensor, port, _, clock := newTestRig(t)

	start := ExpressScanRequest(SCAN_MODE_SENSITIVITY)
	reply := []byte{0xa5, 0x5a, 0x84, 0x00, 0x00, 0x42, 0x84}
	sensor.replies[string(start)] = reply

	opts := DefaultOptions()
	opts.Script = DefaultScript()
	opts.Script[len(opts.Script)-1].Expected = reply

	_, err := NewInitializer(port, clock, opts).Run()
	var modeErr *InvalidSendModeError
	require.ErrorAs(t, err, &modeErr)
	assert.Equal(t, uint8(2), modeErr.Mode)
}

func TestInitializerUnexpectedScanMode(t *testing.T) {
	sensor, port, _, clock := newTestRig(t)

	start := ExpressScanRequest(SCAN_MODE_SENSITIVITY)
	reply := []byte{0xa5, 0x5a, 0x54, 0x00, 0x00, 0x40, 0x82}
	sensor.replies[string(start)] = reply

	opts := DefaultOptions()
	opts.Script = DefaultScript()
	opts.Script[len(opts.Script)-1].Expected = reply

	hs, err := NewInitializer(port, clock, opts).Run()
	assert.ErrorIs(t, err, ErrUnexpectedScanMode)
	assert.Equal(t, uint32(0x54), hs.Descriptor.Length)
}

func TestInitializerWriteFailure(t *testing.T) {
	_, port, raw, clock := newTestRig(t)
	raw.WriteError = errors.New("device gone")

	_, err := NewInitializer(port, clock, DefaultOptions()).Run()
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write stop", ioErr.Op)
	assert.EqualError(t, ioErr.Err, "device gone")
}

func TestInitializerEmptyScript(t *testing.T) {
	_, port, _, clock := newTestRig(t)

	opts := DefaultOptions()
	opts.Script = []Exchange{}
	_, err := NewInitializer(port, clock, opts).Run()
	assert.Error(t, err)
}

func TestStop(t *testing.T) {
	_, port, raw, _ := newTestRig(t)

	require.NoError(t, Stop(port))
	assert.Equal(t, []byte{0xa5, 0x25}, raw.GetWrittenData())

	require.NoError(t, port.Close())
	var ioErr *IOError
	require.ErrorAs(t, Stop(port), &ioErr)
	assert.ErrorIs(t, ioErr, serialport.ErrPortClosed)
}

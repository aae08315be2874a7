package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rplidar.report/internal/config"
	"github.com/banshee-data/rplidar.report/internal/lidar/device"
	"github.com/banshee-data/rplidar.report/internal/lidar/parse"
	"github.com/banshee-data/rplidar.report/internal/lidar/scandb"
	"github.com/banshee-data/rplidar.report/internal/serialport"
	"github.com/banshee-data/rplidar.report/internal/timeutil"
)

func strPtr(v string) *string { return &v }

// simulatedSensor answers the handshake and, once express scan is requested,
// queues frames.
func simulatedSensor(frames [][]byte) func([]byte) []byte {
	replies := map[string][]byte{}
	health := device.HealthExchange()
	replies[string(health.Request)] = health.Expected
	for _, ex := range device.DefaultScript() {
		replies[string(ex.Request)] = ex.Expected
	}
	start := device.ExpressScanRequest(device.SCAN_MODE_SENSITIVITY)

	return func(req []byte) []byte {
		reply := replies[string(req)]
		if bytes.Equal(req, start) {
			reply = append([]byte(nil), reply...)
			for _, f := range frames {
				reply = append(reply, f...)
			}
		}
		return reply
	}
}

func frameAt(angleQ6 uint16, start bool) []byte {
	p := &parse.ScanPacket{StartAngleQ6: angleQ6, StartOfRevolution: start}
	for i := range p.Cabins {
		p.Cabins[i] = 500
	}
	return parse.EncodeFrame(p)
}

func testOptions(t *testing.T, raw *serialport.TestableSerialPort) (options, *serialport.MockSerialPortFactory) {
	t.Helper()
	cfg := config.EmptyDriverConfig()
	cfg.Port = strPtr("/dev/ttyTEST")
	cfg.PollInterval = strPtr("1ms")
	cfg.DBPath = strPtr(filepath.Join(t.TempDir(), "scan.db"))
	cfg.PlotDir = strPtr(filepath.Join(t.TempDir(), "plots"))

	factory := serialport.NewMockSerialPortFactory(raw)
	return options{
		cfg:            cfg,
		factory:        factory,
		clock:          timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		plotEvery:      1,
		maxRevolutions: 1,
	}, factory
}

func TestRunRecordsRevolutions(t *testing.T) {
	frames := [][]byte{
		frameAt(0, true),
		frameAt(7680, false),
		frameAt(15360, false),
		frameAt(10, true),
		frameAt(7690, false),
	}
	raw := serialport.NewTestableSerialPort()
	raw.OnWrite = simulatedSensor(frames)

	opts, factory := testOptions(t, raw)
	require.NoError(t, run(context.Background(), opts))

	assert.Equal(t, "/dev/ttyTEST", factory.LastCall().Path)
	assert.True(t, raw.Closed)
	written := raw.GetWrittenData()
	assert.True(t, bytes.HasSuffix(written, device.StopRequest), "sensor is stopped on exit")

	db, err := scandb.Open(opts.cfg.GetDBPath())
	require.NoError(t, err)
	defer db.Close()

	sessions, err := db.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Sensitivity", sessions[0].ScanMode)
	assert.Equal(t, "1.29", sessions[0].Firmware)
	assert.NotNil(t, sessions[0].EndedAt)

	revs, err := db.Revolutions(sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, revs, 2, "one complete revolution plus the flushed remainder")
	assert.False(t, revs[0].Partial)
	assert.Equal(t, 3*parse.SAMPLES_PER_FRAME, revs[0].Stats.Points)
	assert.InDelta(t, 500.0, revs[0].Stats.MeanMM, 1e-9)
	assert.True(t, revs[1].Partial)

	plots, err := os.ReadDir(opts.cfg.GetPlotDir())
	require.NoError(t, err)
	assert.Len(t, plots, 2)
}

func TestRunHandshakeFailure(t *testing.T) {
	raw := serialport.NewTestableSerialPort()
	raw.OnWrite = func(req []byte) []byte {
		if bytes.Equal(req, device.HealthExchange().Request) {
			return []byte{0xa5, 0x5a, 0x03, 0x00, 0x00, 0x00, 0x06, 0x02, 0x00, 0x00}
		}
		return nil
	}

	opts, _ := testOptions(t, raw)
	opts.cfg.HealthRetries = new(int)
	*opts.cfg.HealthRetries = 2

	err := run(context.Background(), opts)
	var mismatch *device.ProtocolMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, device.StepHealth, mismatch.Step)
	assert.True(t, raw.Closed)
	assert.NoFileExists(t, opts.cfg.GetDBPath(), "consumers start only after the handshake")
}

func TestRunStopsOnCancel(t *testing.T) {
	raw := serialport.NewTestableSerialPort()
	raw.OnWrite = simulatedSensor(nil)

	opts, _ := testOptions(t, raw)
	opts.cfg.DBPath = nil
	opts.cfg.PlotDir = nil

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, opts))
	assert.True(t, bytes.HasSuffix(raw.GetWrittenData(), device.StopRequest))
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(config.DefaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, 115200, cfg.GetBaudRate())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err, "an explicit path must exist")
}

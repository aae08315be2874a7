// Package device drives an RPLIDAR-class sensor over a byte transport: the
// fixed handshake that brings it into extended express-scan mode, and the
// poll loop that feeds streamed frames into the decode pipeline.
package device

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rplidar.report/internal/lidar/parse"
	"github.com/banshee-data/rplidar.report/internal/monitoring"
	"github.com/banshee-data/rplidar.report/internal/timeutil"
)

// Transport is the duplex byte stream the sensor is attached to.
// *serialport.Port satisfies it.
type Transport interface {
	WriteAll(data []byte) error
	// ReadExact blocks up to the transport's read timeout and fails if
	// fewer than n bytes arrive.
	ReadExact(n int) ([]byte, error)
	BytesAvailable() (int, error)
	ClearInputBuffer() error
}

// Options tunes the handshake timing.
type Options struct {
	HealthRetries    int
	HealthRetryDelay time.Duration
	StopSettle       time.Duration
	FlushSettle      time.Duration

	// Health and Script default to HealthExchange and DefaultScript.
	Health *Exchange
	Script []Exchange
}

// DefaultOptions returns the timings the sensor is known to need.
func DefaultOptions() Options {
	return Options{
		HealthRetries:    10,
		HealthRetryDelay: 100 * time.Millisecond,
		StopSettle:       800 * time.Millisecond,
		FlushSettle:      500 * time.Millisecond,
	}
}

// Handshake is what the sensor reported while being brought up.
type Handshake struct {
	Health     Health
	Info       Info
	ScanMode   ScanMode
	Descriptor ResponseDescriptor
	// HealthAttempts is how many health requests were sent.
	HealthAttempts int
}

// Initializer runs the fixed command/response handshake.
type Initializer struct {
	transport Transport
	clock     timeutil.Clock
	opts      Options
}

// NewInitializer returns an initializer over transport. A nil clock uses the
// real clock.
func NewInitializer(transport Transport, clock timeutil.Clock, opts Options) *Initializer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if opts.HealthRetries <= 0 {
		opts.HealthRetries = 1
	}
	return &Initializer{transport: transport, clock: clock, opts: opts}
}

// Stop sends the stop command. The sensor sends nothing back.
func Stop(transport Transport) error {
	if err := transport.WriteAll(StopRequest); err != nil {
		return &IOError{Op: "write stop", Err: err}
	}
	return nil
}

// Run stops any scan in progress, waits for good health, walks the script
// and confirms the sensor is streaming express-scan frames. Any response
// that differs from its expected bytes fails with *ProtocolMismatchError.
func (i *Initializer) Run() (*Handshake, error) {
	if err := Stop(i.transport); err != nil {
		return nil, err
	}
	i.clock.Sleep(i.opts.StopSettle)
	if err := i.transport.ClearInputBuffer(); err != nil {
		return nil, &IOError{Op: "clear input", Err: err}
	}
	i.clock.Sleep(i.opts.FlushSettle)

	hs := &Handshake{}

	health := HealthExchange()
	if i.opts.Health != nil {
		health = *i.opts.Health
	}
	resp, attempts, err := i.waitHealthy(health)
	hs.HealthAttempts = attempts
	if err != nil {
		return hs, err
	}
	if hs.Health, err = ParseHealth(resp); err != nil {
		return hs, err
	}

	script := i.opts.Script
	if script == nil {
		script = DefaultScript()
	}
	if len(script) == 0 {
		return hs, errors.New("handshake script is empty")
	}

	hs.ScanMode.ID = SCAN_MODE_SENSITIVITY
	for n, ex := range script {
		resp, err := i.exchange(ex)
		if err != nil {
			return hs, err
		}
		if n == len(script)-1 {
			if hs.Descriptor, err = ParseResponseDescriptor(resp); err != nil {
				return hs, err
			}
			break
		}
		if err := hs.record(ex.Name, resp); err != nil {
			return hs, fmt.Errorf("lidar %s: %w", ex.Name, err)
		}
	}

	if hs.Descriptor.Length != parse.FRAME_SIZE || hs.Descriptor.DataType != DATA_TYPE_EXPRESS_EXT {
		return hs, fmt.Errorf("%w: length %d, data type 0x%02x", ErrUnexpectedScanMode, hs.Descriptor.Length, hs.Descriptor.DataType)
	}

	monitoring.Logf("lidar model 0x%02x firmware %s hardware %d serial %s", hs.Info.Model, hs.Info.Firmware(), hs.Info.Hardware, hs.Info.SerialNumber)
	monitoring.Logf("lidar streaming scan mode %q (%.1f us/sample, %.1f m)", hs.ScanMode.Name, hs.ScanMode.MicrosPerSample, hs.ScanMode.MaxDistanceM)
	return hs, nil
}

// waitHealthy repeats the health exchange until it matches. Transport errors
// and mismatches are retried; once the attempts run out the last failure is
// returned.
func (i *Initializer) waitHealthy(ex Exchange) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= i.opts.HealthRetries; attempt++ {
		resp, err := i.exchange(ex)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err
		monitoring.Logf("lidar health check attempt %d/%d failed: %v", attempt, i.opts.HealthRetries, err)

		if attempt == i.opts.HealthRetries {
			break
		}
		if err := i.transport.ClearInputBuffer(); err != nil {
			monitoring.Logf("lidar clear input after failed health check: %v", err)
		}
		i.clock.Sleep(i.opts.HealthRetryDelay)
	}
	return nil, i.opts.HealthRetries, lastErr
}

// exchange sends one request and reads a response of the expected length.
func (i *Initializer) exchange(ex Exchange) ([]byte, error) {
	if err := i.transport.WriteAll(ex.Request); err != nil {
		return nil, &IOError{Op: "write " + ex.Name, Err: err}
	}
	if len(ex.Expected) == 0 {
		return nil, nil
	}

	resp, err := i.transport.ReadExact(len(ex.Expected))
	if err != nil {
		return nil, &IOError{Op: "read " + ex.Name, Err: err}
	}
	if !bytes.Equal(resp, ex.Expected) {
		return resp, &ProtocolMismatchError{Step: ex.Name, Want: ex.Expected, Got: resp}
	}
	monitoring.Debugf("lidar %s: % x", ex.Name, resp)
	return resp, nil
}

// record decodes the responses of recognised steps.
func (hs *Handshake) record(step string, resp []byte) error {
	switch step {
	case StepInfo:
		info, err := ParseInfo(resp)
		if err != nil {
			return err
		}
		hs.Info = info
	case StepUsPerSample:
		return hs.ScanMode.applyConf(resp, CONF_SCAN_MODE_US_PER_SAMPLE)
	case StepMaxDistance:
		return hs.ScanMode.applyConf(resp, CONF_SCAN_MODE_MAX_DISTANCE)
	case StepAnswerType:
		return hs.ScanMode.applyConf(resp, CONF_SCAN_MODE_ANS_TYPE)
	case StepScanModeName:
		return hs.ScanMode.applyConf(resp, CONF_SCAN_MODE_NAME)
	}
	return nil
}

package parse

import (
	"fmt"
	"time"

	"github.com/banshee-data/rplidar.report/internal/monitoring"
	"github.com/banshee-data/rplidar.report/internal/timeutil"
)

// LidarPoint is one calibrated sample.
type LidarPoint struct {
	AngleQ6    uint16 // 1/64 degree, [0, ANGLE_FULL_TURN)
	DistanceQ2 uint32 // 1/4 mm, 0 = no valid return
}

// AngleDegrees returns the sample angle in degrees.
func (p LidarPoint) AngleDegrees() float64 {
	return float64(p.AngleQ6) / ANGLE_UNITS_PER_DEGREE
}

// DistanceMM returns the sample distance in millimetres.
func (p LidarPoint) DistanceMM() float64 {
	return float64(p.DistanceQ2) / DISTANCE_UNITS_PER_MM
}

// Valid reports whether the sample carries a return.
func (p LidarPoint) Valid() bool {
	return p.DistanceQ2 != 0
}

// Sweep is the output for one decoded packet: the 96 samples of its cabins
// plus the header fields consumers need to find revolution boundaries.
type Sweep struct {
	CapturedAt        time.Time
	StartAngleQ6      uint16
	StartOfRevolution bool
	AngleSpanQ6       uint32 // sweep covered by Points
	Points            []LidarPoint
}

// DecodeSweep decodes the cabins of previous into points, using current for
// the end of the angular sweep and for the lookahead anchor of the last cabin.
func DecodeSweep(previous, current *ScanPacket) *Sweep {
	sweep := &Sweep{
		CapturedAt:        previous.CapturedAt,
		StartAngleQ6:      previous.StartAngleQ6,
		StartOfRevolution: previous.StartOfRevolution,
		AngleSpanQ6:       AngleDiffQ6(previous.StartAngleQ6, current.StartAngleQ6),
		Points:            make([]LidarPoint, 0, SAMPLES_PER_FRAME),
	}

	for i := 0; i < CABINS_PER_FRAME; i++ {
		var next uint32
		if i == CABINS_PER_FRAME-1 {
			next = current.Cabins[0]
		} else {
			next = previous.Cabins[i+1]
		}

		distances := DecodeCabin(previous.Cabins[i], next)
		for j, d := range distances {
			sweep.Points = append(sweep.Points, LidarPoint{
				AngleQ6:    InterpolateAngle(previous, current, i, j),
				DistanceQ2: d,
			})
		}
	}

	return sweep
}

// PipelineState describes where a Pipeline is in its lifecycle.
type PipelineState int

const (
	StateEmpty     PipelineState = iota // no packet held yet
	StateStreaming                      // a previous packet is held
	StateFailed                         // a fatal decode error was returned
)

func (s PipelineState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("PipelineState(%d)", int(s))
	}
}

// Pipeline turns consecutive raw frames into sweeps. It holds only the most
// recent packet; each packet's samples are emitted once its successor has
// been decoded. A Pipeline is not safe for concurrent use.
type Pipeline struct {
	clock    timeutil.Clock
	previous *ScanPacket
	err      error
	frames   uint64
}

// NewPipeline returns an empty pipeline. A nil clock uses the real clock.
func NewPipeline(clock timeutil.Clock) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{clock: clock}
}

// State reports the pipeline state.
func (p *Pipeline) State() PipelineState {
	switch {
	case p.err != nil:
		return StateFailed
	case p.previous == nil:
		return StateEmpty
	default:
		return StateStreaming
	}
}

// Err returns the fatal error that stopped the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// Frames returns the number of frames decoded successfully.
func (p *Pipeline) Frames() uint64 {
	return p.frames
}

// Reset drops the held packet and any latched error, returning the pipeline
// to StateEmpty. Call it after re-initialising the device.
func (p *Pipeline) Reset() {
	p.previous = nil
	p.err = nil
	p.frames = 0
}

// Decode consumes one raw frame. It returns nil and no error for the first
// frame, since a packet's samples need the next packet's start angle.
// Framing and integrity errors are fatal: the pipeline latches the error and
// every later call fails with ErrPipelineFailed until Reset.
func (p *Pipeline) Decode(frame []byte) (*Sweep, error) {
	if p.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipelineFailed, p.err)
	}

	current, err := DecodeFrame(frame, p.clock.Now())
	if err != nil {
		p.err = err
		p.previous = nil
		return nil, err
	}
	p.frames++

	if current.StartOfRevolution {
		monitoring.Debugf("new revolution at %.2f deg (frame %d)", current.StartAngleDegrees(), p.frames)
	}

	previous := p.previous
	p.previous = current
	if previous == nil {
		return nil, nil
	}
	return DecodeSweep(previous, current), nil
}

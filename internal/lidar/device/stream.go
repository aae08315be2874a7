package device

import (
	"context"
	"time"

	"github.com/banshee-data/rplidar.report/internal/lidar/parse"
)

// DefaultPollInterval is used by Run when no interval is given.
const DefaultPollInterval = 10 * time.Millisecond

// SweepHandler receives each decoded sweep. Returning an error stops Run.
type SweepHandler func(*parse.Sweep) error

// Stream reads express-scan frames from a transport that has completed the
// handshake and feeds them through a decode pipeline.
type Stream struct {
	transport Transport
	pipeline  *parse.Pipeline
}

// NewStream returns a stream over transport. A nil pipeline gets a fresh one
// on the real clock.
func NewStream(transport Transport, pipeline *parse.Pipeline) *Stream {
	if pipeline == nil {
		pipeline = parse.NewPipeline(nil)
	}
	return &Stream{transport: transport, pipeline: pipeline}
}

// Pipeline returns the pipeline the stream decodes into.
func (s *Stream) Pipeline() *parse.Pipeline {
	return s.pipeline
}

// Poll decodes every complete frame available right now. A trailing partial
// frame stays in the transport for the next poll. Sweeps decoded before an
// error are returned alongside it.
func (s *Stream) Poll() ([]*parse.Sweep, error) {
	available, err := s.transport.BytesAvailable()
	if err != nil {
		return nil, &IOError{Op: "poll", Err: err}
	}

	var sweeps []*parse.Sweep
	for n := available / parse.FRAME_SIZE; n > 0; n-- {
		frame, err := s.transport.ReadExact(parse.FRAME_SIZE)
		if err != nil {
			return sweeps, &IOError{Op: "read frame", Err: err}
		}
		sweep, err := s.pipeline.Decode(frame)
		if err != nil {
			return sweeps, err
		}
		if sweep != nil {
			sweeps = append(sweeps, sweep)
		}
	}
	return sweeps, nil
}

// Run polls every interval and hands sweeps to handler until ctx is done,
// which returns nil, or a transport, decode or handler error occurs.
func (s *Stream) Run(ctx context.Context, interval time.Duration, handler SweepHandler) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sweeps, err := s.Poll()
		for _, sweep := range sweeps {
			if herr := handler(sweep); herr != nil {
				return herr
			}
		}
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

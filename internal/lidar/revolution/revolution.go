// Package revolution segments the decoded point stream into full sensor
// turns. A turn ends when a sweep carries the start-of-revolution flag; the
// angles themselves are never used to guess a boundary.
package revolution

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rplidar.report/internal/lidar/parse"
)

// DefaultMaxPoints bounds a revolution when the sensor stops flagging new
// turns. The sensitivity mode produces under a thousand samples per turn.
const DefaultMaxPoints = 16384

// Revolution is one sensor turn worth of points.
type Revolution struct {
	Index     int
	StartedAt time.Time
	EndedAt   time.Time
	Sweeps    int
	Points    []parse.LidarPoint

	// Partial is set when the points did not start at a revolution flag
	// (the turn in progress when streaming began) or the revolution was cut
	// at the point limit.
	Partial bool
}

// Stats summarises the valid distances of a revolution.
type Stats struct {
	Points   int     `json:"points"`
	Valid    int     `json:"valid"`
	MeanMM   float64 `json:"mean_mm"`
	StdDevMM float64 `json:"stddev_mm"`
	MinMM    float64 `json:"min_mm"`
	MaxMM    float64 `json:"max_mm"`
}

// Stats computes distance statistics over points with a non-zero distance.
func (r *Revolution) Stats() Stats {
	s := Stats{Points: len(r.Points)}

	distances := make([]float64, 0, len(r.Points))
	for _, p := range r.Points {
		if p.Valid() {
			distances = append(distances, p.DistanceMM())
		}
	}
	s.Valid = len(distances)
	if s.Valid == 0 {
		return s
	}

	s.MeanMM, s.StdDevMM = stat.MeanStdDev(distances, nil)
	if math.IsNaN(s.StdDevMM) {
		s.StdDevMM = 0
	}
	s.MinMM = floats.Min(distances)
	s.MaxMM = floats.Max(distances)
	return s
}

// Duration is the time between the first and last sweep of the revolution.
func (r *Revolution) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Accumulator collects sweeps into revolutions. It is not safe for
// concurrent use.
type Accumulator struct {
	maxPoints int
	next      int
	current   *Revolution
}

// NewAccumulator returns an accumulator that cuts revolutions at maxPoints.
// A non-positive maxPoints uses DefaultMaxPoints.
func NewAccumulator(maxPoints int) *Accumulator {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Accumulator{maxPoints: maxPoints}
}

// Add appends a sweep and returns the revolution it completed, if any.
func (a *Accumulator) Add(sweep *parse.Sweep) *Revolution {
	if sweep == nil {
		return nil
	}

	var done *Revolution
	if sweep.StartOfRevolution && a.current != nil && len(a.current.Points) > 0 {
		done = a.close()
	}
	if a.current == nil {
		a.current = &Revolution{
			Index:     a.next,
			StartedAt: sweep.CapturedAt,
			Partial:   !sweep.StartOfRevolution,
		}
		a.next++
	}

	a.current.Points = append(a.current.Points, sweep.Points...)
	a.current.Sweeps++
	a.current.EndedAt = sweep.CapturedAt

	if done == nil && len(a.current.Points) >= a.maxPoints {
		a.current.Partial = true
		done = a.close()
	}
	return done
}

// Flush returns the revolution in progress, marked partial, and starts over.
func (a *Accumulator) Flush() *Revolution {
	if a.current == nil || len(a.current.Points) == 0 {
		a.current = nil
		return nil
	}
	a.current.Partial = true
	return a.close()
}

// Pending returns the number of points in the revolution in progress.
func (a *Accumulator) Pending() int {
	if a.current == nil {
		return 0
	}
	return len(a.current.Points)
}

func (a *Accumulator) close() *Revolution {
	r := a.current
	a.current = nil
	return r
}

package revolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rplidar.report/internal/lidar/parse"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sweepAt(n int, start bool, distancesMM ...uint32) *parse.Sweep {
	s := &parse.Sweep{
		CapturedAt:        testEpoch.Add(time.Duration(n) * 10 * time.Millisecond),
		StartAngleQ6:      uint16(n * 640 % parse.ANGLE_FULL_TURN),
		StartOfRevolution: start,
	}
	for i, d := range distancesMM {
		s.Points = append(s.Points, parse.LidarPoint{
			AngleQ6:    uint16((n*640 + i) % parse.ANGLE_FULL_TURN),
			DistanceQ2: d * parse.DISTANCE_UNITS_PER_MM,
		})
	}
	return s
}

func TestAccumulatorSplitsOnStartFlag(t *testing.T) {
	acc := NewAccumulator(0)

	assert.Nil(t, acc.Add(sweepAt(0, true, 100, 200)))
	assert.Nil(t, acc.Add(sweepAt(1, false, 300)))
	assert.Equal(t, 3, acc.Pending())

	rev := acc.Add(sweepAt(2, true, 400))
	require.NotNil(t, rev)
	assert.Equal(t, 0, rev.Index)
	assert.False(t, rev.Partial)
	assert.Equal(t, 2, rev.Sweeps)
	assert.Len(t, rev.Points, 3)
	assert.Equal(t, testEpoch, rev.StartedAt)
	assert.Equal(t, 10*time.Millisecond, rev.Duration())

	assert.Equal(t, 1, acc.Pending(), "the flagged sweep opens the next revolution")

	rev = acc.Add(sweepAt(3, true, 500))
	require.NotNil(t, rev)
	assert.Equal(t, 1, rev.Index)
	assert.Len(t, rev.Points, 1)
}

func TestAccumulatorLeadingPartialRevolution(t *testing.T) {
	acc := NewAccumulator(0)

	assert.Nil(t, acc.Add(sweepAt(0, false, 1, 2)))
	rev := acc.Add(sweepAt(1, true, 3))
	require.NotNil(t, rev)
	assert.True(t, rev.Partial, "points before the first flag are not a full turn")
}

func TestAccumulatorIgnoresAngleWraparound(t *testing.T) {
	acc := NewAccumulator(0)
	acc.Add(sweepAt(0, true, 1))

	// The start angle jumps backwards without a flag; no boundary is guessed.
	s := sweepAt(1, false, 2)
	s.StartAngleQ6 = 10
	assert.Nil(t, acc.Add(s))
	assert.Equal(t, 2, acc.Pending())
}

func TestAccumulatorPointLimit(t *testing.T) {
	acc := NewAccumulator(4)

	assert.Nil(t, acc.Add(sweepAt(0, true, 1, 2, 3)))
	rev := acc.Add(sweepAt(1, false, 4, 5))
	require.NotNil(t, rev)
	assert.True(t, rev.Partial)
	assert.Len(t, rev.Points, 5)
	assert.Zero(t, acc.Pending())
}

func TestAccumulatorFlush(t *testing.T) {
	acc := NewAccumulator(0)
	assert.Nil(t, acc.Flush())

	acc.Add(sweepAt(0, true, 1))
	rev := acc.Flush()
	require.NotNil(t, rev)
	assert.True(t, rev.Partial)
	assert.Zero(t, acc.Pending())
	assert.Nil(t, acc.Add(nil))
}

func TestRevolutionStats(t *testing.T) {
	rev := &Revolution{}
	rev.Points = sweepAt(0, true, 100, 0, 300, 200).Points

	s := rev.Stats()
	assert.Equal(t, 4, s.Points)
	assert.Equal(t, 3, s.Valid)
	assert.InDelta(t, 200.0, s.MeanMM, 1e-9)
	assert.InDelta(t, 100.0, s.StdDevMM, 1e-9)
	assert.Equal(t, 100.0, s.MinMM)
	assert.Equal(t, 300.0, s.MaxMM)
}

func TestRevolutionStatsNoValidPoints(t *testing.T) {
	rev := &Revolution{Points: []parse.LidarPoint{{AngleQ6: 1}}}
	assert.Equal(t, Stats{Points: 1}, rev.Stats())
}

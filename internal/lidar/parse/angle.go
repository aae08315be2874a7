package parse

import "math"

// AngleDiffQ6 returns the forward angular distance from previous to current
// in 1/64 degree, modulo a full turn. It is never negative.
func AngleDiffQ6(previous, current uint16) uint32 {
	d := (int(current) - int(previous)) % ANGLE_FULL_TURN
	if d < 0 {
		d += ANGLE_FULL_TURN
	}
	return uint32(d)
}

// InterpolateAngle returns the angle of sample j of cabin i of previous. The
// 96 samples of a packet are spread evenly over the sweep between previous
// and current start angles; the result wraps modulo a full turn.
func InterpolateAngle(previous, current *ScanPacket, cabin, sample int) uint16 {
	diff := AngleDiffQ6(previous.StartAngleQ6, current.StartAngleQ6)
	fraction := float64(cabin)/CABINS_PER_FRAME + float64(sample)/SAMPLES_PER_FRAME
	offset := int(math.Round(float64(diff) * fraction))
	return uint16((int(previous.StartAngleQ6) + offset) % ANGLE_FULL_TURN)
}

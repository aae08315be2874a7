package parse

// Predictor values that mark a slot with no valid return. The sign-extended
// -512 pattern is the documented sentinel; 0x1FF is also treated as empty by
// the vendor reference decoder.
const (
	PREDICT_SENTINEL_NEG = -512 // 0xFFFFFE00 as uint32
	PREDICT_SENTINEL_POS = 0x1FF
)

// CabinDistances holds the three quarter-millimetre distances unpacked from a
// cabin, in wire order: [anchor, predict1, predict2].
type CabinDistances [SAMPLES_PER_CABIN]uint32

// DecodeCabin unpacks one cabin word into three distances. next is the cabin
// that follows it on the wire: the following cabin of the same packet, or
// cabin 0 of the next packet when cabin is the last one.
//
// Layout of a cabin (little-endian uint32):
//
//	bits  0-11  major distance, varbit-scaled
//	bits 12-21  predict1, signed 10-bit offset from the major anchor
//	bits 22-31  predict2, signed 10-bit offset from the next cabin's anchor
func DecodeCabin(cabin, next uint32) CabinDistances {
	major1, level1 := VarbitScaleDecode(cabin & 0xFFF)
	major2, level2 := VarbitScaleDecode(next & 0xFFF)

	predict1 := int32(cabin<<10) >> 22
	predict2 := int32(cabin) >> 22

	base1 := major1
	base2 := major2

	// A degenerate primary anchor borrows the next cabin's base and scale.
	if major1 == 0 && major2 != 0 {
		base1 = major2
		level1 = level2
	}

	var out CabinDistances
	out[0] = major1 << 2
	out[1] = predictDistance(base1, level1, predict1)
	out[2] = predictDistance(base2, level2, predict2)
	return out
}

// predictDistance applies a scaled predictor offset to an anchor and converts
// the result to quarter-millimetre units. Sentinel predictors yield 0.
func predictDistance(base, level uint32, predict int32) uint32 {
	if isPredictSentinel(predict) {
		return 0
	}
	predict <<= level
	return uint32((int32(base) + predict) << 2)
}

func isPredictSentinel(predict int32) bool {
	return predict == PREDICT_SENTINEL_NEG || predict == PREDICT_SENTINEL_POS
}

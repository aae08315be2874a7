package parse

// Variable-bit-scale bands, ordered from the largest scaled base downward.
// A 12-bit scaled magnitude selects the first band whose base it reaches and
// expands to TARGET_BASE + ((scaled - SCALED_BASE) << LEVEL).
var (
	vbsScaledBase = [5]uint32{3328, 1792, 1280, 512, 0}
	vbsScaleLevel = [5]uint32{4, 3, 2, 1, 0}
	vbsTargetBase = [5]uint32{1 << 14, 1 << 12, 1 << 11, 1 << 9, 0}
)

// VarbitScaleDecode expands a varbit-scaled magnitude into its linear value and
// returns the scale level of the band that matched. The base-0 band always
// matches, so there is no error path.
func VarbitScaleDecode(scaled uint32) (value uint32, scaleLevel uint32) {
	for i, base := range vbsScaledBase {
		if scaled >= base {
			level := vbsScaleLevel[i]
			return vbsTargetBase[i] + ((scaled - base) << level), level
		}
	}
	return 0, 0
}

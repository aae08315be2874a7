package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// packCabin builds a cabin word from a 12-bit scaled major and two signed
// 10-bit predictors.
func packCabin(major uint32, predict1, predict2 int32) uint32 {
	return major&0xFFF | (uint32(predict1)&0x3FF)<<12 | (uint32(predict2)&0x3FF)<<22
}

func TestDecodeCabin(t *testing.T) {
	cabin := packCabin(1000, 5, -3)
	next := packCabin(2000, 0, 0)

	got := DecodeCabin(cabin, next)

	// major 1000 -> 1488 (level 1); major2 2000 -> 5760 (level 3)
	want := CabinDistances{
		1488 << 2,
		(1488 + 5<<1) << 2,
		(5760 - 3<<3) << 2,
	}
	assert.Equal(t, want, got)
}

func TestDecodeCabinSignExtension(t *testing.T) {
	// Largest positive and most negative non-sentinel predictors.
	cabin := packCabin(100, 510, -511)
	next := packCabin(3000, 0, 0) // 4096 + (1208 << 3) = 13760, level 3

	got := DecodeCabin(cabin, next)

	assert.Equal(t, uint32(100<<2), got[0])
	assert.Equal(t, uint32((100+510)<<2), got[1])
	assert.Equal(t, uint32((13760-511<<3)<<2), got[2])
}

func TestDecodeCabinSentinels(t *testing.T) {
	for _, major := range []uint32{0, 1, 700, 2000, 4095} {
		cabin := packCabin(major, PREDICT_SENTINEL_NEG, PREDICT_SENTINEL_POS)
		got := DecodeCabin(cabin, packCabin(1500, 0, 0))
		assert.Zero(t, got[1], "predict1 sentinel with major %d", major)
		assert.Zero(t, got[2], "predict2 sentinel with major %d", major)
	}

	cabin := packCabin(1000, PREDICT_SENTINEL_POS, PREDICT_SENTINEL_NEG)
	got := DecodeCabin(cabin, packCabin(1500, 0, 0))
	assert.Zero(t, got[1])
	assert.Zero(t, got[2])
	assert.Equal(t, uint32(1488<<2), got[0], "anchor is unaffected by predictor sentinels")
}

func TestDecodeCabinBorrowsNextAnchor(t *testing.T) {
	cabin := packCabin(0, 4, 2)
	next := packCabin(1000, 0, 0) // 1488, level 1

	got := DecodeCabin(cabin, next)

	assert.Zero(t, got[0], "degenerate anchor still reports no return")
	assert.Equal(t, uint32((1488+4<<1)<<2), got[1], "predict1 uses the borrowed base and level")
	assert.Equal(t, uint32((1488+2<<1)<<2), got[2])
}

func TestDecodeCabinBothAnchorsZero(t *testing.T) {
	got := DecodeCabin(packCabin(0, 3, 7), packCabin(0, 0, 0))
	assert.Equal(t, CabinDistances{0, 3 << 2, 7 << 2}, got)
}

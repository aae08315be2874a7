package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"stop", Request(CMD_STOP, nil), []byte{0xa5, 0x25}},
		{"health", Request(CMD_GET_HEALTH, nil), []byte{0xa5, 0x52}},
		{"conf us per sample", LidarConfRequest(CONF_SCAN_MODE_US_PER_SAMPLE, 3), []byte{0xa5, 0x84, 0x06, 0x71, 0x00, 0x00, 0x00, 0x03, 0x00, 0x55}},
		{"conf name", LidarConfRequest(CONF_SCAN_MODE_NAME, 3), []byte{0xa5, 0x84, 0x06, 0x7f, 0x00, 0x00, 0x00, 0x03, 0x00, 0x5b}},
		{"express scan", ExpressScanRequest(3), []byte{0xa5, 0x82, 0x05, 0x03, 0x00, 0x00, 0x00, 0x00, 0x21}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestParseResponseDescriptor(t *testing.T) {
	desc, err := ParseResponseDescriptor([]byte{0xa5, 0x5a, 0x84, 0x00, 0x00, 0x40, 0x84})
	require.NoError(t, err)
	assert.Equal(t, ResponseDescriptor{Length: 132, SendMode: SendModeSingle, DataType: 0x84}, desc)

	desc, err = ParseResponseDescriptor([]byte{0xa5, 0x5a, 0xff, 0xff, 0x00, 0x01, 0x81})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3FFF), desc.Length, "length is masked to 14 bits")
	assert.Equal(t, SendModeMulti, desc.SendMode)
	assert.Equal(t, "multi", desc.SendMode.String())
}

func TestParseResponseDescriptorErrors(t *testing.T) {
	_, err := ParseResponseDescriptor([]byte{0xa5, 0x5a, 0x84})
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	_, err = ParseResponseDescriptor([]byte{0xa5, 0x5b, 0x84, 0x00, 0x00, 0x40, 0x84})
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	for _, b5 := range []byte{0x02, 0x03, 0x43} {
		_, err = ParseResponseDescriptor([]byte{0xa5, 0x5a, 0x84, 0x00, 0x00, b5, 0x84})
		var modeErr *InvalidSendModeError
		require.ErrorAs(t, err, &modeErr)
		assert.Equal(t, b5&0x03, modeErr.Mode)
	}
}

func TestParseInfo(t *testing.T) {
	resp := DefaultScript()[0].Expected
	info, err := ParseInfo(resp)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x18), info.Model)
	assert.Equal(t, "1.29", info.Firmware())
	assert.Equal(t, uint8(7), info.Hardware)
	assert.Equal(t, "D98A99F6C9E59AD2C5E59CF725583412", info.SerialNumber)

	_, err = ParseInfo(resp[:20])
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = ParseInfo(HealthExchange().Expected)
	assert.ErrorIs(t, err, ErrMalformedResponse, "health response has the wrong data type")
}

func TestParseHealth(t *testing.T) {
	h, err := ParseHealth([]byte{0xa5, 0x5a, 0x03, 0x00, 0x00, 0x00, 0x06, 0x02, 0x34, 0x12})
	require.NoError(t, err)
	assert.Equal(t, HealthError, h.Status)
	assert.Equal(t, uint16(0x1234), h.ErrorCode)
	assert.Equal(t, "error", h.Status.String())
}

func TestScanModeApplyConf(t *testing.T) {
	var mode ScanMode
	script := DefaultScript()
	require.NoError(t, mode.applyConf(script[1].Expected, CONF_SCAN_MODE_US_PER_SAMPLE))
	require.NoError(t, mode.applyConf(script[2].Expected, CONF_SCAN_MODE_MAX_DISTANCE))
	require.NoError(t, mode.applyConf(script[3].Expected, CONF_SCAN_MODE_ANS_TYPE))
	require.NoError(t, mode.applyConf(script[4].Expected, CONF_SCAN_MODE_NAME))

	assert.Equal(t, ScanMode{Name: "Sensitivity", MicrosPerSample: 127, MaxDistanceM: 12, AnswerType: 0x84}, mode)

	err := mode.applyConf(script[1].Expected, CONF_SCAN_MODE_NAME)
	assert.ErrorIs(t, err, ErrMalformedResponse, "answer for a different conf type")
}

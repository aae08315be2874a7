package device

// Exchange is one fixed request and the exact response the sensor must send
// back.
type Exchange struct {
	Name     string
	Request  []byte
	Expected []byte
}

// Handshake step names. The initializer decodes the responses of the steps it
// recognises.
const (
	StepHealth       = "get health"
	StepInfo         = "get info"
	StepUsPerSample  = "scan mode us per sample"
	StepMaxDistance  = "scan mode max distance"
	StepAnswerType   = "scan mode answer type"
	StepScanModeName = "scan mode name"
	StepVendorStatus = "vendor status"
	StepStartExpress = "start express scan"
)

// StopRequest halts scanning. The sensor does not answer it.
var StopRequest = Request(CMD_STOP, nil)

// HealthExchange is the first exchange of the handshake, retried until the
// sensor reports good health.
func HealthExchange() Exchange {
	return Exchange{
		Name:     StepHealth,
		Request:  Request(CMD_GET_HEALTH, nil),
		Expected: []byte{0xa5, 0x5a, 0x03, 0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00},
	}
}

// DefaultScript returns the exchanges that follow a good health report, ending
// with the request that starts extended express-scan streaming in the
// sensitivity mode.
func DefaultScript() []Exchange {
	return []Exchange{
		{
			Name:    StepInfo,
			Request: Request(CMD_GET_INFO, nil),
			Expected: []byte{
				0xa5, 0x5a, 0x14, 0x00, 0x00, 0x00, 0x04,
				0x18, 0x1d, 0x01, 0x07,
				0xd9, 0x8a, 0x99, 0xf6, 0xc9, 0xe5, 0x9a, 0xd2,
				0xc5, 0xe5, 0x9c, 0xf7, 0x25, 0x58, 0x34, 0x12,
			},
		},
		{
			Name:    StepUsPerSample,
			Request: LidarConfRequest(CONF_SCAN_MODE_US_PER_SAMPLE, SCAN_MODE_SENSITIVITY),
			Expected: []byte{
				0xa5, 0x5a, 0x08, 0x00, 0x00, 0x00, 0x20,
				0x71, 0x00, 0x00, 0x00, 0x00, 0x7f, 0x00, 0x00,
			},
		},
		{
			Name:    StepMaxDistance,
			Request: LidarConfRequest(CONF_SCAN_MODE_MAX_DISTANCE, SCAN_MODE_SENSITIVITY),
			Expected: []byte{
				0xa5, 0x5a, 0x08, 0x00, 0x00, 0x00, 0x20,
				0x74, 0x00, 0x00, 0x00, 0x00, 0x0c, 0x00, 0x00,
			},
		},
		{
			Name:    StepAnswerType,
			Request: LidarConfRequest(CONF_SCAN_MODE_ANS_TYPE, SCAN_MODE_SENSITIVITY),
			Expected: []byte{
				0xa5, 0x5a, 0x05, 0x00, 0x00, 0x00, 0x20,
				0x75, 0x00, 0x00, 0x00, 0x84,
			},
		},
		{
			Name:    StepScanModeName,
			Request: LidarConfRequest(CONF_SCAN_MODE_NAME, SCAN_MODE_SENSITIVITY),
			Expected: []byte{
				0xa5, 0x5a, 0x10, 0x00, 0x00, 0x00, 0x20,
				0x7f, 0x00, 0x00, 0x00,
				'S', 'e', 'n', 's', 'i', 't', 'i', 'v', 'i', 't', 'y', 0x00,
			},
		},
		{
			Name:    StepVendorStatus,
			Request: Request(CMD_VENDOR_STATUS, nil),
			Expected: []byte{
				0xa5, 0x5a, 0x0f, 0x00, 0x00, 0x00, 0x14,
				0x00, 0x00, 0x61, 0x00, 0x00, 0x00, 0xa0, 0x00,
				0x00, 0x0c, 0x00, 0x04, 0x00, 0x28, 0x1d,
			},
		},
		{
			Name:     StepStartExpress,
			Request:  ExpressScanRequest(SCAN_MODE_SENSITIVITY),
			Expected: []byte{0xa5, 0x5a, 0x84, 0x00, 0x00, 0x40, 0x84},
		},
	}
}

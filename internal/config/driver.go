package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical driver defaults file.
const DefaultConfigPath = "config/driver.defaults.json"

// DriverConfig is the root configuration for the lidar driver. Every field is
// optional: a nil pointer means "use the built-in default", so a partial JSON
// document only overrides what it names.
type DriverConfig struct {
	// Serial link
	Port        *string `json:"port,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	DataBits    *int    `json:"data_bits,omitempty"`
	StopBits    *int    `json:"stop_bits,omitempty"`
	Parity      *string `json:"parity,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "1s"

	// Handshake
	HealthRetries    *int    `json:"health_retries,omitempty"`
	HealthRetryDelay *string `json:"health_retry_delay,omitempty"`
	StopSettle       *string `json:"stop_settle,omitempty"`
	FlushSettle      *string `json:"flush_settle,omitempty"`

	// Streaming
	PollInterval *string `json:"poll_interval,omitempty"`

	// Consumers
	DBPath      *string `json:"db_path,omitempty"`
	PlotDir     *string `json:"plot_dir,omitempty"`
	DebugListen *string `json:"debug_listen,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyDriverConfig returns a DriverConfig with all fields unset.
func EmptyDriverConfig() *DriverConfig {
	return &DriverConfig{}
}

// DefaultDriverConfig returns a DriverConfig with every field populated from
// the built-in defaults.
func DefaultDriverConfig() *DriverConfig {
	c := EmptyDriverConfig()
	return &DriverConfig{
		Port:             ptrString(c.GetPort()),
		BaudRate:         ptrInt(c.GetBaudRate()),
		DataBits:         ptrInt(c.GetDataBits()),
		StopBits:         ptrInt(c.GetStopBits()),
		Parity:           ptrString(c.GetParity()),
		ReadTimeout:      ptrString(c.GetReadTimeout().String()),
		HealthRetries:    ptrInt(c.GetHealthRetries()),
		HealthRetryDelay: ptrString(c.GetHealthRetryDelay().String()),
		StopSettle:       ptrString(c.GetStopSettle().String()),
		FlushSettle:      ptrString(c.GetFlushSettle().String()),
		PollInterval:     ptrString(c.GetPollInterval().String()),
		DBPath:           ptrString(c.GetDBPath()),
		PlotDir:          ptrString(c.GetPlotDir()),
		DebugListen:      ptrString(c.GetDebugListen()),
	}
}

// LoadDriverConfig loads a DriverConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the JSON file fall back to their defaults through the Get* accessors.
func LoadDriverConfig(path string) (*DriverConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDriverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *DriverConfig) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.DataBits != nil && (*c.DataBits < 5 || *c.DataBits > 8) {
		return fmt.Errorf("data_bits must be between 5 and 8, got %d", *c.DataBits)
	}
	if c.StopBits != nil && *c.StopBits != 1 && *c.StopBits != 2 {
		return fmt.Errorf("stop_bits must be 1 or 2, got %d", *c.StopBits)
	}
	if c.Parity != nil {
		switch strings.ToUpper(strings.TrimSpace(*c.Parity)) {
		case "", "N", "NONE", "E", "EVEN", "O", "ODD":
		default:
			return fmt.Errorf("unsupported parity %q", *c.Parity)
		}
	}
	if c.HealthRetries != nil && *c.HealthRetries < 1 {
		return fmt.Errorf("health_retries must be at least 1, got %d", *c.HealthRetries)
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"read_timeout", c.ReadTimeout},
		{"health_retry_delay", c.HealthRetryDelay},
		{"stop_settle", c.StopSettle},
		{"flush_settle", c.FlushSettle},
		{"poll_interval", c.PollInterval},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.value)
		}
	}

	return nil
}

// parseDurationOr returns the parsed duration, or def when the value is unset
// or unparseable.
func parseDurationOr(value *string, def time.Duration) time.Duration {
	if value == nil || *value == "" {
		return def
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return def
	}
	return d
}

// GetPort returns the serial device path or the default.
func (c *DriverConfig) GetPort() string {
	if c.Port == nil || *c.Port == "" {
		return "/dev/ttyUSB0"
	}
	return *c.Port
}

// GetBaudRate returns the baud rate or the default.
func (c *DriverConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetDataBits returns the data bits or the default.
func (c *DriverConfig) GetDataBits() int {
	if c.DataBits == nil {
		return 8
	}
	return *c.DataBits
}

// GetStopBits returns the stop bits or the default.
func (c *DriverConfig) GetStopBits() int {
	if c.StopBits == nil {
		return 1
	}
	return *c.StopBits
}

// GetParity returns the parity or the default.
func (c *DriverConfig) GetParity() string {
	if c.Parity == nil || *c.Parity == "" {
		return "N"
	}
	return *c.Parity
}

// GetReadTimeout returns the per-read timeout.
func (c *DriverConfig) GetReadTimeout() time.Duration {
	return parseDurationOr(c.ReadTimeout, 1*time.Second)
}

// GetHealthRetries returns how many times the health check is attempted.
func (c *DriverConfig) GetHealthRetries() int {
	if c.HealthRetries == nil {
		return 10
	}
	return *c.HealthRetries
}

// GetHealthRetryDelay returns the delay between health check attempts.
func (c *DriverConfig) GetHealthRetryDelay() time.Duration {
	return parseDurationOr(c.HealthRetryDelay, 100*time.Millisecond)
}

// GetStopSettle returns the wait after the stop command.
func (c *DriverConfig) GetStopSettle() time.Duration {
	return parseDurationOr(c.StopSettle, 800*time.Millisecond)
}

// GetFlushSettle returns the wait after flushing the input buffer.
func (c *DriverConfig) GetFlushSettle() time.Duration {
	return parseDurationOr(c.FlushSettle, 500*time.Millisecond)
}

// GetPollInterval returns the streaming poll interval.
func (c *DriverConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, 10*time.Millisecond)
}

// GetDBPath returns the scan database path. Empty disables recording.
func (c *DriverConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetPlotDir returns the directory for revolution plots. Empty disables plotting.
func (c *DriverConfig) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// GetDebugListen returns the debug HTTP listen address. Empty disables it.
func (c *DriverConfig) GetDebugListen() string {
	if c.DebugListen == nil {
		return ""
	}
	return *c.DebugListen
}

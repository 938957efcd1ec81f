// Package config loads host-side configuration for the knxnetip demo
// binary: tunnel connection settings, the optional activity recorder, and
// logging. The knx package itself never parses a config file — this
// package exists purely to assemble a knx.Options value (plus recorder and
// logging settings) for a caller, mirroring the corpus convention of a
// YAML-driven settings struct with environment variable overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/knxnetip/knx"
	"github.com/nerrad567/knxnetip/logging"
)

// Config is the root configuration structure for the demo binary.
type Config struct {
	Tunnel   TunnelConfig   `yaml:"tunnel"`
	Recorder RecorderConfig `yaml:"recorder"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TunnelConfig mirrors knx.Options in YAML-friendly form: durations are
// plain ints rather than time.Duration, in seconds except for the
// tunnelling ack timeout, which is in milliseconds.
type TunnelConfig struct {
	// LocalIP is the bind address advertised in this tunnel's HPAIs.
	LocalIP string `yaml:"local_ip"`

	// ControlPort/DataPort are the local UDP ports. 0 binds an ephemeral
	// port.
	ControlPort uint16 `yaml:"control_port"`
	DataPort    uint16 `yaml:"data_port"`

	// ServerIP and ServerControlPort address the KNXnet/IP server.
	ServerIP          string `yaml:"server_ip"`
	ServerControlPort uint16 `yaml:"server_control_port"`

	HeartbeatIntervalSeconds              int `yaml:"heartbeat_interval_seconds"`
	ConnectResponseTimeoutSeconds         int `yaml:"connect_response_timeout_seconds"`
	ConnectionstateResponseTimeoutSeconds int `yaml:"connectionstate_response_timeout_seconds"`
	DisconnectResponseTimeoutSeconds      int `yaml:"disconnect_response_timeout_seconds"`
	TunnellingAckTimeoutMillis            int `yaml:"tunnelling_ack_timeout_millis"`
}

// RecorderConfig controls the optional SQLite activity log.
type RecorderConfig struct {
	// Enabled turns the recorder on. When false, the demo binary never
	// opens a database.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file. Default: "knxnetip.db".
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings, same shape as the corpus's
// LoggingConfig.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the log output format: json or text.
	Format string `yaml:"format"`

	// Output selects the destination: stdout or stderr.
	Output string `yaml:"output"`
}

// LoadConfig reads configuration from a YAML file, applies environment
// variable overrides, and validates the result.
//
// Environment variables follow the pattern KNXNETIP_SECTION_KEY, e.g.
// KNXNETIP_TUNNEL_SERVER_IP, KNXNETIP_LOGGING_LEVEL.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Tunnel: TunnelConfig{
			LocalIP:                               "0.0.0.0",
			ServerIP:                              "127.0.0.1",
			ServerControlPort:                     3671,
			HeartbeatIntervalSeconds:              60,
			ConnectResponseTimeoutSeconds:         10,
			ConnectionstateResponseTimeoutSeconds: 10,
			DisconnectResponseTimeoutSeconds:      5,
			TunnellingAckTimeoutMillis:            1000,
		},
		Recorder: RecorderConfig{
			Enabled: false,
			Path:    "knxnetip.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies KNXNETIP_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KNXNETIP_TUNNEL_SERVER_IP"); v != "" {
		cfg.Tunnel.ServerIP = v
	}
	if v := os.Getenv("KNXNETIP_TUNNEL_SERVER_CONTROL_PORT"); v != "" {
		if p, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Tunnel.ServerControlPort = uint16(p)
		}
	}
	if v := os.Getenv("KNXNETIP_RECORDER_PATH"); v != "" {
		cfg.Recorder.Path = v
	}
	if v := os.Getenv("KNXNETIP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KNXNETIP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, c.validateTunnel()...)
	errs = append(errs, c.validateRecorder()...)
	errs = append(errs, c.validateLogging()...)
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateTunnel() []string {
	var errs []string
	if net.ParseIP(c.Tunnel.LocalIP) == nil {
		errs = append(errs, fmt.Sprintf("tunnel.local_ip %q is not a valid IP", c.Tunnel.LocalIP))
	}
	if net.ParseIP(c.Tunnel.ServerIP) == nil {
		errs = append(errs, fmt.Sprintf("tunnel.server_ip %q is not a valid IP", c.Tunnel.ServerIP))
	}
	if c.Tunnel.ServerControlPort == 0 {
		errs = append(errs, "tunnel.server_control_port is required")
	}
	if c.Tunnel.HeartbeatIntervalSeconds < 1 {
		errs = append(errs, "tunnel.heartbeat_interval_seconds must be at least 1")
	}
	if c.Tunnel.ConnectResponseTimeoutSeconds < 1 {
		errs = append(errs, "tunnel.connect_response_timeout_seconds must be at least 1")
	}
	if c.Tunnel.ConnectionstateResponseTimeoutSeconds < 1 {
		errs = append(errs, "tunnel.connectionstate_response_timeout_seconds must be at least 1")
	}
	if c.Tunnel.DisconnectResponseTimeoutSeconds < 1 {
		errs = append(errs, "tunnel.disconnect_response_timeout_seconds must be at least 1")
	}
	if c.Tunnel.TunnellingAckTimeoutMillis < 1 {
		errs = append(errs, "tunnel.tunnelling_ack_timeout_millis must be at least 1")
	}
	return errs
}

func (c *Config) validateRecorder() []string {
	var errs []string
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		errs = append(errs, "recorder.path is required when recorder.enabled is true")
	}
	return errs
}

func (c *Config) validateLogging() []string {
	var errs []string
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}
	return errs
}

// ToOptions converts the loaded configuration into a knx.Options value,
// wiring logger in via the supplied knx.Logger (typically a *logging.Logger).
func (c *Config) ToOptions(logger knx.Logger) knx.Options {
	return knx.Options{
		LocalIP:           net.ParseIP(c.Tunnel.LocalIP),
		ControlPort:       c.Tunnel.ControlPort,
		DataPort:          c.Tunnel.DataPort,
		ServerIP:          net.ParseIP(c.Tunnel.ServerIP),
		ServerControlPort: c.Tunnel.ServerControlPort,

		HeartbeatInterval:              time.Duration(c.Tunnel.HeartbeatIntervalSeconds) * time.Second,
		ConnectResponseTimeout:         time.Duration(c.Tunnel.ConnectResponseTimeoutSeconds) * time.Second,
		ConnectionstateResponseTimeout: time.Duration(c.Tunnel.ConnectionstateResponseTimeoutSeconds) * time.Second,
		DisconnectResponseTimeout:      time.Duration(c.Tunnel.DisconnectResponseTimeoutSeconds) * time.Second,
		TunnellingAckTimeout:           time.Duration(c.Tunnel.TunnellingAckTimeoutMillis) * time.Millisecond,

		Logger: logger,
	}
}

// ToLoggingConfig converts the loaded configuration into a logging.Config.
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object. This Hub keeps no persistence
// layer: sessions and results live only for the process lifetime.
type Config struct {
	HTTP      *HTTPConfig      `mapstructure:"http"`
	WebSocket *WebSocketConfig `mapstructure:"websocket"`
	Session   *SessionConfig   `mapstructure:"session"`

	// DeviceOverlays is an operator-supplied per-device system_info
	// override, keyed by client_id, merged over what REGISTER itself
	// reports (registry.MergeSystemInfo). File-only: a variable-depth
	// nested map per device has no sane flat AGENTHUB_* env form, so it is
	// never seeded into newViper's defaults and is absent unless loaded via
	// LoadFromFile.
	DeviceOverlays map[string]map[string]interface{} `mapstructure:"device_overlays"`
}

// HTTPConfig configures the dispatch surface's listener.
type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Host         string        `mapstructure:"host"`
}

// WebSocketConfig configures per-connection liveness and buffering.
type WebSocketConfig struct {
	RegistrationTimeout time.Duration `mapstructure:"registration_timeout"`
	PingInterval        time.Duration `mapstructure:"ping_interval"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	BufferSize          int           `mapstructure:"buffer_size"`
}

// SessionConfig configures session execution defaults.
type SessionConfig struct {
	DefaultPlatform string        `mapstructure:"default_platform"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"` // 0 = infinity
}

// DefaultConfig returns the out-of-the-box configuration: HTTP on
// 0.0.0.0:8080, 10s registration timeout, 30s liveness timeout.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			RegistrationTimeout: 10 * time.Second,
			PingInterval:        30 * time.Second,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        10 * time.Second,
			BufferSize:          100,
		},
		Session: &SessionConfig{
			DefaultPlatform: "linux",
			DefaultTimeout:  0,
		},
		DeviceOverlays: map[string]map[string]interface{}{},
	}
}

// Validate rejects obviously broken configuration before component wiring
// begins.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.RegistrationTimeout <= 0 {
		return fmt.Errorf("WebSocket registration timeout must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.DefaultPlatform == "" {
		return fmt.Errorf("session default platform cannot be empty")
	}
	return nil
}

// newViper builds a Viper instance bound to AGENTHUB_* environment
// variables (AGENTHUB_HTTP_PORT, AGENTHUB_WEBSOCKET_PING_INTERVAL, ...)
// with defaults seeded from DefaultConfig, the way kdlbs-kandev binds its
// service configuration.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("AGENTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("http.port", def.HTTP.Port)
	v.SetDefault("http.host", def.HTTP.Host)
	v.SetDefault("http.read_timeout", def.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", def.HTTP.WriteTimeout)
	v.SetDefault("websocket.registration_timeout", def.WebSocket.RegistrationTimeout)
	v.SetDefault("websocket.ping_interval", def.WebSocket.PingInterval)
	v.SetDefault("websocket.read_timeout", def.WebSocket.ReadTimeout)
	v.SetDefault("websocket.write_timeout", def.WebSocket.WriteTimeout)
	v.SetDefault("websocket.buffer_size", def.WebSocket.BufferSize)
	v.SetDefault("session.default_platform", def.Session.DefaultPlatform)
	v.SetDefault("session.default_timeout", def.Session.DefaultTimeout)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTP:           &HTTPConfig{},
		WebSocket:      &WebSocketConfig{},
		Session:        &SessionConfig{},
		DeviceOverlays: map[string]map[string]interface{}{},
	}
	cfg.HTTP.Port = v.GetInt("http.port")
	cfg.HTTP.Host = v.GetString("http.host")
	cfg.HTTP.ReadTimeout = v.GetDuration("http.read_timeout")
	cfg.HTTP.WriteTimeout = v.GetDuration("http.write_timeout")
	cfg.WebSocket.RegistrationTimeout = v.GetDuration("websocket.registration_timeout")
	cfg.WebSocket.PingInterval = v.GetDuration("websocket.ping_interval")
	cfg.WebSocket.ReadTimeout = v.GetDuration("websocket.read_timeout")
	cfg.WebSocket.WriteTimeout = v.GetDuration("websocket.write_timeout")
	cfg.WebSocket.BufferSize = v.GetInt("websocket.buffer_size")
	cfg.Session.DefaultPlatform = v.GetString("session.default_platform")
	cfg.Session.DefaultTimeout = v.GetDuration("session.default_timeout")
	if err := v.UnmarshalKey("device_overlays", &cfg.DeviceOverlays); err != nil {
		return nil, fmt.Errorf("invalid device_overlays: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv builds configuration from defaults overridden by AGENTHUB_*
// environment variables.
func LoadFromEnv() *Config {
	cfg, _ := unmarshal(newViper())
	return cfg
}

// LoadFromFile builds configuration from a file (JSON, YAML, or TOML,
// detected by extension), overriding defaults and environment.
func LoadFromFile(filepath string) (*Config, error) {
	fileOnly := viper.New()
	fileOnly.SetConfigFile(filepath)
	if err := fileOnly.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}
	// Viper ranks AutomaticEnv above config-file values; Set ranks above
	// both, so the file's keys win and env/defaults fill the rest.
	v := newViper()
	for _, key := range fileOnly.AllKeys() {
		v.Set(key, fileOnly.Get(key))
	}
	cfg, _ := unmarshal(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}
	return cfg, nil
}

// LoadConfigWithPrecedence loads configuration with precedence file > env >
// defaults. File errors are silently ignored — environment/defaults still
// apply.
func LoadConfigWithPrecedence(filepath string) *Config {
	if filepath != "" {
		if cfg, err := LoadFromFile(filepath); err == nil {
			return cfg
		}
	}
	return LoadFromEnv()
}

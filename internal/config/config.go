package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is the config file consulted when WSPROBE_CONFIG_FILE is unset.
const DefaultConfigFile = "wsprobe.yaml"

// defaultMessages is the scripted message sequence sent when none is configured.
var defaultMessages = []string{
	"Hello from wsprobe client!",
	"This is a test message",
	"WebSocket is working!",
}

// Config represents the complete application configuration
type Config struct {
	Probe   ProbeConfig   `yaml:"probe" envconfig:"PROBE"`
	Echo    EchoConfig    `yaml:"echo" envconfig:"ECHO"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ProbeConfig contains the scripted session configuration
type ProbeConfig struct {
	ServerURL        string        `yaml:"server_url" envconfig:"SERVER_URL" validate:"required"`
	Messages         []string      `yaml:"messages" envconfig:"MESSAGES"`
	SendInterval     time.Duration `yaml:"send_interval" envconfig:"SEND_INTERVAL" validate:"min=0"`
	CloseDelay       time.Duration `yaml:"close_delay" envconfig:"CLOSE_DELAY" validate:"min=0"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" envconfig:"HANDSHAKE_TIMEOUT" validate:"min=0"`
}

// EchoConfig contains the companion echo server configuration
type EchoConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"min=1"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"min=1"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"min=1s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"min=0"`
	MessageRate     float64       `yaml:"message_rate" envconfig:"MESSAGE_RATE" validate:"gt=0"`
	MessageBurst    int           `yaml:"message_burst" envconfig:"MESSAGE_BURST" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Default returns the configuration that reproduces the original scripted
// session against ws://localhost:8096/ws with no file or environment input.
func Default() *Config {
	return &Config{
		Probe: ProbeConfig{
			ServerURL:        "ws://localhost:8096/ws",
			Messages:         append([]string(nil), defaultMessages...),
			SendInterval:     500 * time.Millisecond,
			CloseDelay:       time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Echo: EchoConfig{
			Port:            8096,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PongWait:        60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MessageRate:     100,
			MessageBurst:    50,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: "logs/wsprobe.log",
		},
	}
}

// Load loads configuration in precedence order: defaults, then an optional
// YAML file, then environment variables with the WSPROBE_ prefix.
func Load() (*Config, error) {
	cfg := Default()

	configFile := os.Getenv("WSPROBE_CONFIG_FILE")
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("WSPROBE", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if len(cfg.Probe.Messages) == 0 {
		cfg.Probe.Messages = append([]string(nil), defaultMessages...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file; absent keys keep
// their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks structural constraints and the probe URL scheme.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return ValidateServerURL(c.Probe.ServerURL)
}

// ValidateServerURL rejects URLs that are not absolute ws:// or wss:// addresses.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid server url %q: scheme must be ws or wss", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server url %q: missing host", raw)
	}
	return nil
}

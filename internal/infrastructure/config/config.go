package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Broker backend identifiers.
const (
	BrokerMQTT = "mqtt"
	BrokerNATS = "nats"
)

// Config is the root configuration structure for mqttgate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	NATS      NATSConfig      `yaml:"nats"`
	Publish   PublishConfig   `yaml:"publish"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Watch     WatchConfig     `yaml:"watch"`
	History   HistoryConfig   `yaml:"history"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// BrokerConfig selects the message broker backend.
type BrokerConfig struct {
	// Type is "mqtt" (default) or "nats".
	Type string `yaml:"type" env:"MQTTGATE_BROKER_TYPE"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos" env:"MQTTGATE_MQTT_QOS"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"MQTTGATE_MQTT_HOST"`
	Port     int    `yaml:"port" env:"MQTTGATE_MQTT_PORT"`
	TLS      bool   `yaml:"tls" env:"MQTTGATE_MQTT_TLS"`
	ClientID string `yaml:"client_id" env:"MQTTGATE_MQTT_CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"MQTTGATE_MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTTGATE_MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// NATSConfig contains NATS server connection settings.
type NATSConfig struct {
	URL      string `yaml:"url" env:"MQTTGATE_NATS_URL"`
	Name     string `yaml:"name"`
	Username string `yaml:"username" env:"MQTTGATE_NATS_USERNAME"`
	Password string `yaml:"password" env:"MQTTGATE_NATS_PASSWORD"`
	Token    string `yaml:"token" env:"MQTTGATE_NATS_TOKEN"`

	// MaxReconnects is passed to nats.go; -1 means retry forever.
	MaxReconnects int `yaml:"max_reconnects"`

	// ReconnectWait is the delay between reconnect attempts (seconds).
	ReconnectWait int `yaml:"reconnect_wait"`
}

// PublishConfig controls how the gateway hands messages to the broker.
type PublishConfig struct {
	// Timeout bounds a single publish call (seconds).
	Timeout int `yaml:"timeout" env:"MQTTGATE_PUBLISH_TIMEOUT"`

	// Retained asks the MQTT broker to retain published messages.
	Retained bool `yaml:"retained" env:"MQTTGATE_PUBLISH_RETAINED"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"MQTTGATE_API_HOST"`
	Port     int              `yaml:"port" env:"MQTTGATE_API_PORT"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket connection settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// WatchConfig controls the broker-to-WebSocket relay.
type WatchConfig struct {
	Enabled bool   `yaml:"enabled" env:"MQTTGATE_WATCH_ENABLED"`
	Filter  string `yaml:"filter"`
	QoS     int    `yaml:"qos"`
}

// HistoryConfig controls the SQLite publish log.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"MQTTGATE_HISTORY_ENABLED"`
	Path        string `yaml:"path" env:"MQTTGATE_HISTORY_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"MQTTGATE_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"MQTTGATE_INFLUXDB_URL"`
	Token         string `yaml:"token" env:"MQTTGATE_INFLUXDB_TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"MQTTGATE_LOG_LEVEL"`
	Format string `yaml:"format" env:"MQTTGATE_LOG_FORMAT"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings.
// When Secret is empty the send endpoint is unauthenticated.
type JWTConfig struct {
	Secret string `yaml:"secret" env:"MQTTGATE_JWT_SECRET"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTGATE_SECTION_KEY
// For example: MQTTGATE_MQTT_HOST, MQTTGATE_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file exists.
func Default() (*Config, error) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Type: BrokerMQTT,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "mqttgate",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Name:          "mqttgate",
			MaxReconnects: -1,
			ReconnectWait: 2,
		},
		Publish: PublishConfig{
			Timeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Watch: WatchConfig{
			Filter: "#",
		},
		History: HistoryConfig{
			Path:        "./data/mqttgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies MQTTGATE_* environment variables declared in the
// struct tags. Unset variables leave the current value untouched.
func applyEnvOverrides(cfg *Config) error {
	return env.Parse(cfg)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch c.Broker.Type {
	case BrokerMQTT:
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.Broker.ClientID == "" {
			errs = append(errs, "mqtt.broker.client_id is required")
		}
	case BrokerNATS:
		if c.NATS.URL == "" {
			errs = append(errs, "nats.url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("broker.type must be %q or %q", BrokerMQTT, BrokerNATS))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Publish.Timeout < 1 {
		errs = append(errs, "publish.timeout must be at least 1 second")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	if c.Watch.Enabled {
		if c.Broker.Type != BrokerMQTT {
			errs = append(errs, "watch requires broker.type mqtt")
		}
		if c.Watch.Filter == "" {
			errs = append(errs, "watch.filter is required when watch is enabled")
		}
		if c.Watch.QoS < 0 || c.Watch.QoS > 2 {
			errs = append(errs, "watch.qos must be 0, 1, or 2")
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" || c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPublishTimeout returns the publish timeout as a Duration.
func (c *Config) GetPublishTimeout() time.Duration {
	return time.Duration(c.Publish.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

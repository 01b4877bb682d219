package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to a temporary config.yaml and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    host: "broker.local"
    port: 1884
    client_id: "gate-01"
  qos: 1
publish:
  timeout: 3
  retained: true
api:
  host: "127.0.0.1"
  port: 9090
history:
  enabled: true
  path: "/tmp/history.db"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, BrokerMQTT, cfg.Broker.Type)
	assert.Equal(t, "broker.local", cfg.MQTT.Broker.Host)
	assert.Equal(t, 1884, cfg.MQTT.Broker.Port)
	assert.Equal(t, "gate-01", cfg.MQTT.Broker.ClientID)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.True(t, cfg.Publish.Retained)
	assert.Equal(t, 3*time.Second, cfg.GetPublishTimeout())
	assert.Equal(t, 9090, cfg.API.Port)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.History.Path)

	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.GetReadTimeout())
	assert.Equal(t, "#", cfg.Watch.Filter)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
broker:
  type: "kafka"
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker.type")
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
mqtt:
  broker:
    host: "from-file"
`)

	t.Setenv("MQTTGATE_MQTT_HOST", "from-env")
	t.Setenv("MQTTGATE_MQTT_QOS", "2")
	t.Setenv("MQTTGATE_API_PORT", "8181")
	t.Setenv("MQTTGATE_LOG_LEVEL", "debug")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.MQTT.Broker.Host)
	assert.Equal(t, 2, cfg.MQTT.QoS)
	assert.Equal(t, 8181, cfg.API.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrideInvalidValue(t *testing.T) {
	configPath := writeConfig(t, "api:\n  port: 8080\n")
	t.Setenv("MQTTGATE_API_PORT", "not-a-number")

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, BrokerMQTT, cfg.Broker.Type)
	assert.Equal(t, "localhost", cfg.MQTT.Broker.Host)
	assert.Equal(t, 0, cfg.MQTT.QoS)
	assert.Equal(t, 5*time.Second, cfg.GetPublishTimeout())
	assert.False(t, cfg.History.Enabled)
	assert.False(t, cfg.InfluxDB.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(_ *Config) {},
		},
		{
			name: "nats backend",
			mutate: func(c *Config) {
				c.Broker.Type = BrokerNATS
			},
		},
		{
			name: "nats backend without url",
			mutate: func(c *Config) {
				c.Broker.Type = BrokerNATS
				c.NATS.URL = ""
			},
			wantErr: "nats.url",
		},
		{
			name: "unknown backend",
			mutate: func(c *Config) {
				c.Broker.Type = "amqp"
			},
			wantErr: "broker.type",
		},
		{
			name: "missing mqtt host",
			mutate: func(c *Config) {
				c.MQTT.Broker.Host = ""
			},
			wantErr: "mqtt.broker.host",
		},
		{
			name: "invalid mqtt port",
			mutate: func(c *Config) {
				c.MQTT.Broker.Port = 70000
			},
			wantErr: "mqtt.broker.port",
		},
		{
			name: "invalid QoS",
			mutate: func(c *Config) {
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name: "zero publish timeout",
			mutate: func(c *Config) {
				c.Publish.Timeout = 0
			},
			wantErr: "publish.timeout",
		},
		{
			name: "invalid api port",
			mutate: func(c *Config) {
				c.API.Port = 0
			},
			wantErr: "api.port",
		},
		{
			name: "tls without certificate",
			mutate: func(c *Config) {
				c.API.TLS.Enabled = true
			},
			wantErr: "api.tls",
		},
		{
			name: "watch on nats backend",
			mutate: func(c *Config) {
				c.Broker.Type = BrokerNATS
				c.Watch.Enabled = true
			},
			wantErr: "watch requires",
		},
		{
			name: "history without path",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.Path = ""
			},
			wantErr: "history.path",
		},
		{
			name: "influxdb without bucket",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: "influxdb.org",
		},
		{
			name: "short jwt secret",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = "short"
			},
			wantErr: "security.jwt.secret",
		},
		{
			name: "valid jwt secret",
			mutate: func(c *Config) {
				c.Security.JWT.Secret = validJWTSecret
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.QoS = 5
	cfg.API.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.qos")
	assert.Contains(t, err.Error(), "api.port")
}

func TestGetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 10, Write: 20, Idle: 30},
		},
		Publish: PublishConfig{Timeout: 2},
	}

	assert.Equal(t, 10*time.Second, cfg.GetReadTimeout())
	assert.Equal(t, 20*time.Second, cfg.GetWriteTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetIdleTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetPublishTimeout())
}

func TestLoad_ShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BrokerMQTT, cfg.Broker.Type)
	assert.Equal(t, 0, cfg.MQTT.QoS)
	assert.Equal(t, 5*time.Second, cfg.GetPublishTimeout())
	assert.Equal(t, "#", cfg.Watch.Filter)
	assert.Empty(t, cfg.Security.JWT.Secret)
}

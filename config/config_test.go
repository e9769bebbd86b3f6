package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0, cfg.PLC.Rack)
	assert.Equal(t, 1, cfg.PLC.Slot)
	assert.Equal(t, 1, cfg.PLC.DB)
	assert.Empty(t, cfg.PLC.Address)
	assert.Equal(t, ".", cfg.Output.Dir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PLC, cfg.PLC)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Load must not create the file")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
plc:
  address: 192.168.0.10
  slot: 2
  db: 7
  timeout: 3s
mqtt:
  - name: local
    enabled: true
    broker: localhost
    port: 1883
    root_topic: factory
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.10", cfg.PLC.Address)
	assert.Equal(t, 0, cfg.PLC.Rack)
	assert.Equal(t, 2, cfg.PLC.Slot)
	assert.Equal(t, 7, cfg.PLC.DB)
	assert.Equal(t, 3*time.Second, cfg.PLC.Timeout)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
	require.Len(t, cfg.MQTT, 1)
	assert.Equal(t, "factory", cfg.MQTT[0].RootTopic)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plc: [unterminated"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.PLC.Address = "10.1.1.1"
	cfg.Kafka = []KafkaConfig{{Name: "k", Enabled: true, Brokers: []string{"b:9092"}, Topic: "dumps"}}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.PLC, loaded.PLC)
	assert.Equal(t, cfg.Kafka, loaded.Kafka)
}

func TestSetPLC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetPLC("10.2.2.2", 0, 3, 0)
	assert.Equal(t, "10.2.2.2", cfg.PLC.Address)
	assert.Equal(t, 3, cfg.PLC.Slot)
	assert.Equal(t, 1, cfg.PLC.DB, "DB 0 keeps the previous value")

	cfg.SetPLC("10.2.2.2", 0, 3, 7)
	assert.Equal(t, 7, cfg.PLC.DB)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative rack", func(c *Config) { c.PLC.Rack = -1 }, true},
		{"negative slot", func(c *Config) { c.PLC.Slot = -1 }, true},
		{"zero db", func(c *Config) { c.PLC.DB = 0 }, true},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"upper level", func(c *Config) { c.Log.Level = "DEBUG" }, false},
		{"bad namespace", func(c *Config) { c.Namespace = "a/b" }, true},
		{"bad port", func(c *Config) { c.Web.Port = 70000 }, true},
		{"mqtt without broker", func(c *Config) { c.MQTT = []MQTTConfig{{Name: "m", Enabled: true}} }, true},
		{"disabled mqtt without broker", func(c *Config) { c.MQTT = []MQTTConfig{{Name: "m"}} }, false},
		{"mqtt bad qos", func(c *Config) { c.MQTT = []MQTTConfig{{Name: "m", Broker: "x", QoS: 3}} }, true},
		{"valkey without address", func(c *Config) { c.Valkey = []ValkeyConfig{{Name: "v", Enabled: true}} }, true},
		{"kafka without topic", func(c *Config) {
			c.Kafka = []KafkaConfig{{Name: "k", Enabled: true, Brokers: []string{"b:9092"}}}
		}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "10.0.0.1", PLCConfig{Address: "10.0.0.1"}.DisplayName())
	assert.Equal(t, "press", PLCConfig{Name: "press", Address: "10.0.0.1"}.DisplayName())
}

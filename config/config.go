// Package config handles configuration persistence for plclogger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Namespace      string         `yaml:"namespace,omitempty"` // Optional prefix for republished topics and keys
	PLC            PLCConfig      `yaml:"plc"`
	Output         OutputConfig   `yaml:"output"`
	Log            LogConfig      `yaml:"log"`
	Web            WebConfig      `yaml:"web"`
	MQTT           []MQTTConfig   `yaml:"mqtt,omitempty"`
	Valkey         []ValkeyConfig `yaml:"valkey,omitempty"`
	Kafka          []KafkaConfig  `yaml:"kafka,omitempty"`
	PublishTimeout time.Duration  `yaml:"publish_timeout,omitempty"` // Deadline for one snapshot fan-out

	dataMu sync.Mutex `yaml:"-"`
}

// PLCConfig holds the connection parameters of the PLC to read from.
type PLCConfig struct {
	Name    string        `yaml:"name,omitempty"` // Used in republished topics; defaults to the address
	Family  string        `yaml:"family,omitempty"`
	Address string        `yaml:"address"`
	Rack    int           `yaml:"rack"`
	Slot    int           `yaml:"slot"`
	DB      int           `yaml:"db"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DisplayName returns Name, or the address when no name is set.
func (p PLCConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Address
}

// OutputConfig controls where CSV files are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig holds logger settings. File is rotated by size when set.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// WebConfig holds HTTP API settings for serve mode.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Listen returns the host:port the API listens on.
func (w WebConfig) Listen() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// MQTTConfig holds MQTT publisher configuration.
type MQTTConfig struct {
	Name      string `yaml:"name"`
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	ClientID  string `yaml:"client_id"`
	RootTopic string `yaml:"root_topic"`
	QoS       byte   `yaml:"qos,omitempty"`
	Retain    bool   `yaml:"retain,omitempty"`
	UseTLS    bool   `yaml:"use_tls,omitempty"`
}

// ValkeyConfig holds Valkey/Redis publisher configuration.
type ValkeyConfig struct {
	Name           string        `yaml:"name"`
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"` // host:port format
	Password       string        `yaml:"password,omitempty"`
	Database       int           `yaml:"database"`
	KeyPrefix      string        `yaml:"key_prefix,omitempty"`
	UseTLS         bool          `yaml:"use_tls,omitempty"`
	KeyTTL         time.Duration `yaml:"key_ttl,omitempty"`         // TTL for keys (0 = no expiry)
	PublishChanges bool          `yaml:"publish_changes,omitempty"` // Also PUBLISH each snapshot
}

// KafkaConfig holds Kafka cluster configuration.
type KafkaConfig struct {
	Name          string        `yaml:"name"`
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic"`
	UseTLS        bool          `yaml:"use_tls,omitempty"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism string        `yaml:"sasl_mechanism,omitempty"` // PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	RequiredAcks  int           `yaml:"required_acks,omitempty"` // -1=all, 0=none, 1=leader
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	RetryBackoff  time.Duration `yaml:"retry_backoff,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
// The PLC defaults match the usual S7-300 placement: rack 0, slot 1, DB1.
func DefaultConfig() *Config {
	return &Config{
		PLC: PLCConfig{
			Family:  "s7",
			Rack:    0,
			Slot:    1,
			DB:      1,
			Timeout: 10 * time.Second,
		},
		Output: OutputConfig{Dir: "."},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		PublishTimeout: 5 * time.Second,
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "plclogger.yaml"
	}
	return filepath.Join(home, ".plclogger", "config.yaml")
}

// Load reads the config at path. A missing file yields the defaults and is not created.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SetPLC records the connection settings last used, so Save persists them.
func (c *Config) SetPLC(address string, rack, slot, db int) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.PLC.Address = address
	c.PLC.Rack = rack
	c.PLC.Slot = slot
	if db > 0 {
		c.PLC.DB = db
	}
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	c.dataMu.Lock()
	data, err := yaml.Marshal(c)
	c.dataMu.Unlock() // Release lock after marshal, before I/O

	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var validLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the values that cannot be corrected at use time.
// An empty PLC address is allowed here; the session rejects it on connect.
func (c *Config) Validate() error {
	if c.Namespace != "" && !IsValidNamespace(c.Namespace) {
		return fmt.Errorf("invalid namespace: must contain only alphanumeric characters, hyphens, underscores and dots")
	}
	if c.PLC.Rack < 0 {
		return fmt.Errorf("plc.rack must be >= 0, got %d", c.PLC.Rack)
	}
	if c.PLC.Slot < 0 {
		return fmt.Errorf("plc.slot must be >= 0, got %d", c.PLC.Slot)
	}
	if c.PLC.DB <= 0 {
		return fmt.Errorf("plc.db must be > 0, got %d", c.PLC.DB)
	}
	if c.PLC.Timeout < 0 {
		return fmt.Errorf("plc.timeout must not be negative")
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port %d out of range", c.Web.Port)
	}
	for _, m := range c.MQTT {
		if m.Enabled && m.Broker == "" {
			return fmt.Errorf("mqtt %q: broker is required", m.Name)
		}
		if m.QoS > 2 {
			return fmt.Errorf("mqtt %q: qos must be 0, 1 or 2", m.Name)
		}
	}
	for _, v := range c.Valkey {
		if v.Enabled && v.Address == "" {
			return fmt.Errorf("valkey %q: address is required", v.Name)
		}
	}
	for _, k := range c.Kafka {
		if k.Enabled && (len(k.Brokers) == 0 || k.Topic == "") {
			return fmt.Errorf("kafka %q: brokers and topic are required", k.Name)
		}
	}
	return nil
}

// IsValidNamespace checks that ns only uses characters safe in topics and keys.
func IsValidNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}

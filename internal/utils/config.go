package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Logging struct {
		Level string `yaml:"level"` // zerolog level name (debug, info, warn, ...)
	} `yaml:"logging"`

	MQTT struct {
		Broker          string `yaml:"broker"`           // MQTT broker address
		ClientID        string `yaml:"client_id"`        // MQTT client ID prefix
		Username        string `yaml:"username"`         // Optional broker username
		Password        string `yaml:"password"`         // Optional broker password
		CACertificate   string `yaml:"ca_certificate"`   // Optional path to the CA certificate
		DiscoveryPrefix string `yaml:"discovery_prefix"` // Home Assistant discovery prefix
		BaseTopic       string `yaml:"base_topic"`       // Root of attribute and availability topics
		QOS             int    `yaml:"qos"`              // MQTT QoS level for published messages
	} `yaml:"mqtt"`

	Heartbeat struct {
		Enabled        bool          `yaml:"enabled"`         // Publish bridge health on <base_topic>/bridge
		Interval       time.Duration `yaml:"interval"`        // Delay between two heartbeats
		ProcessMetrics bool          `yaml:"process_metrics"` // Include CPU and memory usage of the agent
	} `yaml:"heartbeat"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"` // Serve Prometheus metrics over HTTP
		Addr    string `yaml:"addr"`    // Listen address of the metrics server
	} `yaml:"metrics"`

	Integration struct {
		EntriesFile      string        `yaml:"entries_file"`      // Path to the persisted config entries
		ScanInterval     time.Duration `yaml:"scan_interval"`     // Delay between two polls of a tracker
		ParallelUpdates  int           `yaml:"parallel_updates"`  // Concurrent tracker updates per entry
		RequestTimeout   time.Duration `yaml:"request_timeout"`   // Timeout of a single vendor API request
		DisabledTrackers []string      `yaml:"disabled_trackers"` // Tracker ids that are never polled
	} `yaml:"integration"`

	Geocoding struct {
		Enabled    bool   `yaml:"enabled"`      // Enable reverse geocoding of tracker positions
		MapsAPIKey string `yaml:"maps_api_key"` // Google maps API Key
		Language   string `yaml:"language"`     // Language of the formatted address
	} `yaml:"geocoding"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filename, err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "invoxia-agent"
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = constants.DefaultDiscoveryPrefix
	}
	if c.MQTT.BaseTopic == "" {
		c.MQTT.BaseTopic = constants.DefaultBaseTopic
	}
	if c.MQTT.QOS == 0 {
		c.MQTT.QOS = constants.DefaultQOS
	}
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = time.Minute
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9115"
	}
	if c.Integration.EntriesFile == "" {
		c.Integration.EntriesFile = "data/entries.json"
	}
	if c.Integration.ScanInterval == 0 {
		c.Integration.ScanInterval = constants.ScanInterval
	}
	if c.Integration.ParallelUpdates == 0 {
		c.Integration.ParallelUpdates = constants.ParallelUpdates
	}
	if c.Integration.RequestTimeout == 0 {
		c.Integration.RequestTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QOS)
	}
	if c.Integration.ScanInterval < 0 {
		return errors.New("integration.scan_interval must be positive")
	}
	if c.Integration.ParallelUpdates < 0 {
		return errors.New("integration.parallel_updates must be positive")
	}
	if c.Heartbeat.Interval < 0 {
		return errors.New("heartbeat.interval must be positive")
	}
	if c.Geocoding.Enabled && c.Geocoding.MapsAPIKey == "" {
		return errors.New("geocoding.maps_api_key is required when geocoding is enabled")
	}
	return nil
}

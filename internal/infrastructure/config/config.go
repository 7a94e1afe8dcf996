package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a horn node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Link     LinkConfig     `yaml:"link"`
	Bus      BusConfig      `yaml:"bus"`
	Actuator ActuatorConfig `yaml:"actuator"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Health   HealthConfig   `yaml:"health"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LinkConfig contains network bring-up settings.
type LinkConfig struct {
	// Station selects how the link is brought up: "netif" polls Interface for an
	// address, "preset" trusts networking managed outside the node.
	Station   string `yaml:"station"`
	Interface string `yaml:"interface"`
	SSID      string `yaml:"ssid"`
	Password  string `yaml:"password"`

	MaxRetry int `yaml:"max_retry"`
	// RetryPolicy is "give_up" or "keep_retrying".
	RetryPolicy string `yaml:"retry_policy"`

	// Timeout bounds the whole bring-up in seconds. Zero waits until shutdown.
	Timeout        int `yaml:"timeout"`
	AttemptTimeout int `yaml:"attempt_timeout"`

	Supplicant SupplicantConfig `yaml:"supplicant"`
}

// SupplicantConfig describes an optional link supplicant daemon started before connecting.
type SupplicantConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Binary     string   `yaml:"binary"`
	ConfigPath string   `yaml:"config_path"`
	Args       []string `yaml:"args"`
}

// BusConfig contains messaging bus settings.
type BusConfig struct {
	// Transport is "mqtt", "mqttv5" or "loopback".
	Transport string `yaml:"transport"`
	// Mode is "client" or "peer".
	Mode string `yaml:"mode"`
	// Connect is an optional endpoint in protocol/host:port form.
	Connect        string             `yaml:"connect"`
	Topic          string             `yaml:"topic"`
	Broker         BusBrokerConfig    `yaml:"broker"`
	Auth           BusAuthConfig      `yaml:"auth"`
	QoS            int                `yaml:"qos"`
	PublishTimeout int                `yaml:"publish_timeout"`
	Reconnect      BusReconnectConfig `yaml:"reconnect"`
}

// BusBrokerConfig contains the default broker used when no connect endpoint is set.
type BusBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// BusAuthConfig contains broker credentials.
type BusAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BusReconnectConfig contains broker reconnection settings.
type BusReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// ActuatorConfig selects and configures the actuator output.
type ActuatorConfig struct {
	// Driver is "gpio", "console" or "memory".
	Driver    string `yaml:"driver"`
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
	// Interval is the console indicator refresh period in milliseconds.
	Interval int `yaml:"interval"`
}

// APIConfig contains the diagnostics HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HealthConfig contains health reporting settings.
type HealthConfig struct {
	Interval int `yaml:"interval"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// Configuration is loaded in this order:
//  1. Default values
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HORNNODE_SECTION_KEY
// For example: HORNNODE_BUS_CONNECT, HORNNODE_LINK_PASSWORD
func Load(path string) (*Config, error) {
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:   "horn-node",
			Name: "Horn actuator",
		},
		Link: LinkConfig{
			Station:        "preset",
			Interface:      "wlan0",
			MaxRetry:       5,
			RetryPolicy:    "give_up",
			Timeout:        60,
			AttemptTimeout: 10,
			Supplicant: SupplicantConfig{
				Binary:     "wpa_supplicant",
				ConfigPath: "./data/wpa_supplicant.conf",
			},
		},
		Bus: BusConfig{
			Transport: "mqtt",
			Mode:      "client",
			Topic:     "Vehicle/Body/Horn/IsActive",
			Broker: BusBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "horn-node",
			},
			QoS:            1,
			PublishTimeout: 5,
			Reconnect: BusReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Actuator: ActuatorConfig{
			Driver:   "console",
			Chip:     "gpiochip0",
			Line:     25,
			Interval: 500,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/hornnode.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Health: HealthConfig{
			Interval: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HORNNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Link
	if v := os.Getenv("HORNNODE_LINK_SSID"); v != "" {
		cfg.Link.SSID = v
	}
	if v := os.Getenv("HORNNODE_LINK_PASSWORD"); v != "" {
		cfg.Link.Password = v
	}
	if v := os.Getenv("HORNNODE_LINK_MAX_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Link.MaxRetry = n
		}
	}
	if v := os.Getenv("HORNNODE_LINK_RETRY_POLICY"); v != "" {
		cfg.Link.RetryPolicy = v
	}

	// Bus
	if v := os.Getenv("HORNNODE_BUS_TRANSPORT"); v != "" {
		cfg.Bus.Transport = v
	}
	if v := os.Getenv("HORNNODE_BUS_MODE"); v != "" {
		cfg.Bus.Mode = v
	}
	if v := os.Getenv("HORNNODE_BUS_CONNECT"); v != "" {
		cfg.Bus.Connect = v
	}
	if v := os.Getenv("HORNNODE_BUS_HOST"); v != "" {
		cfg.Bus.Broker.Host = v
	}
	if v := os.Getenv("HORNNODE_BUS_USERNAME"); v != "" {
		cfg.Bus.Auth.Username = v
	}
	if v := os.Getenv("HORNNODE_BUS_PASSWORD"); v != "" {
		cfg.Bus.Auth.Password = v
	}

	// Actuator
	if v := os.Getenv("HORNNODE_ACTUATOR_DRIVER"); v != "" {
		cfg.Actuator.Driver = v
	}

	// Database
	if v := os.Getenv("HORNNODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("HORNNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// The connect endpoint is deliberately not validated here: an endpoint that does
// not match protocol/host:port is dropped when the session config is built.
func (c *Config) Validate() error {
	var errs []string

	if c.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	// Link
	switch c.Link.Station {
	case "netif", "preset":
	default:
		errs = append(errs, "link.station must be netif or preset")
	}
	if c.Link.Station == "netif" && c.Link.Interface == "" {
		errs = append(errs, "link.interface is required for the netif station")
	}
	if c.Link.MaxRetry < 0 {
		errs = append(errs, "link.max_retry must not be negative")
	}
	switch c.Link.RetryPolicy {
	case "give_up", "keep_retrying":
	default:
		errs = append(errs, "link.retry_policy must be give_up or keep_retrying")
	}
	if c.Link.Timeout < 0 {
		errs = append(errs, "link.timeout must not be negative")
	}
	if c.Link.AttemptTimeout <= 0 {
		errs = append(errs, "link.attempt_timeout must be positive")
	}
	if c.Link.Supplicant.Enabled && c.Link.Supplicant.Binary == "" {
		errs = append(errs, "link.supplicant.binary is required when the supplicant is enabled")
	}
	if c.Link.Supplicant.Enabled && c.Link.Supplicant.ConfigPath != "" {
		if c.Link.SSID == "" || len(c.Link.SSID) > 32 {
			errs = append(errs, "link.ssid must be 1 to 32 bytes when the supplicant config is written")
		}
		if c.Link.Password != "" && !wpaPassphrase(c.Link.Password) {
			errs = append(errs, "link.password must be 8 to 63 printable ASCII characters")
		}
	}

	// Bus
	switch c.Bus.Transport {
	case "mqtt", "mqttv5", "loopback":
	default:
		errs = append(errs, "bus.transport must be mqtt, mqttv5 or loopback")
	}
	switch c.Bus.Mode {
	case "client", "peer":
	default:
		errs = append(errs, "bus.mode must be client or peer")
	}
	if c.Bus.Topic == "" {
		errs = append(errs, "bus.topic is required")
	}
	if c.Bus.QoS < 0 || c.Bus.QoS > 2 {
		errs = append(errs, "bus.qos must be 0, 1, or 2")
	}
	if c.Bus.PublishTimeout <= 0 {
		errs = append(errs, "bus.publish_timeout must be positive")
	}

	// Actuator
	switch c.Actuator.Driver {
	case "gpio":
		if c.Actuator.Chip == "" {
			errs = append(errs, "actuator.chip is required for the gpio driver")
		}
		if c.Actuator.Line < 0 {
			errs = append(errs, "actuator.line must not be negative")
		}
	case "console":
		if c.Actuator.Interval <= 0 {
			errs = append(errs, "actuator.interval must be positive for the console driver")
		}
	case "memory":
	default:
		errs = append(errs, "actuator.driver must be gpio, console or memory")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetLinkTimeout returns the bring-up timeout as a Duration.
func (c *Config) GetLinkTimeout() time.Duration {
	return time.Duration(c.Link.Timeout) * time.Second
}

// GetPublishTimeout returns the bus publish timeout as a Duration.
func (c *Config) GetPublishTimeout() time.Duration {
	return time.Duration(c.Bus.PublishTimeout) * time.Second
}

// GetHealthInterval returns the health report interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Health.Interval) * time.Second
}

func wpaPassphrase(p string) bool {
	if len(p) < 8 || len(p) > 63 {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] > 0x7e {
			return false
		}
	}
	return true
}

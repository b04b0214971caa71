package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the C-Gate bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	CGate     CGateConfig     `yaml:"cgate"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CGateConfig contains the C-Gate server connection settings.
type CGateConfig struct {
	// Host is the C-Gate server address.
	Host string `yaml:"host"`

	// CommandPort is the C-Gate command port (request/response).
	// Default: 20023
	CommandPort int `yaml:"command_port"`

	// EventPort is the C-Gate event port (push-only broadcast).
	// Default: 20025
	EventPort int `yaml:"event_port"`

	// Project is the C-Gate project slug used in command addresses
	// (e.g. "HOME" in "ON //HOME/254/56/4").
	Project string `yaml:"project"`

	// Connection contains the command-socket pool settings.
	Connection ConnectionConfig `yaml:"connection"`
}

// ConnectionConfig contains the command connection pool settings.
type ConnectionConfig struct {
	// PoolSize is the number of persistent command sockets.
	// Default: 3, minimum: 1
	PoolSize int `yaml:"pool_size"`

	// HealthCheckIntervalMs is how often each slot's state is verified.
	// Default: 30000, minimum: 5000
	HealthCheckIntervalMs int `yaml:"health_check_interval_ms"`

	// KeepAliveIntervalMs is how often a benign comment line is written
	// to each healthy slot to keep the session alive.
	// Default: 60000, minimum: 10000
	KeepAliveIntervalMs int `yaml:"keep_alive_interval_ms"`

	// ConnectTimeoutMs is the per-dial timeout.
	// Default: 5000, minimum: 1000
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`

	// MaxRetries limits startup connection rounds before the process
	// gives up. Reconnection after startup retries forever with backoff.
	// Default: 3, minimum: 1
	MaxRetries int `yaml:"max_retries"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// RetainReads marks cbus/read state and level publishes as retained.
	RetainReads bool `yaml:"retain_reads"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BridgeConfig contains command pipeline and getall settings.
type BridgeConfig struct {
	// MessageIntervalMs is the spacing between dispatched C-Gate commands.
	// Default: 200, range: 10-10000
	MessageIntervalMs int `yaml:"message_interval_ms"`

	// GetAllOnStart requests the level of every group at startup.
	GetAllOnStart bool `yaml:"getall_on_start"`

	// GetAllPeriodS repeats the getall request every N seconds. 0 disables.
	GetAllPeriodS int `yaml:"getall_period_s"`

	// GetAllNetApp is the network/application pair to query,
	// e.g. "254/56".
	GetAllNetApp string `yaml:"getall_netapp"`

	// LabelFile is an optional JSON label map path.
	LabelFile string `yaml:"label_file"`

	// LabelFileWatch enables hot reload of the label map on file change.
	LabelFileWatch bool `yaml:"label_file_watch"`
}

// DiscoveryConfig contains Home Assistant MQTT discovery settings.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prefix is the discovery topic prefix. Default: "homeassistant"
	Prefix string `yaml:"prefix"`

	// Networks lists the C-Bus networks to walk.
	Networks []int `yaml:"networks"`

	// AnnouncePeriodS republishes discovery every N seconds. 0 disables.
	AnnouncePeriodS int `yaml:"announce_period_s"`

	// Per-class application ID overrides. The lighting application (56)
	// is always classified as a dimmable light regardless of these.
	CoverAppIDs  []int `yaml:"cover_app_ids"`
	SwitchAppIDs []int `yaml:"switch_app_ids"`
	RelayAppIDs  []int `yaml:"relay_app_ids"`
	PIRAppIDs    []int `yaml:"pir_app_ids"`
}

// InfluxDBConfig contains optional level-event telemetry settings.
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

// Configuration limits from the wire-protocol and pool design.
const (
	minPoolSize            = 1
	minHealthCheckMs       = 5000
	minKeepAliveMs         = 10000
	minConnectTimeoutMs    = 1000
	minMaxRetries          = 1
	minMessageIntervalMs   = 10
	maxMessageIntervalMs   = 10000
	maxQoS                 = 2
	maxPort                = 65535
	defaultCommandPort     = 20023
	defaultEventPort       = 20025
	defaultDiscoveryPrefix = "homeassistant"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CGATEWEB_SECTION_KEY
// For example: CGATEWEB_CGATE_HOST, CGATEWEB_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		CGate: CGateConfig{
			Host:        "localhost",
			CommandPort: defaultCommandPort,
			EventPort:   defaultEventPort,
			Connection: ConnectionConfig{
				PoolSize:              3,
				HealthCheckIntervalMs: 30000,
				KeepAliveIntervalMs:   60000,
				ConnectTimeoutMs:      5000,
				MaxRetries:            3,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cgateweb",
			},
			QoS: 0,
		},
		Bridge: BridgeConfig{
			MessageIntervalMs: 200,
			GetAllNetApp:      "254/56",
		},
		Discovery: DiscoveryConfig{
			Prefix: defaultDiscoveryPrefix,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CGATEWEB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// C-Gate
	if v := os.Getenv("CGATEWEB_CGATE_HOST"); v != "" {
		cfg.CGate.Host = v
	}
	if v := os.Getenv("CGATEWEB_CGATE_PROJECT"); v != "" {
		cfg.CGate.Project = v
	}

	// MQTT
	if v := os.Getenv("CGATEWEB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CGATEWEB_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("CGATEWEB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CGATEWEB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CGATEWEB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Configuration errors are fatal: the process must not start with an
// invalid pool size or out-of-range throttle interval, because both
// change the bridge's externally visible behaviour.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// C-Gate validation
	if c.CGate.Host == "" {
		errs = append(errs, "cgate.host is required")
	}
	if c.CGate.Project == "" {
		errs = append(errs, "cgate.project is required")
	}
	if c.CGate.CommandPort < 1 || c.CGate.CommandPort > maxPort {
		errs = append(errs, "cgate.command_port must be between 1 and 65535")
	}
	if c.CGate.EventPort < 1 || c.CGate.EventPort > maxPort {
		errs = append(errs, "cgate.event_port must be between 1 and 65535")
	}

	// Pool validation
	conn := c.CGate.Connection
	if conn.PoolSize < minPoolSize {
		errs = append(errs, fmt.Sprintf("cgate.connection.pool_size must be at least %d", minPoolSize))
	}
	if conn.HealthCheckIntervalMs < minHealthCheckMs {
		errs = append(errs, fmt.Sprintf("cgate.connection.health_check_interval_ms must be at least %d", minHealthCheckMs))
	}
	if conn.KeepAliveIntervalMs < minKeepAliveMs {
		errs = append(errs, fmt.Sprintf("cgate.connection.keep_alive_interval_ms must be at least %d", minKeepAliveMs))
	}
	if conn.ConnectTimeoutMs < minConnectTimeoutMs {
		errs = append(errs, fmt.Sprintf("cgate.connection.connect_timeout_ms must be at least %d", minConnectTimeoutMs))
	}
	if conn.MaxRetries < minMaxRetries {
		errs = append(errs, fmt.Sprintf("cgate.connection.max_retries must be at least %d", minMaxRetries))
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > maxPort {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > maxQoS {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Bridge validation
	if c.Bridge.MessageIntervalMs < minMessageIntervalMs || c.Bridge.MessageIntervalMs > maxMessageIntervalMs {
		errs = append(errs, fmt.Sprintf("bridge.message_interval_ms must be between %d and %d", minMessageIntervalMs, maxMessageIntervalMs))
	}
	if c.Bridge.GetAllPeriodS < 0 {
		errs = append(errs, "bridge.getall_period_s must not be negative")
	}
	if c.Bridge.GetAllNetApp != "" && !validNetApp(c.Bridge.GetAllNetApp) {
		errs = append(errs, "bridge.getall_netapp must be of the form network/application, e.g. 254/56")
	}

	// Discovery validation
	if c.Discovery.Enabled {
		if c.Discovery.Prefix == "" {
			errs = append(errs, "discovery.prefix is required when discovery is enabled")
		}
		if len(c.Discovery.Networks) == 0 {
			errs = append(errs, "discovery.networks must list at least one network when discovery is enabled")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validNetApp reports whether s is a two-component numeric path like "254/56".
func validNetApp(s string) bool {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err != nil || n < 0 {
			return false
		}
	}
	return true
}

// MessageInterval returns the command throttle interval as a Duration.
func (c *Config) MessageInterval() time.Duration {
	return time.Duration(c.Bridge.MessageIntervalMs) * time.Millisecond
}

// HealthCheckInterval returns the pool health check interval as a Duration.
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.CGate.Connection.HealthCheckIntervalMs) * time.Millisecond
}

// KeepAliveInterval returns the pool keep-alive interval as a Duration.
func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.CGate.Connection.KeepAliveIntervalMs) * time.Millisecond
}

// ConnectTimeout returns the per-dial timeout as a Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.CGate.Connection.ConnectTimeoutMs) * time.Millisecond
}

// GetAllPeriod returns the periodic getall interval, or zero if disabled.
func (c *Config) GetAllPeriod() time.Duration {
	return time.Duration(c.Bridge.GetAllPeriodS) * time.Second
}

// AnnouncePeriod returns the periodic discovery interval, or zero if disabled.
func (c *Config) AnnouncePeriod() time.Duration {
	return time.Duration(c.Discovery.AnnouncePeriodS) * time.Second
}

// CommandAddr returns the host:port of the C-Gate command socket.
func (c *Config) CommandAddr() string {
	return fmt.Sprintf("%s:%d", c.CGate.Host, c.CGate.CommandPort)
}

// EventAddr returns the host:port of the C-Gate event socket.
func (c *Config) EventAddr() string {
	return fmt.Sprintf("%s:%d", c.CGate.Host, c.CGate.EventPort)
}

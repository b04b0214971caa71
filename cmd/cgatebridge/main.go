// cgatebridge - C-Bus to MQTT bridge
//
// This is the main entry point for the C-Gate bridge. It connects a
// Clipsal C-Gate server to an MQTT broker, translating C-Bus events
// into cbus/read topics and cbus/write commands into C-Gate verbs,
// with optional Home Assistant discovery and InfluxDB telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nerrad567/cgate-bridge/internal/bridges/cgate"
	"github.com/nerrad567/cgate-bridge/internal/discovery"
	"github.com/nerrad567/cgate-bridge/internal/infrastructure/config"
	"github.com/nerrad567/cgate-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/cgate-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/cgate-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cgate-bridge/internal/labels"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// metricsInterval is how often bridge counters are written to InfluxDB.
const metricsInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting cgateweb",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Load the label map (optional)
	labelStore, err := labels.Load(cfg.Bridge.LabelFile)
	if err != nil {
		return fmt.Errorf("loading label file: %w", err)
	}
	defer labelStore.Close()
	labelStore.SetLogger(log)
	if cfg.Bridge.LabelFile != "" {
		log.Info("label map loaded", "path", cfg.Bridge.LabelFile)
	}

	// Start the C-Gate bridge
	bridge, err := startBridge(cfg, mqttClient, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting C-Gate bridge: %w", err)
	}
	defer func() {
		log.Info("stopping C-Gate bridge")
		bridge.Stop()
	}()

	// Start the discovery engine
	engine, err := startDiscovery(cfg, labelStore, mqttClient, bridge, log)
	if err != nil {
		return fmt.Errorf("starting discovery: %w", err)
	}
	defer func() {
		log.Info("stopping discovery")
		engine.Stop()
	}()

	// A changed label map re-announces so Home Assistant picks up new
	// names, overrides, and exclusions.
	if cfg.Bridge.LabelFile != "" && cfg.Bridge.LabelFileWatch {
		if watchErr := labelStore.Watch(engine.Announce); watchErr != nil {
			return fmt.Errorf("watching label file: %w", watchErr)
		}
		log.Info("label file watch enabled", "path", cfg.Bridge.LabelFile)
	}

	// Prime controller state with a full level sweep
	startGetAll(ctx, cfg, bridge, log)

	// Periodic bridge metrics to InfluxDB
	if influxClient != nil {
		go writeMetrics(ctx, bridge, influxClient)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Discovery engine
	// 2. C-Gate bridge
	// 3. Label store
	// 4. InfluxDB (if enabled)
	// 5. MQTT

	log.Info("cgateweb stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CGATEWEB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CGATEWEB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// C-Gate health is verified during bridge Start() - it establishes
	// the command pool and event connection before returning.

	return nil
}

// startBridge initialises and starts the C-Gate protocol bridge.
//
// Parameters:
//   - cfg: Application configuration
//   - mqttClient: MQTT client for publishing/subscribing
//   - influxClient: Optional telemetry sink (may be nil)
//   - log: Logger instance
//
// Returns:
//   - *cgate.Bridge: Running bridge
//   - error: If the bridge fails to start
func startBridge(cfg *config.Config, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) (*cgate.Bridge, error) {
	// A nil *influxdb.Client must stay a nil interface, not a typed nil.
	var telemetry cgate.TelemetrySink
	if influxClient != nil {
		telemetry = influxClient
	}

	bridge, err := cgate.NewBridge(cgate.BridgeOptions{
		Project:             cfg.CGate.Project,
		CommandAddr:         cfg.CommandAddr(),
		EventAddr:           cfg.EventAddr(),
		PoolSize:            cfg.CGate.Connection.PoolSize,
		ConnectTimeout:      cfg.ConnectTimeout(),
		HealthCheckInterval: cfg.HealthCheckInterval(),
		KeepAliveInterval:   cfg.KeepAliveInterval(),
		MaxRetries:          cfg.CGate.Connection.MaxRetries,
		MessageInterval:     cfg.MessageInterval(),
		MQTT:                &mqttBridgeAdapter{client: mqttClient},
		QoS:                 byte(cfg.MQTT.QoS),
		RetainReads:         cfg.MQTT.RetainReads,
		Telemetry:           telemetry,
		Logger:              log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	log.Info("starting C-Gate bridge",
		"command_addr", cfg.CommandAddr(),
		"event_addr", cfg.EventAddr(),
		"pool_size", cfg.CGate.Connection.PoolSize,
	)

	if err := bridge.Start(); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}

	return bridge, nil
}

// startDiscovery initialises the Home Assistant discovery engine and
// wires it to the bridge's tree and announce callbacks.
//
// Parameters:
//   - cfg: Application configuration
//   - labelStore: Label map for names, overrides, and exclusions
//   - mqttClient: MQTT client for retained config publishes
//   - bridge: Running C-Gate bridge
//   - log: Logger instance
//
// Returns:
//   - *discovery.Engine: Running engine
//   - error: If the engine cannot be created
func startDiscovery(cfg *config.Config, labelStore *labels.Store, mqttClient *mqtt.Client, bridge *cgate.Bridge, log *logging.Logger) (*discovery.Engine, error) {
	engine, err := discovery.New(discovery.Options{
		Config:    cfg.Discovery,
		Labels:    labelStore,
		Publisher: mqttClient,
		Requester: bridge,
		QoS:       byte(cfg.MQTT.QoS),
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating discovery engine: %w", err)
	}

	// Completed tree walks and manual announce requests flow from the
	// bridge into the engine.
	bridge.SetTreeHandler(engine.HandleTree)
	bridge.SetAnnounceHandler(engine.Announce)

	if cfg.Discovery.Enabled {
		log.Info("discovery enabled",
			"prefix", cfg.Discovery.Prefix,
			"networks", cfg.Discovery.Networks,
		)
		engine.Announce()
		engine.Start(cfg.AnnouncePeriod())
	} else {
		log.Info("discovery disabled")
	}

	return engine, nil
}

// startGetAll issues the initial level sweep and, when configured,
// repeats it periodically so controllers recover missed events.
func startGetAll(ctx context.Context, cfg *config.Config, bridge *cgate.Bridge, log *logging.Logger) {
	network, app, ok := splitNetApp(cfg.Bridge.GetAllNetApp)
	if !ok {
		return
	}

	if cfg.Bridge.GetAllOnStart {
		log.Info("requesting initial level sweep", "network", network, "application", app)
		bridge.RequestGetAll(network, app)
	}

	period := cfg.GetAllPeriod()
	if period <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bridge.RequestGetAll(network, app)
			}
		}
	}()
	log.Info("periodic level sweep enabled", "period", period)
}

// splitNetApp splits a "network/application" pair like "254/56".
func splitNetApp(s string) (network, app string, ok bool) {
	network, app, found := strings.Cut(s, "/")
	if !found || network == "" || app == "" {
		return "", "", false
	}
	return network, app, true
}

// writeMetrics periodically records bridge counters to InfluxDB.
func writeMetrics(ctx context.Context, bridge *cgate.Bridge, influxClient *influxdb.Client) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := bridge.GetMetrics()
			influxClient.WriteBridgeMetric("pool", "healthy_connections", float64(m.HealthyConnections))
			influxClient.WriteBridgeMetric("events", "connected", boolMetric(m.EventConnected))
			influxClient.WriteBridgeMetric("queue", "depth", float64(m.QueueDepth))
			influxClient.WriteBridgeMetric("queue", "dropped", float64(m.QueueDropped))
			influxClient.WriteBridgeMetric("correlator", "pending", float64(m.PendingLevels))
		}
	}
}

// boolMetric maps a boolean gauge onto 0/1.
func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the
// bridge's MQTTClient interface. The only difference is the Subscribe
// handler signature:
// - Infrastructure mqtt: func(topic string, payload []byte) error
// - Bridge expects: func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements cgate.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements cgate.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements cgate.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

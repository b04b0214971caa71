package cgate

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/cgate-bridge/internal/infrastructure/mqtt"
)

// MQTT payloads for group state.
const (
	payloadOn  = "ON"
	payloadOff = "OFF"
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// TelemetrySink records level events for dashboards. It is optional;
// a nil sink disables telemetry.
type TelemetrySink interface {
	WriteLevelEvent(network, app, group, action string, raw, percent int)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Project is the C-Gate project name used in object paths.
	Project string

	// CommandAddr and EventAddr are the gateway ports, host:port.
	CommandAddr string
	EventAddr   string

	// PoolSize is the number of command-port connections.
	PoolSize int

	// Connection timing. Zero values use sensible defaults.
	ConnectTimeout      time.Duration
	HealthCheckInterval time.Duration
	KeepAliveInterval   time.Duration
	MaxRetries          int

	// MessageInterval is the outbound command throttle.
	MessageInterval time.Duration

	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// QoS applies to all bridge publishes and subscriptions.
	QoS byte

	// RetainReads marks state and level publishes as retained.
	RetainReads bool

	// Telemetry is an optional level-event sink.
	Telemetry TelemetrySink

	// Logger is optional structured logging.
	Logger Logger
}

// Bridge orchestrates bidirectional translation between C-Gate and MQTT.
// It handles:
//   - Receiving commands on cbus/write topics and dispatching C-Gate verbs
//   - Receiving event-stream lines and publishing state updates
//   - Correlating GET level replies with relative ramp operations
//   - Collecting TREEXML responses for discovery
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	opts       BridgeOptions
	mqtt       MQTTClient
	pool       *Pool
	events     *EventConnection
	queue      *CommandQueue
	correlator *Correlator
	topics     mqtt.Topics

	// Per-slot TREEXML collectors; C-Gate interleaves nothing within a
	// socket but different slots carry independent responses.
	treeMu         sync.Mutex
	treeCollectors map[int]*treeCollector
	treeNetwork    string

	// onTree receives completed TREEXML documents.
	onTree   func(network, xmlDoc string)
	onTreeMu sync.RWMutex

	// onAnnounce fires when a discovery announce request arrives.
	onAnnounce   func()
	onAnnounceMu sync.RWMutex

	stopOnce sync.Once

	logSink
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Project == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if opts.CommandAddr == "" || opts.EventAddr == "" {
		return nil, fmt.Errorf("command and event addresses are required")
	}

	b := &Bridge{
		opts:           opts,
		mqtt:           opts.MQTT,
		correlator:     NewCorrelator(0),
		treeCollectors: make(map[int]*treeCollector),
	}

	b.pool = NewPool(PoolConfig{
		Addr:                opts.CommandAddr,
		Size:                opts.PoolSize,
		ConnectTimeout:      opts.ConnectTimeout,
		HealthCheckInterval: opts.HealthCheckInterval,
		KeepAliveInterval:   opts.KeepAliveInterval,
		MaxStartRetries:     opts.MaxRetries,
	}, b.handleResponseLine)

	b.events = NewEventConnection(opts.EventAddr, opts.ConnectTimeout, b.handleEventLine)
	b.queue = NewCommandQueue(opts.MessageInterval, b.pool.Execute)

	if opts.Logger != nil {
		b.SetLogger(opts.Logger)
		b.pool.SetLogger(opts.Logger)
		b.events.SetLogger(opts.Logger)
		b.queue.SetLogger(opts.Logger)
		b.correlator.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
//
// It subscribes to the write topics, brings up the command pool and the
// event connection, and starts the throttled dispatcher. Startup fails
// when no command socket can be established or the event port is
// unreachable.
func (b *Bridge) Start() error {
	writeTopic := b.topics.AllWrites()
	if err := b.mqtt.Subscribe(writeTopic, b.opts.QoS, b.handleWriteMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", writeTopic)

	if err := b.pool.Start(); err != nil {
		return fmt.Errorf("command pool: %w", err)
	}

	if err := b.events.Start(); err != nil {
		b.pool.Stop()
		return fmt.Errorf("event connection: %w", err)
	}

	b.queue.Start()

	b.logInfo("bridge started",
		"project", b.opts.Project,
		"command_addr", b.opts.CommandAddr,
		"event_addr", b.opts.EventAddr)
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.queue.Stop()
		b.correlator.Stop()
		b.events.Stop()
		b.pool.Stop()
		b.logInfo("bridge stopped")
	})
}

// SetTreeHandler installs the callback for completed TREEXML documents.
// The handler receives the network address and the raw XML.
func (b *Bridge) SetTreeHandler(handler func(network, xmlDoc string)) {
	b.onTreeMu.Lock()
	b.onTree = handler
	b.onTreeMu.Unlock()
}

// SetAnnounceHandler installs the callback fired when an announce
// request arrives on cbus/write/bridge/announce.
func (b *Bridge) SetAnnounceHandler(handler func()) {
	b.onAnnounceMu.Lock()
	b.onAnnounce = handler
	b.onAnnounceMu.Unlock()
}

// RequestTree queues a TREEXML request for a network.
func (b *Bridge) RequestTree(network string) {
	b.treeMu.Lock()
	b.treeNetwork = network
	b.treeMu.Unlock()

	b.enqueue(CommandTree(network))
}

// RequestGetAll queues a wildcard level query for every group on an
// application. Results arrive as individual 300 status lines and are
// published per group.
func (b *Bridge) RequestGetAll(network, app string) {
	b.enqueue(CommandGetAll(b.opts.Project, network, app))
}

// BridgeMetrics contains a snapshot of bridge health counters.
type BridgeMetrics struct {
	HealthyConnections int
	EventConnected     bool
	QueueDepth         int
	QueueDropped       uint64
	PendingLevels      int
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	return BridgeMetrics{
		HealthyConnections: b.pool.HealthyCount(),
		EventConnected:     b.events.IsConnected(),
		QueueDepth:         b.queue.Len(),
		QueueDropped:       b.queue.Dropped(),
		PendingLevels:      b.correlator.PendingCount(),
	}
}

// enqueue hands a command to the throttled queue.
func (b *Bridge) enqueue(cmd string) {
	if err := b.queue.Enqueue(cmd); err != nil {
		b.logError("enqueue failed", err)
	}
}

// handleWriteMessage routes an inbound MQTT message to its handler.
func (b *Bridge) handleWriteMessage(topic string, payload []byte) {
	req, err := ParseWriteTopic(topic)
	if err != nil {
		b.logWarn("ignoring unrecognised write topic", "topic", topic)
		return
	}

	body := string(payload)
	b.logDebug("write received", "topic", topic, "payload", body)

	switch req.Kind {
	case RequestSwitch:
		b.handleSwitch(req.Addr, body)
	case RequestRamp:
		b.handleRamp(req.Addr, body)
	case RequestPosition:
		b.handlePosition(req.Addr, body)
	case RequestStop:
		b.enqueue(CommandStop(b.opts.Project, req.Addr))
	case RequestGetAll:
		b.RequestGetAll(req.Network, req.App)
	case RequestGetTree:
		b.RequestTree(req.Network)
	case RequestAnnounce:
		b.handleAnnounce()
	}
}

// handleSwitch translates an ON/OFF payload.
func (b *Bridge) handleSwitch(addr GroupAddress, payload string) {
	on, err := ParseSwitchPayload(payload)
	if err != nil {
		b.logWarn("invalid switch payload", "address", addr.String(), "payload", payload)
		return
	}
	if on {
		b.enqueue(CommandOn(b.opts.Project, addr))
	} else {
		b.enqueue(CommandOff(b.opts.Project, addr))
	}
}

// handleRamp translates a ramp payload, which may be absolute, relative,
// a bare on/off, or a stop.
func (b *Bridge) handleRamp(addr GroupAddress, payload string) {
	cmd, err := ParseRampPayload(payload)
	if err != nil {
		b.logWarn("invalid ramp payload", "address", addr.String(), "payload", payload)
		return
	}

	switch {
	case cmd.On:
		b.enqueue(CommandOn(b.opts.Project, addr))
	case cmd.Off:
		b.enqueue(CommandOff(b.opts.Project, addr))
	case cmd.Stop:
		b.enqueue(CommandStop(b.opts.Project, addr))
	case cmd.Relative != 0:
		b.relativeRamp(addr, cmd.Relative)
	default:
		b.enqueue(CommandRamp(b.opts.Project, addr, RawFromPercent(cmd.Percent), cmd.Duration))
	}
}

// handlePosition translates a cover position payload.
func (b *Bridge) handlePosition(addr GroupAddress, payload string) {
	pct, err := ParsePositionPayload(payload)
	if err != nil {
		b.logWarn("invalid position payload", "address", addr.String(), "payload", payload)
		return
	}
	b.enqueue(CommandRamp(b.opts.Project, addr, RawFromPercent(pct), ""))
}

// relativeRamp starts an INCREASE/DECREASE operation: query the current
// level, then ramp to the stepped target once the reply arrives.
func (b *Bridge) relativeRamp(addr GroupAddress, delta int) {
	err := b.correlator.Register(addr, func(raw int) {
		target := ClampRaw(raw + delta)
		b.enqueue(CommandRamp(b.opts.Project, addr, target, ""))
	})
	if err != nil {
		if errors.Is(err, ErrPendingExists) {
			b.logWarn("relative ramp already in flight, dropping", "address", addr.String())
			return
		}
		b.logError("relative ramp registration failed", err)
		return
	}

	b.enqueue(CommandGetLevel(b.opts.Project, addr))
}

// handleAnnounce fires the discovery announce callback.
func (b *Bridge) handleAnnounce() {
	b.onAnnounceMu.RLock()
	handler := b.onAnnounce
	b.onAnnounceMu.RUnlock()

	if handler == nil {
		b.logDebug("announce received but no handler installed")
		return
	}
	handler()
}

// handleEventLine processes one line from the event port.
func (b *Bridge) handleEventLine(line string) {
	ev, err := ParseEventLine(line)
	if err != nil {
		b.logDebug("skipping event line", "line", line)
		return
	}
	b.publishEvent(ev)
}

// handleResponseLine processes one line from a command socket.
func (b *Bridge) handleResponseLine(slot int, line string) {
	resp, err := ParseResponseLine(line)
	if err != nil {
		b.logDebug("skipping response line", "slot", slot, "line", line)
		return
	}

	switch resp.Code {
	case CodeTreeInfo:
		b.collectTree(slot, resp)

	case CodeObjectStatus:
		ev, err := ParseStatusBody(resp.Body)
		if err != nil {
			b.logDebug("skipping status response", "body", resp.Body)
			return
		}
		// A pending relative ramp consumes the report; everything else
		// is published like any other level change.
		if b.correlator.Deliver(ev.Addr, ev.Raw) {
			return
		}
		b.publishEvent(ev)

	case CodeSuccess:
		b.logDebug("command acknowledged", "slot", slot, "body", resp.Body)

	case CodeServiceReady:
		b.logInfo("c-gate session ready", "slot", slot, "banner", resp.Body)

	default:
		if resp.Code >= 400 {
			b.logWarn("command rejected",
				"slot", slot,
				"code", resp.Code,
				"body", resp.Body)
		}
	}
}

// collectTree feeds a 343 line into the slot's collector and hands off
// the document when complete.
func (b *Bridge) collectTree(slot int, resp Response) {
	b.treeMu.Lock()
	tc, ok := b.treeCollectors[slot]
	if !ok {
		tc = &treeCollector{}
		b.treeCollectors[slot] = tc
	}
	xmlDoc, done := tc.feed(resp)
	network := b.treeNetwork
	b.treeMu.Unlock()

	if !done {
		return
	}

	b.logInfo("tree received", "network", network, "bytes", len(xmlDoc))

	b.onTreeMu.RLock()
	handler := b.onTree
	b.onTreeMu.RUnlock()

	if handler != nil {
		handler(network, xmlDoc)
	}
}

// publishEvent maps a parsed event onto the read topics.
func (b *Bridge) publishEvent(ev Event) {
	network := strconv.Itoa(int(ev.Addr.Network))
	app := strconv.Itoa(int(ev.Addr.Application))
	group := strconv.Itoa(int(ev.Addr.Group))

	var state string
	var percent int

	switch ev.Action {
	case "on":
		state, percent = payloadOn, 100
	case "off":
		state, percent = payloadOff, 0
	case "ramp", "level":
		if !ev.HasLevel {
			b.logDebug("ramp event without level", "address", ev.Addr.String())
			return
		}
		percent = PercentFromRaw(ev.Raw)
		if ev.Raw > RawLevelMin {
			state = payloadOn
		} else {
			state = payloadOff
		}
	default:
		b.logDebug("unhandled event action",
			"action", ev.Action,
			"address", ev.Addr.String())
		return
	}

	b.publish(b.topics.ReadState(network, app, group), state)
	b.publish(b.topics.ReadLevel(network, app, group), strconv.Itoa(percent))

	if b.opts.Telemetry != nil {
		raw := ev.Raw
		if !ev.HasLevel {
			raw = RawFromPercent(percent)
		}
		b.opts.Telemetry.WriteLevelEvent(network, app, group, ev.Action, raw, percent)
	}
}

// publish sends one payload with the bridge's QoS and retain settings.
func (b *Bridge) publish(topic, payload string) {
	if err := b.mqtt.Publish(topic, []byte(payload), b.opts.QoS, b.opts.RetainReads); err != nil {
		b.logError("publish failed", fmt.Errorf("topic %s: %w", topic, err))
	}
}

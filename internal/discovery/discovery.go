package discovery

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/cgate-bridge/internal/infrastructure/config"
	"github.com/nerrad567/cgate-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cgate-bridge/internal/labels"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Publisher sends MQTT messages. Satisfied by the infrastructure MQTT
// client and mocked in tests.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TreeRequester queues a TREEXML request for a network. Satisfied by
// the C-Gate bridge.
type TreeRequester interface {
	RequestTree(network string)
}

// Options holds configuration for creating a discovery engine.
type Options struct {
	// Config is the discovery section of the bridge configuration.
	Config config.DiscoveryConfig

	// Labels is the optional label map store.
	Labels *labels.Store

	// Publisher is the MQTT client. Required.
	Publisher Publisher

	// Requester queues tree requests. Required.
	Requester TreeRequester

	// QoS applies to all discovery publishes.
	QoS byte

	// Logger is optional structured logging.
	Logger Logger
}

// Engine drives Home Assistant discovery.
//
// Announce requests a tree walk per configured network; completed trees
// come back through HandleTree, which publishes the parsed tree JSON
// and, for walks the engine itself requested, the retained discovery
// configs. Requests for a network already in flight are coalesced.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	cfg        config.DiscoveryConfig
	labels     *labels.Store
	pub        Publisher
	req        TreeRequester
	qos        byte
	classifier *Classifier
	topics     mqtt.Topics

	mu       sync.Mutex
	inflight map[int]bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a discovery engine.
func New(opts Options) (*Engine, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if opts.Requester == nil {
		return nil, fmt.Errorf("tree requester is required")
	}

	return &Engine{
		cfg:    opts.Config,
		labels: opts.Labels,
		pub:    opts.Publisher,
		req:    opts.Requester,
		qos:    opts.QoS,
		classifier: NewClassifier(
			opts.Config.CoverAppIDs,
			opts.Config.SwitchAppIDs,
			opts.Config.RelayAppIDs,
			opts.Config.PIRAppIDs,
		),
		inflight: make(map[int]bool),
		done:     make(chan struct{}),
		logger:   opts.Logger,
	}, nil
}

// Start begins periodic re-announcement when configured. The initial
// announce is the caller's decision.
func (e *Engine) Start(period time.Duration) {
	if period <= 0 {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-e.done:
				return
			case <-ticker.C:
				e.Announce()
			}
		}
	}()
}

// Stop halts periodic announcement. Safe to call multiple times.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}

// Announce requests a tree walk for every configured network. Networks
// with a walk already in flight are skipped.
func (e *Engine) Announce() {
	if !e.cfg.Enabled {
		e.logDebug("discovery disabled, ignoring announce")
		return
	}

	for _, network := range e.cfg.Networks {
		e.mu.Lock()
		if e.inflight[network] {
			e.mu.Unlock()
			e.logDebug("tree walk already in flight", "network", network)
			continue
		}
		e.inflight[network] = true
		e.mu.Unlock()

		e.logInfo("requesting network tree", "network", network)
		e.req.RequestTree(strconv.Itoa(network))
	}
}

// treePayload is the JSON published on cbus/read/<network>///tree.
type treePayload struct {
	Network int            `json:"network"`
	Name    string         `json:"name,omitempty"`
	Groups  []groupPayload `json:"groups"`
}

type groupPayload struct {
	Address     string `json:"address"`
	Application int    `json:"application"`
	Group       int    `json:"group"`
	Label       string `json:"label,omitempty"`
}

// HandleTree consumes a completed TREEXML document from the bridge.
//
// Every tree is published as JSON on the network's tree topic; the
// discovery configs are additionally published when the engine had
// requested this network's walk.
func (e *Engine) HandleTree(network, xmlDoc string) {
	net, err := strconv.Atoi(network)
	if err != nil {
		e.logWarn("tree for unparseable network", "network", network)
		return
	}

	e.mu.Lock()
	requested := e.inflight[net]
	delete(e.inflight, net)
	e.mu.Unlock()

	tree, err := ParseTree(net, xmlDoc)
	if err != nil {
		e.logError("tree parse failed", err)
		return
	}

	e.publishTree(tree)

	if requested && e.cfg.Enabled {
		e.publishConfigs(tree)
	}
}

// publishTree publishes the parsed tree as JSON.
func (e *Engine) publishTree(tree *Tree) {
	payload := treePayload{
		Network: tree.Network,
		Name:    tree.Name,
		Groups:  make([]groupPayload, 0, len(tree.Groups)),
	}
	for _, g := range tree.Groups {
		payload.Groups = append(payload.Groups, groupPayload{
			Address:     g.Address(),
			Application: g.App,
			Group:       g.Group,
			Label:       g.Label,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.logError("tree marshal failed", err)
		return
	}

	topic := e.topics.ReadTree(strconv.Itoa(tree.Network))
	if err := e.pub.Publish(topic, data, e.qos, false); err != nil {
		e.logError("tree publish failed", err)
		return
	}
	e.logInfo("tree published", "network", tree.Network, "groups", len(tree.Groups))
}

// publishConfigs announces every classifiable group in a tree.
func (e *Engine) publishConfigs(tree *Tree) {
	announced := 0
	for _, g := range tree.Groups {
		if e.announceGroup(tree, g) {
			announced++
		}
	}
	e.logInfo("discovery configs published",
		"network", tree.Network,
		"announced", announced,
		"groups", len(tree.Groups))
}

// announceGroup publishes one group's retained discovery config.
// Returns false when the group is excluded or unclassifiable.
func (e *Engine) announceGroup(tree *Tree, g TreeGroup) bool {
	addr := g.Address()

	if e.labels != nil && e.labels.Excluded(addr) {
		e.logDebug("group excluded by label map", "address", addr)
		return false
	}

	component, classified := e.classifier.Classify(g.App)

	if e.labels != nil {
		if override, ok := e.labels.TypeOverride(addr); ok {
			if parsed, valid := ParseComponent(override); valid {
				component, classified = parsed, true
			} else {
				e.logWarn("invalid type override, using tree classification",
					"address", addr,
					"override", override)
			}
		}
	}
	if !classified {
		return false
	}

	name := g.Label
	if e.labels != nil {
		if label, ok := e.labels.Label(addr); ok {
			name = label
		}
	}
	if name == "" {
		name = "C-Bus " + addr
	}

	uniqueID := fmt.Sprintf("cgateweb_%d_%d_%d", g.Network, g.App, g.Group)
	objectID := uniqueID
	if e.labels != nil {
		if id, ok := e.labels.EntityID(addr); ok && id != "" {
			objectID = id
		}
	}

	payload := e.buildConfig(tree, g, component, name, uniqueID)
	data, err := json.Marshal(payload)
	if err != nil {
		e.logError("config marshal failed", err)
		return false
	}

	topic := e.topics.DiscoveryConfig(e.cfg.Prefix, string(component), objectID)
	if err := e.pub.Publish(topic, data, e.qos, true); err != nil {
		e.logError("config publish failed", fmt.Errorf("%s: %w", topic, err))
		return false
	}
	return true
}

// deviceInfo groups entities under one Home Assistant device per
// network.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// entityConfig is the Home Assistant discovery payload. Component-
// specific fields are left empty and omitted.
type entityConfig struct {
	Name     string `json:"name"`
	UniqueID string `json:"unique_id"`

	StateTopic   string `json:"state_topic,omitempty"`
	CommandTopic string `json:"command_topic,omitempty"`
	PayloadOn    string `json:"payload_on,omitempty"`
	PayloadOff   string `json:"payload_off,omitempty"`

	BrightnessStateTopic   string `json:"brightness_state_topic,omitempty"`
	BrightnessCommandTopic string `json:"brightness_command_topic,omitempty"`
	BrightnessScale        int    `json:"brightness_scale,omitempty"`

	PositionTopic    string `json:"position_topic,omitempty"`
	SetPositionTopic string `json:"set_position_topic,omitempty"`
	PayloadOpen      string `json:"payload_open,omitempty"`
	PayloadClose     string `json:"payload_close,omitempty"`
	PayloadStop      string `json:"payload_stop,omitempty"`

	DeviceClass string `json:"device_class,omitempty"`

	AvailabilityTopic   string `json:"availability_topic,omitempty"`
	PayloadAvailable    string `json:"payload_available,omitempty"`
	PayloadNotAvailable string `json:"payload_not_available,omitempty"`

	Device deviceInfo `json:"device"`
}

// buildConfig assembles the discovery payload for one group.
func (e *Engine) buildConfig(tree *Tree, g TreeGroup, component Component, name, uniqueID string) entityConfig {
	network := strconv.Itoa(g.Network)
	app := strconv.Itoa(g.App)
	group := strconv.Itoa(g.Group)

	deviceName := tree.Name
	if deviceName == "" {
		deviceName = "C-Bus Network " + network
	}

	cfg := entityConfig{
		Name:                name,
		UniqueID:            uniqueID,
		AvailabilityTopic:   mqtt.TopicStatus,
		PayloadAvailable:    mqtt.PayloadOnline,
		PayloadNotAvailable: mqtt.PayloadOffline,
		Device: deviceInfo{
			Identifiers:  []string{"cgateweb_" + network},
			Name:         deviceName,
			Manufacturer: "Clipsal",
			Model:        "C-Bus",
		},
	}

	switch component {
	case ComponentLight:
		cfg.StateTopic = e.topics.ReadState(network, app, group)
		cfg.CommandTopic = e.topics.WriteSwitch(network, app, group)
		cfg.PayloadOn = "ON"
		cfg.PayloadOff = "OFF"
		cfg.BrightnessStateTopic = e.topics.ReadLevel(network, app, group)
		cfg.BrightnessCommandTopic = e.topics.WriteRamp(network, app, group)
		cfg.BrightnessScale = 100

	case ComponentSwitch:
		cfg.StateTopic = e.topics.ReadState(network, app, group)
		cfg.CommandTopic = e.topics.WriteSwitch(network, app, group)
		cfg.PayloadOn = "ON"
		cfg.PayloadOff = "OFF"

	case ComponentCover:
		cfg.PositionTopic = e.topics.ReadLevel(network, app, group)
		cfg.SetPositionTopic = e.topics.WritePosition(network, app, group)
		cfg.CommandTopic = e.topics.WriteRamp(network, app, group)
		cfg.PayloadOpen = "ON"
		cfg.PayloadClose = "OFF"
		cfg.PayloadStop = "STOP"

	case ComponentBinarySensor:
		cfg.StateTopic = e.topics.ReadState(network, app, group)
		cfg.PayloadOn = "ON"
		cfg.PayloadOff = "OFF"
		cfg.DeviceClass = "motion"
	}

	return cfg
}

func (e *Engine) currentLogger() Logger {
	e.loggerMu.RLock()
	defer e.loggerMu.RUnlock()
	return e.logger
}

// SetLogger sets the logger. Safe to call at any time.
func (e *Engine) SetLogger(logger Logger) {
	e.loggerMu.Lock()
	e.logger = logger
	e.loggerMu.Unlock()
}

func (e *Engine) logDebug(msg string, keysAndValues ...any) {
	if logger := e.currentLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (e *Engine) logInfo(msg string, keysAndValues ...any) {
	if logger := e.currentLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (e *Engine) logWarn(msg string, keysAndValues ...any) {
	if logger := e.currentLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (e *Engine) logError(msg string, err error) {
	if logger := e.currentLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

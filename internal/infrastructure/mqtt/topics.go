package mqtt

import "fmt"

// Topic prefixes for the cgateweb MQTT hierarchy.
//
// The read hierarchy carries C-Bus state out to controllers; the write
// hierarchy carries controller commands in. The status topic carries the
// bridge's own online/offline presence (retained, with a matching LWT).
const (
	// TopicPrefixRead is the base for state published from C-Bus.
	TopicPrefixRead = "cbus/read"

	// TopicPrefixWrite is the base for commands destined for C-Bus.
	TopicPrefixWrite = "cbus/write"

	// TopicStatus is the bridge presence topic ("online"/"offline").
	TopicStatus = "hello/cgateweb"
)

// Presence payloads published on TopicStatus.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics provides builders for cgateweb MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ReadState("254", "56", "4")
//	// Returns: "cbus/read/254/56/4/state"
type Topics struct{}

// ReadState returns the topic for a group's ON/OFF state.
//
// Example: cbus/read/254/56/4/state
func (Topics) ReadState(network, app, group string) string {
	return fmt.Sprintf("%s/%s/%s/%s/state", TopicPrefixRead, network, app, group)
}

// ReadLevel returns the topic for a group's brightness percentage.
//
// Example: cbus/read/254/56/4/level
func (Topics) ReadLevel(network, app, group string) string {
	return fmt.Sprintf("%s/%s/%s/%s/level", TopicPrefixRead, network, app, group)
}

// ReadTree returns the topic carrying a network's tree as JSON.
//
// Example: cbus/read/254///tree
func (Topics) ReadTree(network string) string {
	return fmt.Sprintf("%s/%s///tree", TopicPrefixRead, network)
}

// WriteSwitch returns the topic accepting ON/OFF commands for a group.
//
// Example: cbus/write/254/56/4/switch
func (Topics) WriteSwitch(network, app, group string) string {
	return fmt.Sprintf("%s/%s/%s/%s/switch", TopicPrefixWrite, network, app, group)
}

// WriteRamp returns the topic accepting ramp commands for a group.
//
// Example: cbus/write/254/56/4/ramp
func (Topics) WriteRamp(network, app, group string) string {
	return fmt.Sprintf("%s/%s/%s/%s/ramp", TopicPrefixWrite, network, app, group)
}

// WritePosition returns the topic accepting cover positions for a group.
//
// Example: cbus/write/254/203/7/position
func (Topics) WritePosition(network, app, group string) string {
	return fmt.Sprintf("%s/%s/%s/%s/position", TopicPrefixWrite, network, app, group)
}

// WriteStop returns the topic that halts a ramp in progress.
//
// Example: cbus/write/254/56/4/stop
func (Topics) WriteStop(network, app, group string) string {
	return fmt.Sprintf("%s/%s/%s/%s/stop", TopicPrefixWrite, network, app, group)
}

// AllWrites returns the pattern matching every inbound command topic.
//
// Pattern: cbus/write/#
func (Topics) AllWrites() string {
	return TopicPrefixWrite + "/#"
}

// Announce returns the topic that triggers a discovery re-announce.
//
// Example: cbus/write/bridge/announce
func (Topics) Announce() string {
	return TopicPrefixWrite + "/bridge/announce"
}

// DiscoveryConfig returns the Home Assistant discovery config topic for
// an entity.
//
// Example: homeassistant/light/cgateweb_254_56_4/config
func (Topics) DiscoveryConfig(prefix, component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/config", prefix, component, objectID)
}

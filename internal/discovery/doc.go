// Package discovery walks C-Bus project trees and announces the groups
// it finds as Home Assistant MQTT discovery entities.
//
// For each configured network the engine requests a TREEXML dump via
// the bridge, parses it tolerantly (C-Gate versions differ in whether
// addresses appear as attributes or child elements), classifies every
// group into a Home Assistant component, and publishes a retained
// config message under the discovery prefix:
//
//	homeassistant/light/cgateweb_254_56_4/config
//
// The standard lighting application is always a dimmable light; other
// applications classify via the application ID lists in configuration
// (covers, switches, relays, PIR sensors). The optional label map
// can rename entities, force a component, pin entity IDs, or exclude
// groups entirely.
//
// The engine also publishes the parsed tree itself as JSON on
// cbus/read/<network>///tree, serving manual gettree requests.
package discovery

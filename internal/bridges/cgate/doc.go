// Package cgate implements the C-Bus bridge over Clipsal's C-Gate gateway.
//
// C-Gate exposes a line-oriented ASCII protocol on two TCP ports: a command
// port (default 20023) that accepts verbs like ON, OFF, RAMP and GET, and an
// event port (default 20025) that streams unsolicited bus activity. This
// package speaks both and translates between that protocol and MQTT.
//
// # Architecture
//
// The bridge sits between the MQTT broker and the gateway:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   MQTT Broker   │   MQTT   │  C-Gate Bridge  │   TCP    ┌────────┐
//	│ (Home Assistant)│◄────────►│   (this pkg)    │◄────────►│ C-Gate │
//	└─────────────────┘          └─────────────────┘  20023/5 └────────┘
//
// # Key Responsibilities
//
//   - Maintain a pool of command-port connections with health checks,
//     keep-alives and exponential-backoff reconnection
//   - Maintain a single event-port connection with the same reconnection
//     discipline
//   - Parse event lines and status responses into group level changes
//   - Throttle outbound commands through a bounded FIFO queue
//   - Correlate GET level responses with pending relative ramp operations
//   - Collect multi-line TREEXML responses for network discovery
//
// # Group Addresses
//
// C-Bus addresses groups as network/application/group, all decimal bytes.
// Application 56 is the standard lighting application.
//
// Example:
//
//	addr, err := cgate.ParseGroupAddress("254/56/4")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(addr.Path("HOME")) // "//HOME/254/56/4"
//
// # Levels
//
// The wire carries raw levels 0-255; MQTT surfaces percentages 0-100.
// Conversions round to nearest so that ON maps to 100% and OFF to 0%.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
//
// # References
//
//   - C-Gate Server Guide: https://updates.clipsal.com/ClipsalSoftwareDownload/DL/downloads/OpenCBus/C-Gate%20Server%20Guide%201_15_0.pdf
package cgate

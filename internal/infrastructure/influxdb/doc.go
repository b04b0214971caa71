// Package influxdb provides optional level-event telemetry for the bridge.
//
// It wraps the official influxdb-client-go v2 library. The bridge keeps no
// authoritative device state; this package only records the level events
// flowing through the bridge so they can be graphed and audited later.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off, continue without it
//	}
//	defer client.Close()
//
//	client.WriteLevelEvent("254", "56", "4", "ramp", 128, 50)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched and flushed
// in the background; async errors surface via SetOnError.
package influxdb

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteLevelEvent records a group level change seen on the C-Bus event
// stream or in a command response.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - network, app, group: decimal address components (e.g. "254", "56", "4")
//   - action: the C-Gate verb that produced the level ("on", "off", "ramp")
//   - raw: raw C-Bus level 0-255
//   - percent: the percentage surfaced on MQTT
func (c *Client) WriteLevelEvent(network, app, group, action string, raw, percent int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"cbus_level",
		map[string]string{
			"network":     network,
			"application": app,
			"group":       group,
			"action":      action,
		},
		map[string]interface{}{
			"raw":     raw,
			"percent": percent,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBridgeMetric records a bridge-internal counter or gauge, such as
// queue depth or dropped-command counts.
func (c *Client) WriteBridgeMetric(component, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"bridge_metrics",
		map[string]string{
			"component": component,
			"metric":    metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

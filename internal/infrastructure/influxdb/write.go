package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementStatus = "orvibo_status"
	MeasurementProbe  = "orvibo_probe"
)

// statusValue maps a status name to a plottable number:
// on=1, off=0, anything else -1.
func statusValue(status string) int {
	switch status {
	case "on":
		return 1
	case "off":
		return 0
	default:
		return -1
	}
}

// StatusPoint builds the point recorded for a status transition.
//
// Tags: bridge_id, source ("wire" or "accessory").
// Fields: status (string), value (on=1, off=0, unknown=-1).
func StatusPoint(bridgeID, status, source string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementStatus,
		map[string]string{
			"bridge_id": bridgeID,
			"source":    source,
		},
		map[string]interface{}{
			"status": status,
			"value":  statusValue(status),
		},
		at,
	)
}

// ProbePoint builds the point recorded when the bridge sends a probe
// ("probe"), a liveness query ("query") or a recovery probe ("recovery").
func ProbePoint(bridgeID, kind string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementProbe,
		map[string]string{
			"bridge_id": bridgeID,
			"kind":      kind,
		},
		map[string]interface{}{
			"count": 1,
		},
		at,
	)
}

// WriteStatusChange records a status transition. Non-blocking.
func (c *Client) WriteStatusChange(bridgeID, status, source string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(StatusPoint(bridgeID, status, source, time.Now()))
}

// WriteProbe records an outbound probe or liveness query. Non-blocking.
func (c *Client) WriteProbe(bridgeID, kind string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ProbePoint(bridgeID, kind, time.Now()))
}

// WritePoint writes a custom point stamped with the current time.
//
// Example:
//
//	client.WritePoint("orvibo_link",
//	    map[string]string{"bridge_id": "porch"},
//	    map[string]interface{}{"send_failures": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

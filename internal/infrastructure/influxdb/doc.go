// Package influxdb records bridge telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	orvibo_status  tags: bridge_id, source   fields: status, value
//	orvibo_probe   tags: bridge_id, kind     fields: count
//
// Writes are batched and non-blocking. The integration is optional:
// Connect returns ErrDisabled when influxdb.enabled is false.
package influxdb

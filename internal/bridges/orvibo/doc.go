// Package orvibo bridges an Orvibo-style smart plug controller and an
// on/off accessory.
//
// The controller speaks a line protocol over UDP. Each line is ASCII and
// LF-terminated:
//
//	on   device is (or should be) on       both directions
//	off  device is (or should be) off      both directions
//	p    probe: report your status          bridge -> device
//	q    liveness query                     bridge -> device
//
// Received lines are matched by case-insensitive prefix; several lines may
// share one datagram and are applied in order. Unrecognised lines are
// ignored.
//
// # Liveness
//
// At startup the bridge marks the status Unknown and sends a probe. Every
// tick (2s) advances a counter; after 30 ticks, if the status is still
// Unknown, a liveness query is sent and a 5s recovery timer is armed. If
// no status line arrives before it fires, the bridge probes again. A
// received status line or a probe restarts the count.
//
// # Concurrency
//
// Bridge.Run owns the status. Inbound lines come from a udp.Watch, and
// accessory requests are forwarded onto the same loop through a channel.
// Observers (MQTT state, history, telemetry) run on a separate goroutine
// and cannot stall the protocol.
//
// Usage:
//
//	b, err := orvibo.NewBridge(orvibo.Options{
//	    ID:        "porch",
//	    Accessory: acc,
//	    Receiver:  orvibo.FromWatch(udp.WatchLines(rx, 0)),
//	    Sender:    tx,
//	    Host:      "192.168.1.20",
//	    Port:      14442,
//	})
//	if err != nil {
//	    return err
//	}
//	return b.Run(ctx)
package orvibo

package orvibo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
	"github.com/rhx/orvibo-udp-hap/internal/history"
	"github.com/rhx/orvibo-udp-hap/internal/udp"
)

// Bridge timing defaults.
const (
	DefaultTickInterval   = 2 * time.Second
	DefaultThresholdTicks = 30
	DefaultRecoveryDelay  = 5 * time.Second

	// changeQueueSize bounds accessory requests waiting for the loop.
	changeQueueSize = 16

	// eventQueueSize bounds events waiting for observers.
	eventQueueSize = 64

	// observerTimeout bounds a single Observe call.
	observerTimeout = 5 * time.Second
)

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Sender transmits one datagram. *udp.Socket satisfies it.
type Sender interface {
	SendTo(payload []byte, host string, port int) bool
}

// Receiver delivers inbound status lines until cancelled.
type Receiver interface {
	Lines() <-chan udp.Line
	Cancel()
}

// FromWatch adapts a line watch to Receiver.
func FromWatch(w *udp.Watch[udp.Line]) Receiver {
	return watchReceiver{w}
}

type watchReceiver struct{ w *udp.Watch[udp.Line] }

func (r watchReceiver) Lines() <-chan udp.Line { return r.w.C }
func (r watchReceiver) Cancel()                { r.w.Cancel() }

// Options holds everything a bridge needs. The value is copied by
// NewBridge and never changes afterwards.
type Options struct {
	// ID names the bridge in logs, history and MQTT topics.
	ID string

	// Accessory is the state shared with the automation framework.
	Accessory accessory.Capability

	// Receiver delivers status lines from the device controller.
	Receiver Receiver

	// Sender transmits outbound lines to Host:Port.
	Sender Sender
	Host   string
	Port   int

	// TickInterval, ThresholdTicks and RecoveryDelay drive the liveness
	// cycle. Zero values select the defaults (2s, 30, 5s).
	TickInterval   time.Duration
	ThresholdTicks int
	RecoveryDelay  time.Duration

	// Observers receive status transitions and probes. Optional.
	Observers []Observer

	// Logger is optional.
	Logger Logger

	// Clock is optional; the wall clock is used when nil.
	Clock Clock
}

// Stats is a snapshot of the bridge counters.
type Stats struct {
	Datagrams     uint64 `json:"datagrams"`
	LinesReceived uint64 `json:"lines_received"`
	LinesIgnored  uint64 `json:"lines_ignored"`
	LinesSent     uint64 `json:"lines_sent"`
	SendFailures  uint64 `json:"send_failures"`
	Probes        uint64 `json:"probes"`
	Queries       uint64 `json:"queries"`
	Recoveries    uint64 `json:"recoveries"`
}

// Bridge keeps the device's on/off status and the accessory in step.
//
// All protocol work runs on the goroutine that calls Run: inbound lines,
// accessory requests, health-check ticks and the recovery timer are
// handled one at a time, so the status needs no lock. Observers run on a
// separate notifier goroutine.
//
// Thread Safety: Stop, Status, LastSeen and Stats are safe for concurrent use.
type Bridge struct {
	opts   Options
	clock  Clock
	prober *ProbeTimer

	// Owned by the loop.
	status        accessory.Status
	awaitingReply bool

	// Published for readers.
	current  atomic.Int32
	lastSeen atomic.Int64

	changes chan accessory.Status
	events  chan Event

	datagrams     atomic.Uint64
	linesReceived atomic.Uint64
	linesIgnored  atomic.Uint64
	linesSent     atomic.Uint64
	sendFailures  atomic.Uint64
	probes        atomic.Uint64
	queries       atomic.Uint64
	recoveries    atomic.Uint64

	started  atomic.Bool
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewBridge creates a bridge. Call Run to start it.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Accessory == nil {
		return nil, fmt.Errorf("%w: accessory", ErrMissingOption)
	}
	if opts.Receiver == nil {
		return nil, fmt.Errorf("%w: receiver", ErrMissingOption)
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("%w: sender", ErrMissingOption)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.ThresholdTicks <= 0 {
		opts.ThresholdTicks = DefaultThresholdTicks
	}
	if opts.RecoveryDelay <= 0 {
		opts.RecoveryDelay = DefaultRecoveryDelay
	}
	opts.Observers = append([]Observer(nil), opts.Observers...)

	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Bridge{
		opts:    opts,
		clock:   clock,
		prober:  NewProbeTimer(opts.ThresholdTicks),
		changes: make(chan accessory.Status, changeQueueSize),
		events:  make(chan Event, eventQueueSize),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}, nil
}

// ID returns the bridge identifier.
func (b *Bridge) ID() string { return b.opts.ID }

// Status returns the status last set by the loop.
func (b *Bridge) Status() accessory.Status {
	return accessory.Status(b.current.Load())
}

// LastSeen returns when the last status line arrived, or the zero time.
func (b *Bridge) LastSeen() time.Time {
	ms := b.lastSeen.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Datagrams:     b.datagrams.Load(),
		LinesReceived: b.linesReceived.Load(),
		LinesIgnored:  b.linesIgnored.Load(),
		LinesSent:     b.linesSent.Load(),
		SendFailures:  b.sendFailures.Load(),
		Probes:        b.probes.Load(),
		Queries:       b.queries.Load(),
		Recoveries:    b.recoveries.Load(),
	}
}

// Run probes the device and then serves the bridge until ctx is done or
// Stop is called. On return the receiver has been cancelled, queued lines
// have been discarded and every observer has finished.
//
// Run returns nil on a normal shutdown.
func (b *Bridge) Run(ctx context.Context) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(b.exited)

	notifyCtx, cancelNotify := context.WithCancel(context.WithoutCancel(ctx))
	b.wg.Add(1)
	go b.notifyLoop(notifyCtx)

	unsubscribe := b.opts.Accessory.OnChange(b.enqueueChange)

	ticker := b.clock.NewTicker(b.opts.TickInterval)
	var recovery Timer

	defer func() {
		// Releases any request blocked on a full queue.
		b.stopOnce.Do(func() { close(b.done) })
		ticker.Stop()
		if recovery != nil {
			recovery.Stop()
		}
		unsubscribe()
		b.opts.Receiver.Cancel()
		b.drain()
		close(b.events)
		b.wg.Wait()
		cancelNotify()
		b.logInfo("bridge stopped", "bridge_id", b.opts.ID)
	}()

	b.logInfo("bridge started",
		"bridge_id", b.opts.ID,
		"host", b.opts.Host,
		"port", b.opts.Port)

	b.probe(ProbeStartup)

	lines := b.opts.Receiver.Lines()
	var recoveryC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil

		case line, ok := <-lines:
			if !ok {
				b.logWarn("status receiver closed", "bridge_id", b.opts.ID)
				lines = nil
				continue
			}
			if b.handleLine(line) && recovery != nil {
				recovery.Stop()
				recovery, recoveryC = nil, nil
			}

		case s := <-b.changes:
			if b.handleChange(s) && recovery != nil {
				recovery.Stop()
				recovery, recoveryC = nil, nil
			}

		case <-ticker.C():
			if !b.prober.Tick() || b.status != accessory.StatusUnknown {
				continue
			}
			b.query()
			if recovery != nil {
				recovery.Stop()
			}
			recovery = b.clock.NewTimer(b.opts.RecoveryDelay)
			recoveryC = recovery.C()

		case <-recoveryC:
			recovery, recoveryC = nil, nil
			if b.awaitingReply {
				b.recoveries.Add(1)
				b.probe(ProbeRecovery)
			}
		}
	}
}

// Stop ends Run and waits for it to return. Safe to call more than once
// and before Run; in that case the receiver is cancelled directly.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
	if b.started.Load() {
		<-b.exited
		return
	}
	b.opts.Receiver.Cancel()
}

// handleLine applies every recognised status in the datagram, in order.
// It reports whether at least one status line was present.
func (b *Bridge) handleLine(line udp.Line) bool {
	b.datagrams.Add(1)

	statuses, ignored := ParseLines(line.Text)
	b.linesIgnored.Add(uint64(ignored))
	if ignored > 0 {
		b.logDebug("ignoring unrecognised lines", "count", ignored, "text", line.Text)
	}
	if len(statuses) == 0 {
		return false
	}

	peer := ""
	if line.HasSender {
		peer = line.From.String()
	}

	now := b.clock.Now()
	for _, s := range statuses {
		b.linesReceived.Add(1)
		previous := b.status
		b.setStatus(s)
		b.opts.Accessory.SetStatus(s)

		if s != previous {
			b.logInfo("Status: "+s.String(), "bridge_id", b.opts.ID, "peer", peer)
			b.emit(Event{Kind: EventStatus, Status: s, Source: history.SourceWire, Peer: peer, At: now})
		}
	}

	b.lastSeen.Store(now.UnixMilli())
	b.prober.Reset()
	b.awaitingReply = false
	return true
}

// handleChange forwards a status requested through the accessory. An
// explicit on or off settles any outstanding query, so it reports
// whether a pending recovery probe should be dropped.
func (b *Bridge) handleChange(s accessory.Status) bool {
	previous := b.status
	b.setStatus(s)

	if s == accessory.StatusUnknown {
		b.sendProbe(ProbeAccessory)
	} else {
		b.send(EncodeStatus(s))
	}
	if s != previous {
		b.emit(Event{Kind: EventStatus, Status: s, Source: history.SourceAccessory, At: b.clock.Now()})
	}
	if !s.Known() {
		return false
	}
	b.awaitingReply = false
	return true
}

// probe resets the known status and asks the device to report.
func (b *Bridge) probe(reason string) {
	previous := b.status
	b.setStatus(accessory.StatusUnknown)
	b.opts.Accessory.SetStatus(accessory.StatusUnknown)
	b.prober.Reset()
	b.awaitingReply = false

	if previous != accessory.StatusUnknown {
		b.emit(Event{Kind: EventStatus, Status: accessory.StatusUnknown, Source: history.SourceProbe, At: b.clock.Now()})
	}
	b.sendProbe(reason)
}

func (b *Bridge) sendProbe(reason string) {
	b.probes.Add(1)
	b.send(LineProbe)
	b.emit(Event{Kind: EventProbe, Source: reason, At: b.clock.Now()})
}

// query asks an unresponsive device whether it is alive.
func (b *Bridge) query() {
	b.queries.Add(1)
	b.awaitingReply = true
	b.send(LineQuery)
	b.emit(Event{Kind: EventQuery, At: b.clock.Now()})
}

// send transmits one line. Failures are counted and logged, never retried.
func (b *Bridge) send(line string) {
	b.logDebug("Sending "+strings.TrimSuffix(line, "\n"), "host", b.opts.Host, "port", b.opts.Port)

	if !b.opts.Sender.SendTo([]byte(line), b.opts.Host, b.opts.Port) {
		b.sendFailures.Add(1)
		b.logDebug("send failed", "line", strings.TrimSuffix(line, "\n"), "host", b.opts.Host, "port", b.opts.Port)
		return
	}
	b.linesSent.Add(1)
}

func (b *Bridge) setStatus(s accessory.Status) {
	b.status = s
	b.current.Store(int32(s))
}

// enqueueChange runs on the goroutine that changed the accessory.
func (b *Bridge) enqueueChange(s accessory.Status) {
	select {
	case b.changes <- s:
	case <-b.done:
	}
}

// emit queues ev for observers without blocking the loop.
func (b *Bridge) emit(ev Event) {
	if len(b.opts.Observers) == 0 {
		return
	}
	ev.BridgeID = b.opts.ID
	select {
	case b.events <- ev:
	default:
		b.logWarn("observer queue full, dropping event", "kind", ev.Kind, "status", ev.Status.String())
	}
}

func (b *Bridge) notifyLoop(ctx context.Context) {
	defer b.wg.Done()

	for ev := range b.events {
		for _, o := range b.opts.Observers {
			octx, cancel := context.WithTimeout(ctx, observerTimeout)
			o.Observe(octx, ev)
			cancel()
		}
	}
}

// drain discards lines and requests that arrived after shutdown began.
func (b *Bridge) drain() {
	lines := b.opts.Receiver.Lines()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			b.logDebug("discarding pending line", "text", line.Text)
		case s := <-b.changes:
			b.logDebug("discarding pending request", "status", s.String())
		default:
			return
		}
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.opts.Logger != nil {
		b.opts.Logger.Warn(msg, keysAndValues...)
	}
}

package accessory

import (
	"sync"
	"time"
)

// Capability is the narrow view of an accessory the bridge needs.
//
// SetStatus records a state that came from the device; it does not
// notify observers. Changes requested by the automation framework are
// announced through OnChange.
type Capability interface {
	Status() Status
	SetStatus(Status)
	OnChange(fn func(Status)) (unsubscribe func())
}

// Info identifies the accessory to the automation framework.
type Info struct {
	Name             string
	Manufacturer     string
	Model            string
	SerialNumber     string
	FirmwareRevision string
}

// Ensure Accessory implements Capability.
var _ Capability = (*Accessory)(nil)

// Accessory is an in-memory on/off accessory: an outlet, a light or a switch.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Observers are called without the lock held, on the caller's goroutine.
type Accessory struct {
	info Info
	kind Kind

	mu        sync.RWMutex
	status    Status
	changedAt time.Time
	observers map[int]func(Status)
	nextID    int
}

// New creates an accessory of the given kind in the Unknown state.
func New(kind Kind, info Info) *Accessory {
	if kind == "" {
		kind = KindOutlet
	}
	return &Accessory{
		info:      info,
		kind:      kind,
		changedAt: time.Now(),
		observers: make(map[int]func(Status)),
	}
}

// Info returns the accessory's identity.
func (a *Accessory) Info() Info { return a.info }

// Kind returns the accessory kind.
func (a *Accessory) Kind() Kind { return a.kind }

// Status returns the current status.
func (a *Accessory) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// LastChanged returns when the status was last written.
func (a *Accessory) LastChanged() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.changedAt
}

// SetStatus records the device-reported status without notifying observers.
func (a *Accessory) SetStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.changedAt = time.Now()
	a.mu.Unlock()
}

// Request applies a change asked for by the automation framework and
// notifies every observer, even when the value is unchanged.
func (a *Accessory) Request(s Status) {
	a.mu.Lock()
	a.status = s
	a.changedAt = time.Now()
	observers := make([]func(Status), 0, len(a.observers))
	for _, fn := range a.observers {
		observers = append(observers, fn)
	}
	a.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// OnChange registers fn for requested changes. The returned function
// removes the registration and may be called more than once.
func (a *Accessory) OnChange(fn func(Status)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.observers[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.observers, id)
			a.mu.Unlock()
		})
	}
}

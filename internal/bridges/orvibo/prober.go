package orvibo

// ProbeTimer counts health-check ticks towards a liveness query.
//
// It is owned by the bridge loop and is not safe for concurrent use.
type ProbeTimer struct {
	threshold int
	ticks     int
}

// NewProbeTimer returns a timer that fires every threshold ticks.
// A threshold below 1 is treated as 1.
func NewProbeTimer(threshold int) *ProbeTimer {
	if threshold < 1 {
		threshold = 1
	}
	return &ProbeTimer{threshold: threshold}
}

// Tick advances the counter. It reports true, and starts counting again,
// when the threshold is reached.
func (p *ProbeTimer) Tick() bool {
	p.ticks++
	if p.ticks < p.threshold {
		return false
	}
	p.ticks = 0
	return true
}

// Reset starts counting from zero.
func (p *ProbeTimer) Reset() { p.ticks = 0 }

// Ticks returns the ticks counted since the last reset.
func (p *ProbeTimer) Ticks() int { return p.ticks }

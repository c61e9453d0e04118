package orvibo

import "testing"

func TestProbeTimer(t *testing.T) {
	p := NewProbeTimer(3)

	fired := 0
	for range 9 {
		if p.Tick() {
			fired++
		}
	}
	if fired != 3 {
		t.Errorf("fired %d times in 9 ticks, want 3", fired)
	}

	p.Tick()
	p.Tick()
	p.Reset()
	if p.Ticks() != 0 {
		t.Errorf("Ticks() after Reset = %d", p.Ticks())
	}
	if p.Tick() || p.Tick() {
		t.Error("fired before threshold after Reset")
	}
	if !p.Tick() {
		t.Error("did not fire at threshold")
	}
}

func TestProbeTimer_MinimumThreshold(t *testing.T) {
	p := NewProbeTimer(0)
	if !p.Tick() {
		t.Error("threshold 0 should fire on every tick")
	}
}

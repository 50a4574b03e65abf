package clock_test

import (
	"math"
	"testing"

	"github.com/quimgil/overwitch/internal/clock"
)

func TestDLLTracksIdealClock(t *testing.T) {
	const rate, frames = 48000, 56
	dt := float64(frames) / float64(rate)

	var d clock.DLL
	d.Init(rate, frames, 0)

	now := 0.0
	for i := 0; i < 200; i++ {
		now += dt
		d.Increment(frames, now)
	}

	if !d.Settled() {
		t.Error("loop not settled after 200 ideal increments")
	}
	if got := d.Period(); math.Abs(got-dt) > dt*1e-3 {
		t.Errorf("Period() = %g, want %g", got, dt)
	}
	_, t1 := d.Boundaries()
	if math.Abs(t1-(now+dt)) > dt*0.05 {
		t.Errorf("t1 = %g, want about %g", t1, now+dt)
	}
}

func TestDLLConvergesOnSkewedClock(t *testing.T) {
	const rate, frames = 48000, 56
	dt := float64(frames) / float64(rate)
	skew := dt * 1.001 // device 0.1% slow relative to host clock

	var d clock.DLL
	d.Init(rate, frames, 0)

	now := 0.0
	for i := 0; i < 2000; i++ {
		now += skew
		d.Increment(frames, now)
	}

	if got := d.Period(); math.Abs(got-skew) > skew*1e-3 {
		t.Errorf("Period() = %g, want %g after convergence", got, skew)
	}
}

func TestDLLNotSettledEarly(t *testing.T) {
	var d clock.DLL
	d.Init(48000, 56, 0)
	if d.Settled() {
		t.Error("Settled() true immediately after Init")
	}
	d.Increment(56, 56.0/48000)
	if d.Settled() {
		t.Error("Settled() true after one increment")
	}
}

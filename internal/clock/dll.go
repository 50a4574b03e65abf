// Package clock provides the delay-locked loop the host uses to align its
// audio callback clock with the device sample clock, plus a monotonic time
// source suitable for the engine context.
package clock

import "math"

// Loop bandwidth in Hz. Wide enough to settle within a few transfer
// periods, narrow enough to reject USB completion jitter.
const bandwidth = 1.6

// warmupIncrements is how many transfer periods the loop observes before it
// reports itself settled.
const warmupIncrements = 20

// DLL is a second-order delay-locked loop tracking the device sample clock
// against the host clock. The engine drives Increment once per inbound
// transfer while holding its own lock; DLL itself is not synchronized.
type DLL struct {
	dt float64 // nominal transfer period, seconds
	b  float64
	c  float64

	t0 float64 // filtered time of the previous transfer boundary
	t1 float64 // filtered time of the next transfer boundary
	e2 float64 // filtered period estimate

	increments int
}

// Init primes the loop at time now for the given rate and transfer size.
func (d *DLL) Init(sampleRate, framesPerTransfer int, now float64) {
	d.dt = float64(framesPerTransfer) / float64(sampleRate)
	w := 2 * math.Pi * bandwidth * d.dt
	d.b = math.Sqrt2 * w
	d.c = w * w
	d.e2 = d.dt
	d.t0 = now
	d.t1 = now + d.e2
	d.increments = 0
}

// Increment advances the loop by one transfer of framesPerTransfer frames
// observed to complete at time now.
func (d *DLL) Increment(framesPerTransfer int, now float64) {
	e := now - d.t1
	d.t0 = d.t1
	d.t1 += d.b*e + d.e2
	d.e2 += d.c * e
	d.increments++
}

// Boundaries returns the filtered times of the current transfer interval.
func (d *DLL) Boundaries() (t0, t1 float64) { return d.t0, d.t1 }

// Period returns the filtered transfer period estimate in seconds.
func (d *DLL) Period() float64 { return d.e2 }

// Settled reports whether the loop has warmed up enough for the host to
// move the engine from WAIT to RUN.
func (d *DLL) Settled() bool {
	if d.increments < warmupIncrements {
		return false
	}
	return math.Abs(d.e2-d.dt) < d.dt*0.01
}

//go:build !linux

package clock

import "time"

var start = time.Now()

// MonotonicNow returns seconds since process start on a monotonic clock.
func MonotonicNow() float64 {
	return time.Since(start).Seconds()
}

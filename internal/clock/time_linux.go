//go:build linux

package clock

import "golang.org/x/sys/unix"

// MonotonicNow returns CLOCK_MONOTONIC in seconds. It matches the clock the
// host audio stack timestamps against, so engine MIDI timestamps and DLL
// increments stay on one timeline.
func MonotonicNow() float64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return float64(ts.Sec) + float64(ts.Nsec)*1e-9
}

//go:build linux

package engine

import "golang.org/x/sys/unix"

// DefaultRTPriority is the SCHED_FIFO priority applied to the worker
// threads when the host does not provide its own hook.
const DefaultRTPriority = 48

// setThreadRTPriority promotes the calling thread to SCHED_FIFO. Workers
// call it after runtime.LockOSThread, so the policy sticks to the right
// thread.
func setThreadRTPriority(priority int) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}

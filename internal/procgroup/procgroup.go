// Package procgroup supervises the ffmpeg subprocess trees this system
// spawns. Each is started in its own process group so a stalled child (and
// any grandchildren it forked) can be reaped as a unit instead of leaking
// past the parent's exit. The headless browser is not started through this
// package; chromedp's exec allocator owns its process.
package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

// ErrKillFailed is returned when a process group does not exit within
// the combined grace+timeout window.
var ErrKillFailed = errors.New("procgroup: kill operation failed")

// Set configures cmd to start as the leader of a new process group.
// Mandatory before KillGroup can reap the whole tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// KillGroup sends SIGTERM to the process group rooted at pid, waits up to
// grace for a voluntary exit, then sends SIGKILL and waits up to timeout
// for the forced exit. The process must have been started via Set.
func KillGroup(pid int, grace, timeout time.Duration) error {
	return killGroup(pid, grace, timeout)
}

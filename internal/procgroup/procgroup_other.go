//go:build !linux

package procgroup

import (
	"os"
	"os/exec"
	"time"

	"github.com/webvideocreator/wvc/internal/wlog"
)

func set(cmd *exec.Cmd) {
	// Best-effort only: non-Linux platforms don't get process-group kill.
}

func killGroup(pid int, grace, timeout time.Duration) error {
	if pid <= 0 {
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}

	wlog.L().Debug().Int("pid", pid).Msg("procgroup: sending interrupt to root process (non-linux fallback)")
	_ = proc.Signal(os.Interrupt)

	done := make(chan struct{})
	go func() {
		_, _ = proc.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		_ = proc.Kill()
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrKillFailed
	}
}

package procgroup

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKillGroupReapsChildren(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("process-group kill is linux-specific")
	}

	cmd := exec.Command("bash", "-c", "sleep 30 & sleep 30")
	Set(cmd)
	require.NoError(t, cmd.Start())

	pid := cmd.Process.Pid
	time.Sleep(100 * time.Millisecond)

	err := KillGroup(pid, 2*time.Second, 2*time.Second)
	require.NoError(t, err)

	_ = cmd.Wait()
}

func TestKillGroupNoopOnInvalidPid(t *testing.T) {
	require.NoError(t, KillGroup(0, time.Second, time.Second))
	require.NoError(t, KillGroup(-1, time.Second, time.Second))
}

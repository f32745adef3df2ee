package daemon

import (
	"os/exec"
)

// StartDaemonWithPath spawns `<binaryPath> run` detached from the calling
// terminal.
func StartDaemonWithPath(binaryPath string, extraArgs ...string) error {
	cmd := daemonCommand(binaryPath, extraArgs)

	// Detach from parent process
	cmd.SysProcAttr = detachedProcAttr()

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func daemonCommand(binaryPath string, extraArgs []string) *exec.Cmd {
	args := append([]string{"run"}, extraArgs...)
	return exec.Command(binaryPath, args...)
}

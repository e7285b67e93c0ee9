//go:build windows

package shellexec

import (
	"errors"
	"os"
	"os/exec"
)

func platformShell() (string, string) {
	return "cmd.exe", "/c"
}

// setProcGroup is a no-op: there is no process-group kill on Windows, so
// termination targets the direct child only.
func setProcGroup(cmd *exec.Cmd) {}

func terminateGroup(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}

func killGroup(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}

// exitSignal always reports no signal; Windows processes end with exit codes.
func exitSignal(err *exec.ExitError) string {
	return ""
}

func openPTY(cmd *exec.Cmd, cols, rows uint16) (*os.File, error) {
	return nil, errors.New("interactive mode is not supported on windows")
}

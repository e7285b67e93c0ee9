//go:build !windows

package shellexec

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

func platformShell() (string, string) {
	return "bash", "-c"
}

// setProcGroup puts the child in its own process group so the whole pipeline
// can be signalled at once.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup sends SIGTERM to the child's process group, falling back to
// signalling just the child when the group is gone.
func terminateGroup(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

// killGroup force-kills the child's process group.
func killGroup(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

// exitSignal returns the name of the signal that terminated the process, or
// "" when it exited on its own.
func exitSignal(err *exec.ExitError) string {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ws.Signal().String()
	}
	return ""
}

// openPTY allocates a pseudo-terminal at the requested dimensions and starts
// the command on it.
func openPTY(cmd *exec.Cmd, cols, rows uint16) (*os.File, error) {
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}
	return pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
}

//go:build unix

package daemon

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr puts the daemon in its own process group so the dev servers it
// spawns go down with it.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func terminateGroup(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

func killGroup(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}

// signalGroup signals the process group of pid, falling back to pid alone.
// A process that is already gone is not an error.
func signalGroup(pid int, sig syscall.Signal) error {
	var err error
	if pgid, gerr := unix.Getpgid(pid); gerr == nil && pgid > 0 {
		err = unix.Kill(-pgid, sig)
	} else {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

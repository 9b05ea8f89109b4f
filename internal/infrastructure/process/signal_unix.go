//go:build unix

package process

import "golang.org/x/sys/unix"

// KillGroup sends SIGKILL to the process group led by pid (a negative
// PID targets the group). Callers treat it as best-effort: orphan cleanup
// ignores the error, and StopService reports it only when the group is
// still alive afterwards.
func KillGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}

// GroupAlive reports whether any process in pid's group is still alive,
// by probing with signal 0.
func GroupAlive(pid int) bool {
	return unix.Kill(-pid, 0) == nil
}

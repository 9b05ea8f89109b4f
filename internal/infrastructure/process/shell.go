// Package process provides the OS-level primitives the supervisor needs:
// building the shell-wrapped child command and signaling whole process
// groups.
package process

import (
	"os/exec"
	"strings"
	"syscall"
)

// BuildCommand constructs the exec.Cmd that runs command under a POSIX
// shell, cd'd into workdir, placed in its own new process group so a
// single signal to the negative PID reaches every descendant the shell
// spawns. The exec prefix keeps the shell from lingering as an extra
// layer between the supervisor and the service.
func BuildCommand(command, workdir string) *exec.Cmd {
	shellCommand := command
	if strings.HasPrefix(strings.TrimSpace(command), "exec ") {
		shellCommand = "cd " + shellQuote(workdir) + " && " + command
	} else {
		shellCommand = "cd " + shellQuote(workdir) + " && exec " + command
	}

	cmd := exec.Command("/bin/sh", "-c", shellCommand)
	cmd.Dir = workdir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// shellQuote wraps a path in single quotes for the generated "cd" prefix.
// Only the path is quoted; the command string itself reaches the shell
// verbatim.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

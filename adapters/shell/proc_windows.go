//go:build windows

package shell

import (
	"os/exec"
	"strconv"
)

func shellCommand(command string) (string, []string) {
	return "cmd", []string{"/C", command}
}

func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		// /T takes the child tree down with the shell.
		return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid)).Run()
	}
}

func killProcessGroup(cmd *exec.Cmd) {}

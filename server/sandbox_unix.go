//go:build unix

package server

import (
	"os/exec"
	"syscall"
	"time"
)

// isolate 让子进程独占一个进程组，超时或取消时整组 SIGKILL，
// 脚本派生的孙进程也不会残留
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
}

//go:build !windows

package launcher

import "syscall"

func terminateSignal() syscall.Signal {
	return syscall.SIGTERM
}

//go:build windows

package launcher

import "os"

func terminateSignal() os.Signal {
	return os.Kill
}

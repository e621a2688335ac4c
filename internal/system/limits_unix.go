//go:build linux || darwin

package system

import (
	"log/slog"
	"syscall"
)

// InitResourceLimits raises the open file limit so preloading from disk does not run out
// of descriptors.
func InitResourceLimits(logger *slog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("getrlimit failed", "err", err)
		return
	}

	want := uint64(2048)
	if want > rLimit.Max {
		want = rLimit.Max
	}
	if rLimit.Cur >= want {
		return
	}
	rLimit.Cur = want

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("setrlimit failed", "err", err)
		return
	}
	logger.Debug("open file limit raised", "limit", rLimit.Cur)
}

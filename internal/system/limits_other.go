//go:build !(linux || darwin)

package system

import "log/slog"

// InitResourceLimits is a no-op where rlimits do not exist.
func InitResourceLimits(*slog.Logger) {}

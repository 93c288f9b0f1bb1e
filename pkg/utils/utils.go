// pkg/utils/utils.go
package utils

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// fdHeadroom is kept free for stdio, the log and report files and listeners.
const fdHeadroom = 100

// IsPrivileged reports whether the process runs as root, which raw ICMP
// sockets need.
func IsPrivileged() bool {
	return unix.Geteuid() == 0
}

// CheckFileDescriptorLimit warns if the concurrency limit might exceed the
// open file limit. Each in-flight send holds one socket. It returns false
// when a warning was logged.
func CheckFileDescriptorLimit(logger *slog.Logger, concurrency int) bool {
	var rLimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Debug("Could not read the open file limit.", "error", err)
		return true
	}
	return fitsLimit(logger, concurrency, rLimit.Cur)
}

func fitsLimit(logger *slog.Logger, concurrency int, limit uint64) bool {
	if uint64(concurrency)+fdHeadroom >= limit {
		logger.Warn("Concurrency is close to the file descriptor limit.",
			"concurrency", concurrency,
			"limit", limit,
		)
		return false
	}
	return true
}

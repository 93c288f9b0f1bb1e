package pinger

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-ping/ping"
)

// pingHostFunc is a package-level variable that defaults to the actual Ping function.
var pingHostFunc = Ping

// Reachable reports whether host answers a single ICMP echo within timeout.
// Privileged selects raw ICMP sockets (root) over unprivileged UDP ping.
func Reachable(host string, timeout time.Duration, privileged bool, parentLogger *slog.Logger) bool {
	pingerLogger := parentLogger.With(slog.String("component", "pinger"))
	pingerLogger.Info("Starting reachability check.", "host", host, "timeout", timeout, "privileged", privileged)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if pingHostFunc(ctx, host, privileged) {
		pingerLogger.Info("Host is reachable.", "host", host)
		return true
	}
	pingerLogger.Warn("Host is unreachable or timed out.", "host", host)
	return false
}

// Ping returns true if host responds to a single echo request within ctx deadline.
func Ping(ctx context.Context, host string, privileged bool) bool {
	p, err := ping.NewPinger(host)
	if err != nil {
		return false
	}
	p.Count = 1
	p.SetPrivileged(privileged)
	if deadline, ok := ctx.Deadline(); ok {
		p.Timeout = time.Until(deadline)
	}
	stop := context.AfterFunc(ctx, p.Stop)
	defer stop()

	if err := p.Run(); err != nil {
		return false
	}
	return ctx.Err() == nil && p.Statistics().PacketsRecv > 0
}

package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/stamon-dev/stamon/internal/model"
)

// pingPayloadSize matches the 4-byte echo payload the original checks used.
// The library pads to its own minimum; anything below that is equivalent.
const pingPayloadSize = 4

var (
	errResolve = errors.New("resolve target")
	errNoReply = errors.New("no echo reply")
)

// pingFunc sends one echo and returns the RTT. Swapped out in tests.
type pingFunc func(ctx context.Context, addr string, timeout time.Duration) (time.Duration, error)

// PingDriver probes a service with a single ICMP echo.
type PingDriver struct {
	run pingFunc
}

// NewPingDriver returns a PingDriver using unprivileged UDP ICMP.
func NewPingDriver() *PingDriver {
	return &PingDriver{run: runEcho}
}

func runEcho(ctx context.Context, addr string, timeout time.Duration) (time.Duration, error) {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", errResolve, addr, err)
	}
	pinger.Count = 1
	pinger.Size = pingPayloadSize
	pinger.Timeout = timeout
	pinger.Interval = timeout
	pinger.SetPrivileged(false)
	pinger.SetDoNotFragment(true)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 || len(stats.Rtts) == 0 {
		return 0, errNoReply
	}
	return stats.Rtts[0], nil
}

// Probe sends one echo to the service URL (a host or IP).
// OS-level socket errors mean the monitor itself cannot probe and map to
// Failed with an operator notification; everything else negative is Down.
func (d *PingDriver) Probe(ctx context.Context, task model.ProbeTask) Result {
	svc := task.Service
	timeout := time.Duration(svc.Timeout) * time.Second

	start := time.Now()
	rtt, err := d.run(ctx, svc.URL, timeout)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		return Result{Entry: upEntry(svc.ID, rtt)}
	case errors.Is(err, errResolve):
		return Result{Entry: failedEntry(svc.ID, err.Error(), elapsed)}
	case isOSError(err):
		return Result{
			Entry:        failedEntry(svc.ID, err.Error(), elapsed),
			Notification: networkErrorNotification(err),
		}
	case errors.Is(err, errNoReply),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return Result{Entry: downEntry(svc.ID, "no echo reply within timeout", elapsed)}
	default:
		return Result{Entry: downEntry(svc.ID, err.Error(), elapsed)}
	}
}

// isOSError reports whether err originates at the socket layer (permission
// denied, no buffer space, interface down) rather than from the remote host.
func isOSError(err error) bool {
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

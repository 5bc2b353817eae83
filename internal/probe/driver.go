// Package probe executes single service checks. A driver never returns an
// error: every failure mode is folded into the resulting log entry status
// (Down for negative results, Failed for internal/OS errors).
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/stamon-dev/stamon/internal/model"
)

// Result is the outcome of one probe. Notification is set only for
// immediate operator alerts (network-level errors); status-transition
// notifications are derived later from the entry.
type Result struct {
	Entry        model.LogEntry
	Notification *model.Notification
}

// Driver executes one probe for a service snapshot.
type Driver interface {
	Probe(ctx context.Context, task model.ProbeTask) Result
}

type dispatcher struct {
	ping *PingDriver
	http *HTTPDriver
}

// NewDriver returns the production driver, dispatching on service type.
func NewDriver() Driver {
	return &dispatcher{ping: NewPingDriver(), http: NewHTTPDriver()}
}

func (d *dispatcher) Probe(ctx context.Context, task model.ProbeTask) Result {
	var res Result
	switch task.Service.ServiceType {
	case model.ServiceTypePing:
		res = d.ping.Probe(ctx, task)
	case model.ServiceTypeHTTP:
		res = d.http.Probe(ctx, task)
	default:
		res = Result{Entry: failedEntry(task.Service.ID,
			fmt.Sprintf("unknown service type %q", task.Service.ServiceType), 0)}
	}
	if task.Service.Invert {
		res.Entry.Status = res.Entry.Status.Invert()
	}
	return res
}

func upEntry(serviceID uint32, duration time.Duration) model.LogEntry {
	return model.LogEntry{
		ServiceID: serviceID,
		Status:    model.StatusUp,
		Time:      time.Now(),
		Duration:  durationMS(duration),
	}
}

func downEntry(serviceID uint32, message string, duration time.Duration) model.LogEntry {
	return model.LogEntry{
		ServiceID: serviceID,
		Status:    model.StatusDown,
		Message:   message,
		Time:      time.Now(),
		Duration:  durationMS(duration),
	}
}

func failedEntry(serviceID uint32, message string, duration time.Duration) model.LogEntry {
	return model.LogEntry{
		ServiceID: serviceID,
		Status:    model.StatusFailed,
		Message:   message,
		Time:      time.Now(),
		Duration:  durationMS(duration),
	}
}

func durationMS(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(d.Milliseconds())
}

func networkErrorNotification(err error) *model.Notification {
	return &model.Notification{
		Title:   "Network Error",
		Message: err.Error(),
		Level:   model.LevelError,
	}
}

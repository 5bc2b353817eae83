package probe

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stamon-dev/stamon/internal/model"
)

func pingTask() model.ProbeTask {
	return model.ProbeTask{
		Service: model.Service{
			ID: 2, Name: "gw", URL: "192.0.2.1",
			Timeout: 5, ServiceType: model.ServiceTypePing,
		},
		EnqueuedAt: time.Now(),
	}
}

func fakePing(rtt time.Duration, err error) pingFunc {
	return func(context.Context, string, time.Duration) (time.Duration, error) {
		return rtt, err
	}
}

func TestPingProbeUp(t *testing.T) {
	d := &PingDriver{run: fakePing(42*time.Millisecond, nil)}

	res := d.Probe(context.Background(), pingTask())
	if res.Entry.Status != model.StatusUp {
		t.Fatalf("expected Up, got %v (%q)", res.Entry.Status, res.Entry.Message)
	}
	if res.Entry.Duration != 42 {
		t.Fatalf("expected RTT 42ms, got %d", res.Entry.Duration)
	}
}

func TestPingProbeNoReply(t *testing.T) {
	d := &PingDriver{run: fakePing(0, errNoReply)}

	res := d.Probe(context.Background(), pingTask())
	if res.Entry.Status != model.StatusDown {
		t.Fatalf("expected Down, got %v", res.Entry.Status)
	}
	if res.Notification != nil {
		t.Fatalf("no-reply must not notify, got %+v", res.Notification)
	}
}

func TestPingProbeOSError(t *testing.T) {
	osErr := &os.SyscallError{Syscall: "socket", Err: syscall.EPERM}
	d := &PingDriver{run: fakePing(0, fmt.Errorf("listen: %w", osErr))}

	res := d.Probe(context.Background(), pingTask())
	if res.Entry.Status != model.StatusFailed {
		t.Fatalf("expected Failed for socket error, got %v", res.Entry.Status)
	}
	if res.Notification == nil || res.Notification.Title != "Network Error" {
		t.Fatalf("expected Network Error notification, got %+v", res.Notification)
	}
}

func TestPingProbeResolveError(t *testing.T) {
	d := &PingDriver{run: fakePing(0, fmt.Errorf("%w %q: no such host", errResolve, "bad..host"))}

	res := d.Probe(context.Background(), pingTask())
	if res.Entry.Status != model.StatusFailed {
		t.Fatalf("expected Failed for unresolvable target, got %v", res.Entry.Status)
	}
	if res.Notification != nil {
		t.Fatalf("resolve failure must not notify, got %+v", res.Notification)
	}
}

func TestPingProbeContextDeadline(t *testing.T) {
	d := &PingDriver{run: fakePing(0, context.DeadlineExceeded)}

	res := d.Probe(context.Background(), pingTask())
	if res.Entry.Status != model.StatusDown {
		t.Fatalf("expected Down on deadline, got %v", res.Entry.Status)
	}
}

func TestDispatchInvert(t *testing.T) {
	d := &dispatcher{
		ping: &PingDriver{run: fakePing(5*time.Millisecond, nil)},
		http: NewHTTPDriver(),
	}

	task := pingTask()
	task.Service.Invert = true
	res := d.Probe(context.Background(), task)
	if res.Entry.Status != model.StatusDown {
		t.Fatalf("invert must flip Up to Down, got %v", res.Entry.Status)
	}

	// Failed passes through invert unchanged.
	task.Service.URL = "x"
	d.ping = &PingDriver{run: fakePing(0, errResolve)}
	res = d.Probe(context.Background(), task)
	if res.Entry.Status != model.StatusFailed {
		t.Fatalf("invert must not touch Failed, got %v", res.Entry.Status)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	d := NewDriver()
	task := pingTask()
	task.Service.ServiceType = "carrier-pigeon"

	res := d.Probe(context.Background(), task)
	if res.Entry.Status != model.StatusFailed {
		t.Fatalf("expected Failed for unknown type, got %v", res.Entry.Status)
	}
}

package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/stamon-dev/stamon/internal/model"
)

// maxBodyBytes bounds how much of a response body is read for payload
// comparison.
const maxBodyBytes = 1 << 20

// HTTPDriver probes a service with a single GET request.
type HTTPDriver struct {
	client *http.Client
}

// NewHTTPDriver returns an HTTPDriver with a dedicated client.
// Per-probe timeouts come from the service config, not the client.
func NewHTTPDriver() *HTTPDriver {
	return &HTTPDriver{client: &http.Client{}}
}

// Probe issues a GET to the service URL. Duration is time to response
// headers. Transport errors are Down; connect failures additionally raise
// an operator notification, while a plain timeout does not. Status and
// payload rules decide the rest.
func (d *HTTPDriver) Probe(ctx context.Context, task model.ProbeTask) Result {
	svc := task.Service
	timeout := time.Duration(svc.Timeout) * time.Second

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL, nil)
	if err != nil {
		return Result{Entry: failedEntry(svc.ID, fmt.Sprintf("build request: %v", err), 0)}
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		entry := downEntry(svc.ID, err.Error(), elapsed)
		if isTimeout(err) {
			return Result{Entry: entry}
		}
		return Result{Entry: entry, Notification: networkErrorNotification(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		expected := http.StatusOK
		if svc.ExpectedCode != nil {
			expected = *svc.ExpectedCode
		}
		if resp.StatusCode == expected {
			return Result{Entry: upEntry(svc.ID, elapsed)}
		}
		return Result{Entry: downEntry(svc.ID,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), elapsed)}
	}

	if svc.ExpectedPayload == nil {
		return Result{Entry: upEntry(svc.ID, elapsed)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Entry: downEntry(svc.ID, fmt.Sprintf("read body: %v", err), elapsed)}
	}
	if jsonEqual(*svc.ExpectedPayload, string(body)) {
		return Result{Entry: upEntry(svc.ID, elapsed)}
	}
	return Result{Entry: downEntry(svc.ID,
		fmt.Sprintf("Expected: %s Got: %s", *svc.ExpectedPayload, body), elapsed)}
}

// isTimeout reports whether err is the probe deadline expiring rather than
// a connect-level failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// jsonEqual compares two JSON documents structurally, ignoring key order
// and whitespace. Non-JSON inputs fall back to exact string comparison.
func jsonEqual(a, b string) bool {
	var va, vb any
	if json.Unmarshal([]byte(a), &va) != nil || json.Unmarshal([]byte(b), &vb) != nil {
		return a == b
	}
	return reflect.DeepEqual(va, vb)
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read scrape body: %v", err)
	}
	return string(body)
}

func TestObserveProbe(t *testing.T) {
	Reset()
	ObserveProbe("http", "Up", 120*time.Millisecond)
	ObserveProbe("http", "Up", 80*time.Millisecond)
	ObserveProbe("ping", "Down", 5*time.Second)

	body := scrape(t)
	if !strings.Contains(body, `stamon_probes_total{status="Up",type="http"} 2`) {
		t.Fatalf("missing http Up counter:\n%s", body)
	}
	if !strings.Contains(body, `stamon_probes_total{status="Down",type="ping"} 1`) {
		t.Fatalf("missing ping Down counter:\n%s", body)
	}
	if !strings.Contains(body, "stamon_probe_duration_seconds") {
		t.Fatal("missing probe duration histogram")
	}
}

func TestGauges(t *testing.T) {
	Reset()
	SetQueueDepth("probe", 7)
	AddWSClients(2)
	AddWSClients(-1)
	IncEventsDropped(3)
	IncSchedulerTick("run")
	IncSchedulerTick("shed")

	body := scrape(t)
	for _, want := range []string{
		`stamon_queue_depth{kind="probe"} 7`,
		`stamon_ws_clients 1`,
		`stamon_events_dropped_total 3`,
		`stamon_scheduler_ticks_total{outcome="run"} 1`,
		`stamon_scheduler_ticks_total{outcome="shed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in scrape:\n%s", want, body)
		}
	}
}

func TestResetClears(t *testing.T) {
	Reset()
	ObserveProbe("http", "Up", time.Millisecond)
	Reset()

	if strings.Contains(scrape(t), `stamon_probes_total{status="Up",type="http"}`) {
		t.Fatal("Reset did not clear counters")
	}
}

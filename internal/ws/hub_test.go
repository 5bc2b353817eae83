package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stamon-dev/stamon/internal/bus"
	"github.com/stamon-dev/stamon/internal/model"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newHubServer(t *testing.T) (*Hub, *bus.Bus, *httptest.Server) {
	t.Helper()
	b := bus.New(16)
	hub := NewHub(b)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, b, srv
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHelloPing(t *testing.T) {
	_, _, srv := newHubServer(t)
	conn := dialHub(t, srv)

	pings := make(chan string, 1)
	conn.SetPingHandler(func(payload string) error {
		select {
		case pings <- payload:
		default:
		}
		return nil
	})

	// Ping handlers only fire while a read is in progress.
	go conn.ReadMessage() //nolint:errcheck

	select {
	case payload := <-pings:
		if payload != string([]byte{1, 2, 3}) {
			t.Fatalf("unexpected hello payload %v", []byte(payload))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no hello ping received")
	}
}

func TestEventFanOut(t *testing.T) {
	hub, b, srv := newHubServer(t)

	c1 := dialHub(t, srv)
	c2 := dialHub(t, srv)
	waitFor(t, "both clients registered", func() bool { return hub.ClientCount() == 2 })

	entry := model.LogEntry{ID: 9, ServiceID: 3, Status: model.StatusUp, Duration: 17}
	b.Publish(bus.LogEvent(entry))

	for _, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if msgType != websocket.TextMessage {
			t.Fatalf("expected text frame, got %d", msgType)
		}

		var decoded struct {
			Type  string `json:"type"`
			Value struct {
				ServiceID uint32 `json:"service_id"`
				Status    int    `json:"status"`
			} `json:"value"`
		}
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", payload, err)
		}
		if decoded.Type != "log" || decoded.Value.ServiceID != 3 || decoded.Value.Status != 1 {
			t.Fatalf("unexpected frame %s", payload)
		}
	}
}

func TestNotificationFrame(t *testing.T) {
	_, b, srv := newHubServer(t)
	conn := dialHub(t, srv)

	b.Publish(bus.NotificationEvent(model.Notification{
		Title: "Back Up", Message: "Service api back Up", Level: model.LevelSuccess,
	}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// WriteJSON frames carry the encoder's trailing newline.
	want := `{"type":"notification","value":{"title":"Back Up","message":"Service api back Up","level":"success"}}`
	if got := strings.TrimSuffix(string(payload), "\n"); got != want {
		t.Fatalf("frame mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestClientDisconnectCleansUp(t *testing.T) {
	hub, b, srv := newHubServer(t)

	conn := dialHub(t, srv)
	waitFor(t, "client registered", func() bool { return hub.ClientCount() == 1 })
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 bus subscriber, got %d", b.SubscriberCount())
	}

	conn.Close()
	waitFor(t, "client dropped", func() bool { return hub.ClientCount() == 0 })
	waitFor(t, "bus unsubscribed", func() bool { return b.SubscriberCount() == 0 })
}

func TestCloseAll(t *testing.T) {
	hub, _, srv := newHubServer(t)

	dialHub(t, srv)
	dialHub(t, srv)
	waitFor(t, "clients registered", func() bool { return hub.ClientCount() == 2 })

	hub.CloseAll()
	waitFor(t, "all dropped", func() bool { return hub.ClientCount() == 0 })
}

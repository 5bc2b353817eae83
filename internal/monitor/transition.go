// Package monitor runs the probing pipeline: a cron scheduler enqueues due
// services, a worker pool executes probes, and the transition engine turns
// outcomes into events, notifications and persisted state.
package monitor

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/stamon-dev/stamon/internal/bus"
	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/probe"
	"github.com/stamon-dev/stamon/internal/queue"
	"github.com/stamon-dev/stamon/internal/state"
)

// Engine applies one probe outcome: publish the log event, derive the
// status-transition notification, persist log + last_status atomically.
type Engine struct {
	logs  *state.LogRepo
	bus   *bus.Bus
	queue *queue.Queue
}

// NewEngine creates a transition engine.
func NewEngine(logs *state.LogRepo, b *bus.Bus, q *queue.Queue) *Engine {
	return &Engine{logs: logs, bus: b, queue: q}
}

// Apply processes one finished probe. Persistence errors are logged and do
// not propagate: the log stream stays live even when the disk does not.
func (e *Engine) Apply(task model.ProbeTask, res probe.Result) {
	entry := res.Entry
	e.bus.Publish(bus.LogEvent(entry))

	if res.Notification != nil {
		e.enqueueNotification(*res.Notification)
	}
	if n := transitionNotification(task.Service.Name, task.Service.LastStatus, entry.Status); n != nil {
		e.enqueueNotification(*n)
	}

	if _, err := e.logs.InsertProbeResult(entry); err != nil {
		log.Printf("[monitor] persist result for service %d: %v", entry.ServiceID, err)
	}
}

func (e *Engine) enqueueNotification(n model.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[monitor] marshal notification: %v", err)
		return
	}
	if _, err := e.queue.Push(queue.KindNotification, payload, ""); err != nil {
		// Queue trouble must not silence the operator: publish directly.
		log.Printf("[monitor] enqueue notification: %v", err)
		e.bus.Publish(bus.NotificationEvent(n))
	}
}

// transitionNotification returns the operator notification for a status
// change, or nil when the change is not noteworthy.
func transitionNotification(name string, prev, next model.Status) *model.Notification {
	switch {
	case prev == model.StatusDown && next == model.StatusUp:
		return &model.Notification{
			Title:   "Back Up",
			Message: fmt.Sprintf("Service %s back Up", name),
			Level:   model.LevelSuccess,
		}
	case prev == model.StatusUp && next == model.StatusDown:
		return &model.Notification{
			Title:   "Service Down",
			Message: fmt.Sprintf("Service %s is Down", name),
			Level:   model.LevelWarning,
		}
	case prev == model.StatusFailed && (next == model.StatusUp || next == model.StatusDown):
		return &model.Notification{
			Title:   "Monitor Success",
			Message: fmt.Sprintf("Service %s check success", name),
			Level:   model.LevelInfo,
		}
	}
	return nil
}

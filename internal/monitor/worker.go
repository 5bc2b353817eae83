package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stamon-dev/stamon/internal/bus"
	"github.com/stamon-dev/stamon/internal/metrics"
	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/probe"
	"github.com/stamon-dev/stamon/internal/queue"
)

const (
	// idlePoll is the lease retry interval when the queue is empty.
	idlePoll = 200 * time.Millisecond
	// errorBackoff is the pause after a lease infrastructure error.
	errorBackoff = time.Second
)

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	ProbeWorkers int           // concurrent probe workers, default 2
	Retries      int           // max queue redeliveries per task, default 3
	Grace        time.Duration // added to service timeout for the outer probe deadline
	LeaseTTL     time.Duration // queue lease duration per task
}

// Pool runs the probe workers and the notification worker.
type Pool struct {
	queue  *queue.Queue
	driver probe.Driver
	engine *Engine
	bus    *bus.Bus
	cfg    PoolConfig

	wg sync.WaitGroup
}

// NewPool creates a worker pool. Call Start to launch it.
func NewPool(q *queue.Queue, driver probe.Driver, engine *Engine, b *bus.Bus, cfg PoolConfig) *Pool {
	if cfg.ProbeWorkers <= 0 {
		cfg.ProbeWorkers = 2
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 2 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	return &Pool{queue: q, driver: driver, engine: engine, bus: b, cfg: cfg}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks
// until all of them have drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.ProbeWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.probeWorker(ctx, "probe-"+uuid.NewString())
		}()
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.notificationWorker(ctx, "notify-"+uuid.NewString())
	}()
	log.Printf("[monitor] started %d probe worker(s) and 1 notification worker", p.cfg.ProbeWorkers)
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) probeWorker(ctx context.Context, workerID string) {
	for {
		task, err := p.queue.Lease(queue.KindProbe, workerID, p.cfg.LeaseTTL)
		if err != nil {
			if !sleepAfterLease(ctx, err) {
				return
			}
			continue
		}
		p.handleProbeTask(ctx, workerID, task)
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Pool) handleProbeTask(ctx context.Context, workerID string, task *queue.Task) {
	// Redelivery cap: a task that keeps outliving its lease is not going
	// to succeed on the next worker either.
	if task.Attempt > p.cfg.Retries {
		log.Printf("[monitor] %s: task %d failed %d redeliveries, dropping", workerID, task.ID, task.Attempt)
		p.ack(task.ID, workerID)
		return
	}

	var pt model.ProbeTask
	if err := json.Unmarshal(task.Payload, &pt); err != nil {
		// Poison task: drop it rather than redeliver forever.
		log.Printf("[monitor] %s: malformed probe payload, dropping task %d: %v", workerID, task.ID, err)
		p.ack(task.ID, workerID)
		return
	}

	timeout := time.Duration(pt.Service.Timeout)*time.Second + p.cfg.Grace
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	res := p.runDriver(probeCtx, pt)
	cancel()

	metrics.ObserveProbe(string(pt.Service.ServiceType), res.Entry.Status.String(), time.Since(start))

	// A Down result retries before it counts, if the service asks for it.
	// Failed means a systemic problem and is surfaced immediately.
	if retryable(pt, res.Entry.Status) {
		p.ack(task.ID, workerID)
		p.enqueueRetry(pt)
		return
	}

	p.engine.Apply(pt, res)
	p.ack(task.ID, workerID)
}

// runDriver shields the worker from a panicking driver: the probe becomes a
// Failed entry instead of taking the worker down.
func (p *Pool) runDriver(ctx context.Context, pt model.ProbeTask) (res probe.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[monitor] probe panic for service %d: %v", pt.Service.ID, r)
			res = probe.Result{Entry: model.LogEntry{
				ServiceID: pt.Service.ID,
				Status:    model.StatusFailed,
				Message:   fmt.Sprintf("probe panic: %v", r),
				Time:      time.Now(),
			}}
		}
	}()
	return p.driver.Probe(ctx, pt)
}

func retryable(pt model.ProbeTask, status model.Status) bool {
	if status != model.StatusDown {
		return false
	}
	return pt.Attempt < int(pt.Service.Retry)
}

func (p *Pool) enqueueRetry(pt model.ProbeTask) {
	next := pt
	next.Attempt++
	payload, err := json.Marshal(next)
	if err != nil {
		log.Printf("[monitor] marshal retry for service %d: %v", pt.Service.ID, err)
		return
	}
	delay := time.Duration(pt.Service.RetryInterval) * time.Second
	key := queue.DedupKey(queue.KindProbe, strconv.FormatUint(uint64(pt.Service.ID), 10))
	if _, err := p.queue.PushDelayed(queue.KindProbe, payload, key, delay); err != nil &&
		!errors.Is(err, queue.ErrDuplicate) {
		log.Printf("[monitor] enqueue retry for service %d: %v", pt.Service.ID, err)
	}
}

func (p *Pool) notificationWorker(ctx context.Context, workerID string) {
	for {
		task, err := p.queue.Lease(queue.KindNotification, workerID, p.cfg.LeaseTTL)
		if err != nil {
			if !sleepAfterLease(ctx, err) {
				return
			}
			continue
		}

		var n model.Notification
		if err := json.Unmarshal(task.Payload, &n); err != nil {
			log.Printf("[monitor] %s: malformed notification, dropping task %d: %v", workerID, task.ID, err)
			p.ack(task.ID, workerID)
			continue
		}
		p.bus.Publish(bus.NotificationEvent(n))
		p.ack(task.ID, workerID)

		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Pool) ack(taskID int64, workerID string) {
	if err := p.queue.Ack(taskID, workerID); err != nil {
		log.Printf("[monitor] %s: ack task %d: %v", workerID, taskID, err)
	}
}

// sleepAfterLease pauses between lease attempts. Returns false when ctx is
// done and the worker should exit.
func sleepAfterLease(ctx context.Context, leaseErr error) bool {
	pause := idlePoll
	if !errors.Is(leaseErr, queue.ErrEmpty) {
		log.Printf("[monitor] lease: %v", leaseErr)
		pause = errorBackoff
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(pause):
		return true
	}
}

package monitor

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stamon-dev/stamon/internal/metrics"
	"github.com/stamon-dev/stamon/internal/model"
	"github.com/stamon-dev/stamon/internal/queue"
	"github.com/stamon-dev/stamon/internal/state"
)

// tickSpec fires every second; each service's interval is evaluated against
// the wall clock so probes land on predictable boundaries.
const tickSpec = "* * * * * *"

// minTickGap drops ticks arriving faster than twice per second, e.g. after
// the cron runner stalls and catches up.
const minTickGap = 500 * time.Millisecond

// SchedulerConfig tunes the enqueue loop.
type SchedulerConfig struct {
	BacklogMax  int           // shed ticks while queue depth exceeds this
	TickTimeout time.Duration // budget for one tick's enqueue work
}

// Scheduler enqueues a probe task for every active service whose interval
// divides the current second-of-day. Missed ticks are not made up.
type Scheduler struct {
	services *state.ServiceRepo
	queue    *queue.Queue
	cfg      SchedulerConfig

	cron *cron.Cron

	mu       sync.Mutex
	lastTick time.Time

	now func() time.Time // test hook
}

// NewScheduler creates a Scheduler. Call Start to begin ticking.
func NewScheduler(services *state.ServiceRepo, q *queue.Queue, cfg SchedulerConfig) *Scheduler {
	if cfg.BacklogMax <= 0 {
		cfg.BacklogMax = 1000
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = time.Minute
	}
	s := &Scheduler{
		services: services,
		queue:    q,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(tickSpec, s.tick); err != nil {
		// tickSpec is a constant; this cannot happen outside of edits.
		log.Printf("[scheduler] invalid tick spec %q: %v", tickSpec, err)
	}
	return s
}

// Start launches the cron runner.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[scheduler] ticking every second")
}

// Stop halts the cron runner and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	now := s.now().UTC()

	s.mu.Lock()
	if !s.lastTick.IsZero() && now.Sub(s.lastTick) < minTickGap {
		s.mu.Unlock()
		metrics.IncSchedulerTick("skipped")
		return
	}
	s.lastTick = now
	s.mu.Unlock()

	s.runTick(now)
}

// runTick enqueues all services due at t. Split from tick for tests.
func (s *Scheduler) runTick(t time.Time) {
	deadline := s.now().Add(s.cfg.TickTimeout)

	depth, err := s.queue.Depth(queue.KindProbe)
	if err != nil {
		log.Printf("[scheduler] queue depth: %v", err)
		return
	}
	metrics.SetQueueDepth(queue.KindProbe, depth)
	if depth > s.cfg.BacklogMax {
		log.Printf("[scheduler] backlog %d exceeds %d, shedding tick", depth, s.cfg.BacklogMax)
		metrics.IncSchedulerTick("shed")
		return
	}

	services, err := s.services.ListActive()
	if err != nil {
		log.Printf("[scheduler] list active services: %v", err)
		return
	}

	second := secondsSinceMidnight(t)
	enqueued := 0
	for _, svc := range services {
		if svc.Interval == 0 || second%int(svc.Interval) != 0 {
			continue
		}
		if s.now().After(deadline) {
			log.Printf("[scheduler] tick budget exhausted after %d service(s)", enqueued)
			break
		}
		if err := s.enqueue(svc, t); err != nil {
			log.Printf("[scheduler] enqueue service %d: %v", svc.ID, err)
		} else {
			enqueued++
		}
	}
	metrics.IncSchedulerTick("run")
}

// enqueue pushes a config snapshot for one service. A task already pending
// or in flight for the same service is left alone.
func (s *Scheduler) enqueue(svc model.Service, t time.Time) error {
	task := model.ProbeTask{Service: svc, EnqueuedAt: t}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	key := queue.DedupKey(queue.KindProbe, strconv.FormatUint(uint64(svc.ID), 10))
	if _, err := s.queue.Push(queue.KindProbe, payload, key); err != nil {
		if errors.Is(err, queue.ErrDuplicate) {
			return nil
		}
		return err
	}
	return nil
}

func secondsSinceMidnight(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

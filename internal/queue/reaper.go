package queue

import (
	"log"

	"github.com/stamon-dev/stamon/internal/scanloop"
)

// Reaper periodically reclaims tasks whose worker lease expired.
type Reaper struct {
	queue  *Queue
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReaper creates a Reaper for q. Call Start to begin reaping.
func NewReaper(q *Queue) *Reaper {
	return &Reaper{
		queue:  q,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the reap loop in a goroutine.
func (r *Reaper) Start() {
	go func() {
		defer close(r.doneCh)
		scanloop.Run(r.stopCh, scanloop.DefaultMinInterval, scanloop.DefaultJitterRange, func() {
			n, err := r.queue.ReapExpired()
			if err != nil {
				log.Printf("[queue] lease reap failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[queue] reclaimed %d expired lease(s)", n)
			}
		})
	}()
}

// Stop halts the loop and waits for it to exit.
func (r *Reaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

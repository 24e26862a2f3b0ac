package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Runner executes fire-and-forget work: side effects whose failure must
// never surface to the request that spawned them. Each task gets its own
// context, a panic guard and an error log sink; Drain waits for in-flight
// tasks during shutdown.
type Runner struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a runner whose tasks are cancelled after timeout.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{timeout: timeout}
}

// Spawn runs fn detached from the caller. The completion is consumed only by
// the log: that detachment is the point, not an oversight.
func (r *Runner) Spawn(name string, fn func(ctx context.Context) error) {
	taskID := uuid.NewString()
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Errorf("[Tasks] %s (%s) panicked: %v", name, taskID, rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Errorf("[Tasks] %s (%s) failed: %v", name, taskID, err)
			return
		}
		log.Debugf("[Tasks] %s (%s) completed", name, taskID)
	}()
}

// Drain blocks until every spawned task has finished.
func (r *Runner) Drain() {
	r.wg.Wait()
}

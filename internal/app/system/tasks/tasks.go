// internal/app/system/tasks/tasks.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named piece of periodic maintenance work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner executes registered jobs on their intervals until stopped.
// Jobs are registered before Start and each gets its own goroutine.
type Runner struct {
	log    *zap.Logger
	jobs   []Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{log: log}
}

func (r *Runner) Add(j Job) {
	r.jobs = append(r.jobs, j)
}

// Start launches all registered jobs. A job error is logged, not fatal;
// the job keeps its schedule.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, j := range r.jobs {
		r.wg.Add(1)
		go func(j Job) {
			defer r.wg.Done()

			ticker := time.NewTicker(j.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := j.Run(ctx); err != nil {
						r.log.Warn("background job failed",
							zap.String("job", j.Name),
							zap.Error(err))
					}
				}
			}
		}(j)
	}

	r.log.Info("background jobs started", zap.Int("count", len(r.jobs)))
}

// Stop cancels all jobs and waits for them to finish.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

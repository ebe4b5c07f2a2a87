// Package workers runs CPU-heavy tasks on a bounded pool so the event
// loop serving sockets never executes them inline.
package workers

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently running tasks. Submission never
// blocks the caller; tasks queue on the semaphore.
type Pool struct {
	sem    *semaphore.Weighted
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New creates a pool running at most size tasks at once.
func New(size int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logger,
	}
}

// Submit schedules task and returns immediately. The task receives ctx and
// is skipped entirely when ctx is cancelled before a slot frees up. Panics
// are contained to the task.
func (p *Pool) Submit(ctx context.Context, name string, task func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.logger.Debug("Task cancelled before start",
				zap.String("task", name),
				zap.Error(err),
			)
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Task panicked",
					zap.String("task", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()
		task(ctx)
	}()
}

// Wait blocks until every submitted task has finished or been skipped.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Package scheduler provides the single-process fire-and-forget task runner
// used to move synthesis work off the request path.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tasks is the task-submission interface. Callers hand over a named function
// and return immediately; the implementation decides when and where it runs.
type Tasks interface {
	Submit(name string, fn func(context.Context))
}

// Background runs each submitted task on its own goroutine. There is no
// queue, no retry and no cancellation of in-flight tasks; once submitted a
// task always runs to completion (success or failure) unless the process
// exits.
type Background struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewBackground creates a background runner. Tasks receive a context bounded
// by timeout (0 means no per-task deadline).
func NewBackground(timeout time.Duration) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{ctx: ctx, cancel: cancel, timeout: timeout}
}

// Submit schedules fn to run on its own goroutine and returns immediately.
// Panics are recovered and logged so a misbehaving task cannot take the
// process down.
func (b *Background) Submit(name string, fn func(context.Context)) {
	id := uuid.NewString()[:8]
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("task %s [%s] panicked: %v", name, id, r)
			}
		}()

		ctx := b.ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}

		start := time.Now()
		log.Printf("task %s [%s] started", name, id)
		fn(ctx)
		log.Printf("task %s [%s] finished in %v", name, id, time.Since(start))
	}()
}

// Stop waits for all in-flight tasks to finish. The shared context is
// cancelled first so tasks observing it can wind down early.
func (b *Background) Stop() {
	b.cancel()
	b.wg.Wait()
}

// Synchronous runs submitted tasks inline. Tests use it to await background
// work deterministically instead of relying on timing.
type Synchronous struct{}

// Submit runs fn immediately on the calling goroutine.
func (Synchronous) Submit(name string, fn func(context.Context)) {
	fn(context.Background())
}

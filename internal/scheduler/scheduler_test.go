package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackgroundRunsTasks(t *testing.T) {
	b := NewBackground(0)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		b.Submit("work", func(ctx context.Context) {
			ran.Add(1)
		})
	}
	b.Stop()

	if got := ran.Load(); got != 5 {
		t.Errorf("expected 5 tasks to run, got %d", got)
	}
}

func TestBackgroundRecoversPanics(t *testing.T) {
	b := NewBackground(0)

	var after atomic.Bool
	b.Submit("explode", func(ctx context.Context) {
		panic("boom")
	})
	b.Submit("survive", func(ctx context.Context) {
		after.Store(true)
	})
	b.Stop()

	if !after.Load() {
		t.Errorf("a panicking task must not prevent later tasks from running")
	}
}

func TestBackgroundTimeout(t *testing.T) {
	b := NewBackground(10 * time.Millisecond)

	done := make(chan struct{})
	b.Submit("slow", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task context was not cancelled by the timeout")
	}
	b.Stop()
}

func TestSynchronousRunsInline(t *testing.T) {
	ran := false
	Synchronous{}.Submit("inline", func(ctx context.Context) {
		ran = true
	})
	if !ran {
		t.Errorf("synchronous submit must run before returning")
	}
}

package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawnAndDrain(t *testing.T) {
	r := NewRunner(time.Second)

	var ran int32
	for i := 0; i < 5; i++ {
		r.Spawn("work", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}
	r.Drain()

	if n := atomic.LoadInt32(&ran); n != 5 {
		t.Fatalf("ran = %d, want 5", n)
	}
}

func TestSpawnRecoversPanics(t *testing.T) {
	r := NewRunner(time.Second)

	r.Spawn("explode", func(ctx context.Context) error {
		panic("boom")
	})
	r.Spawn("after", func(ctx context.Context) error {
		return errors.New("logged, not propagated")
	})
	// Drain returning at all proves the panic did not escape the task.
	r.Drain()
}

func TestSpawnAppliesTimeout(t *testing.T) {
	r := NewRunner(10 * time.Millisecond)

	done := make(chan error, 1)
	r.Spawn("slow", func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	r.Drain()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("ctx err = %v, want deadline exceeded", err)
		}
	default:
		t.Fatalf("task never observed its deadline")
	}
}

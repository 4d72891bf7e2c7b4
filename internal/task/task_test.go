package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoRunsDetachedAndSwallowsErrors(t *testing.T) {
	g := NewGroup(context.Background())
	var ran atomic.Int32

	g.Go("ok", time.Second, func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	g.Go("fails", time.Second, func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("unreachable")
	})
	g.Go("panics", time.Second, func(ctx context.Context) error {
		ran.Add(1)
		panic("boom")
	})

	g.Wait()
	assert.Equal(t, int32(3), ran.Load())
}

func TestGoAppliesTimeout(t *testing.T) {
	g := NewGroup(context.Background())
	var gotErr atomic.Value

	g.Go("slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		gotErr.Store(ctx.Err())
		return ctx.Err()
	})
	g.Wait()

	assert.ErrorIs(t, gotErr.Load().(error), context.DeadlineExceeded)
}

func TestGoStopsWithBaseContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	g := NewGroup(base)

	done := make(chan struct{})
	g.Go("waits", time.Minute, func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return nil
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not observe base cancellation")
	}
	g.Wait()
}

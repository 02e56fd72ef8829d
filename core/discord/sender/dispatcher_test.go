package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type ctxKey struct{}

func TestDispatcherDrainsOnClose(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 16, Workers: 2})
	var done atomic.Int32
	for i := 0; i < 10; i++ {
		if err := d.Enqueue(context.Background(), "test", func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	d.Close()
	if got := done.Load(); got != 10 {
		t.Fatalf("completed = %d, want 10", got)
	}
}

func TestDispatcherJobOutlivesRequestContext(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "rid-1"))

	var (
		gotErr   error
		gotValue any
	)
	_ = d.Enqueue(ctx, "test", func(jobCtx context.Context) error {
		gotErr = jobCtx.Err()
		gotValue = jobCtx.Value(ctxKey{})
		return nil
	})
	cancel()
	d.Close()

	if gotErr != nil {
		t.Fatalf("job context err = %v, want nil", gotErr)
	}
	if gotValue != "rid-1" {
		t.Fatalf("job context lost values: %v", gotValue)
	}
}

func TestDispatcherCountsFailuresAndPanics(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	_ = d.Enqueue(context.Background(), "fail", func(context.Context) error { return errors.New("boom") })
	_ = d.Enqueue(context.Background(), "panic", func(context.Context) error { panic("kaboom") })
	d.Close()
	if got := d.ErrorCount(); got != 2 {
		t.Fatalf("error count = %d, want 2", got)
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	_ = d.Enqueue(context.Background(), "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	if err := d.Enqueue(context.Background(), "fill", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("enqueue into free slot: %v", err)
	}
	if err := d.Enqueue(context.Background(), "overflow", func(context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	var inline bool
	d.Go(context.Background(), "inline", func(context.Context) error {
		inline = true
		return nil
	})
	if !inline {
		t.Fatal("Go should run the job inline when the queue is full")
	}
	close(release)
	d.Close()
}

func TestDispatcherClosedRunsInline(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	if err := d.Enqueue(context.Background(), "late", func(context.Context) error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	ran := false
	d.Go(context.Background(), "late", func(context.Context) error {
		ran = true
		return nil
	})
	if !ran {
		t.Fatal("Go after Close should run inline")
	}
}

func TestDispatcherConcurrentEnqueueAndClose(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 4, Workers: 2})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Go(context.Background(), "race", func(context.Context) error { return nil })
			}
		}()
	}
	time.Sleep(time.Millisecond)
	d.Close()
	wg.Wait()
}

package atomik

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSetAsync(t *testing.T) {
	g := New()
	defer g.Close()

	temp := NewSource(g, 20.0)
	double, _ := NewDerived(g, func(get Getter) (float64, error) {
		return temp.From(get) * 2, nil
	}, temp)

	fut := temp.SetAsync(25.0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fut.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if v, _ := temp.Get(); v != 25.0 {
		t.Errorf("expected 25.0, got %v", v)
	}
	if v, _ := double.Get(); v != 50.0 {
		t.Errorf("derived expected 50.0, got %v", v)
	}
}

func TestSetAsyncValidation(t *testing.T) {
	g := New()
	defer g.Close()

	temp := NewSource(g, 20.0)
	temp.Cleanup()

	fut := temp.SetAsync(1.0)
	if err := fut.Wait(context.Background()); !errors.Is(err, ErrInert) {
		t.Errorf("want ErrInert, got %v", err)
	}
}

func TestSetAsyncSameNodeOrdering(t *testing.T) {
	g := New(WithMaxWorkers(4))
	defer g.Close()

	n := NewSource(g, 0)
	var rec recorder[int]
	n.Subscribe(rec.record)

	var futs []*Future
	for i := 1; i <= 50; i++ {
		futs = append(futs, n.SetAsync(i))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range futs {
		if err := f.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	// Deferred mutations to the same node execute in submission order.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, v := range rec.values {
		if v != i+1 {
			t.Fatalf("out-of-order notification at %d: %v", i, rec.values[:i+1])
		}
	}
}

func TestFutureCancel(t *testing.T) {
	g := New(WithMaxWorkers(1))
	defer g.Close()

	blocker := NewSource(g, 0)
	release := make(chan struct{})
	entered := make(chan struct{})
	blocker.Subscribe(func(int) {
		close(entered)
		<-release
	})

	// Occupy the single worker so the next job stays queued.
	busy := blocker.SetAsync(1)
	<-entered

	victim := NewSource(g, 0)
	fut := victim.SetAsync(99)
	if !fut.Cancel() {
		t.Fatalf("Cancel before execution should succeed")
	}
	if fut.Cancel() {
		t.Errorf("second Cancel should report false")
	}
	if err := fut.Wait(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("cancelled future: want ErrCancelled, got %v", err)
	}

	close(release)
	if err := busy.Wait(context.Background()); err != nil {
		t.Fatalf("busy job failed: %v", err)
	}

	// The cancelled mutation never ran.
	if v, _ := victim.Get(); v != 0 {
		t.Errorf("cancelled mutation was applied: %d", v)
	}
}

func TestFutureCancelAfterCompletion(t *testing.T) {
	g := New()
	defer g.Close()

	n := NewSource(g, 0)
	fut := n.SetAsync(1)
	if err := fut.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if fut.Cancel() {
		t.Errorf("Cancel after completion should report false")
	}
	if fut.Err() != nil {
		t.Errorf("completed future has error %v", fut.Err())
	}
}

func TestSubmitAfterClose(t *testing.T) {
	g := New()
	n := NewSource(g, 0)
	g.Close()

	fut := n.SetAsync(1)
	if err := fut.Wait(context.Background()); !errors.Is(err, ErrQueueClosed) && !errors.Is(err, ErrInert) {
		t.Errorf("want ErrQueueClosed or ErrInert, got %v", err)
	}
}

func TestWaitContextCancellation(t *testing.T) {
	g := New(WithMaxWorkers(1))
	defer g.Close()

	blocker := NewSource(g, 0)
	release := make(chan struct{})
	entered := make(chan struct{})
	blocker.Subscribe(func(int) {
		close(entered)
		<-release
	})
	busy := blocker.SetAsync(1)
	<-entered
	defer func() {
		close(release)
		busy.Wait(context.Background())
	}()

	queued := NewSource(g, 0).SetAsync(5)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := queued.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want DeadlineExceeded, got %v", err)
	}
}

package atomik

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSubscriberPanicIsIsolated(t *testing.T) {
	g := New()
	defer g.Close()

	temp := NewSource(g, 0.0)

	var handled []error
	temp.SetErrorHandler(func(err error) { handled = append(handled, err) })

	var order []string
	temp.Subscribe(func(float64) {
		order = append(order, "first")
		panic("observer blew up")
	})
	temp.Subscribe(func(float64) {
		order = append(order, "second")
	})

	if err := temp.Set(1.0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("dispatch order wrong or interrupted: %v", order)
	}
	var oe *ObserverError
	if len(handled) != 1 || !errors.As(handled[0], &oe) {
		t.Fatalf("expected one ObserverError, got %v", handled)
	}
	if oe.NodeID != temp.ID() {
		t.Errorf("ObserverError node %d, want %d", oe.NodeID, temp.ID())
	}

	// The committed value is never rolled back.
	if v, _ := temp.Get(); v != 1.0 {
		t.Errorf("value rolled back after observer panic: %v", v)
	}
}

func TestSubscriberPanicDoesNotBlockOtherNodes(t *testing.T) {
	g := New(WithDefaultErrorHandler(func(error) {}))
	defer g.Close()

	a := NewSource(g, 0)
	b, _ := NewDerived(g, func(get Getter) (int, error) {
		return a.From(get) + 1, nil
	}, a)

	a.Subscribe(func(int) { panic("boom") })
	var rec recorder[int]
	b.Subscribe(rec.record)

	a.Set(5)
	if rec.count() != 1 || rec.last() != 6 {
		t.Errorf("panic on one node suppressed dispatch to another: %v", rec.values)
	}
}

func TestErrorHandlerResolution(t *testing.T) {
	g := New()
	defer g.Close()

	var viaDefault, viaNode int
	g.SetDefaultErrorHandler(func(error) { viaDefault++ })

	a := NewSource(g, 0)
	a.Subscribe(func(int) { panic("x") })

	a.Set(1)
	if viaDefault != 1 {
		t.Fatalf("default handler calls = %d, want 1", viaDefault)
	}

	// A per-node handler overrides the graph default.
	a.SetErrorHandler(func(error) { viaNode++ })
	a.Set(2)
	if viaNode != 1 || viaDefault != 1 {
		t.Errorf("handler resolution wrong: node=%d default=%d", viaNode, viaDefault)
	}

	// Removing the override falls back to the default.
	a.SetErrorHandler(nil)
	a.Set(3)
	if viaDefault != 2 {
		t.Errorf("default handler not restored: %d", viaDefault)
	}
}

func TestFailingErrorHandlerIsContained(t *testing.T) {
	g := New()
	defer g.Close()

	a := NewSource(g, 0)
	a.SetErrorHandler(func(error) { panic("handler panic") })
	a.Subscribe(func(int) { panic("observer panic") })

	var rec recorder[int]
	a.Subscribe(rec.record)

	a.Set(1)
	if rec.count() != 1 {
		t.Errorf("handler panic suppressed remaining dispatch: %d", rec.count())
	}
}

func TestObserverTap(t *testing.T) {
	var events []Event
	g := New(WithObserver(func(e Event) { events = append(events, e) }))
	defer g.Close()

	a := NewSource(g, 1)
	b, _ := NewDerived(g, func(get Getter) (int, error) {
		return a.From(get) * 2, nil
	}, a)

	a.Set(3)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].NodeID != a.ID() || events[0].Kind != "source" || events[0].Value != 3 {
		t.Errorf("unexpected source event: %+v", events[0])
	}
	if events[1].NodeID != b.ID() || events[1].Kind != "derived" || events[1].Value != 6 {
		t.Errorf("unexpected derived event: %+v", events[1])
	}
	if events[0].Wave != events[1].Wave {
		t.Errorf("events of one wave carry different wave ids: %+v", events)
	}
}

func TestObserverDuringConcurrentWaves(t *testing.T) {
	var (
		events   atomic.Int64
		zeroWave atomic.Bool
	)
	g := New(WithObserver(func(ev Event) {
		if ev.Wave == 0 {
			zeroWave.Store(true)
		}
		events.Add(1)
	}))
	defer g.Close()

	src := NewSource(g, 0)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				_ = src.Set(base + i)
			}
		}(w * 10_000)
	}
	wg.Wait()

	if events.Load() == 0 {
		t.Fatal("observer saw no events")
	}
	if zeroWave.Load() {
		t.Error("observer saw an event with no wave id")
	}
}

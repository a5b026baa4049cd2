package atomik

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failOps bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOps {
		return nil, false, fmt.Errorf("store offline")
	}
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *memStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOps {
		return fmt.Errorf("store offline")
	}
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func TestPersistentSourceSeedsFromStore(t *testing.T) {
	g := New()
	defer g.Close()
	store := newMemStore()
	ctx := context.Background()

	first := NewPersistentSource(ctx, g, "temperature", 20.0, store)
	if v, _ := first.Get(); v != 20.0 {
		t.Errorf("expected initial 20.0, got %v", v)
	}
	first.Set(25.5)

	// A second source with the same key picks up the saved value.
	second := NewPersistentSource(ctx, g, "temperature", 20.0, store)
	if v, _ := second.Get(); v != 25.5 {
		t.Errorf("expected stored 25.5, got %v", v)
	}
}

func TestPersistentSourceSavesInitialValue(t *testing.T) {
	g := New()
	defer g.Close()
	store := newMemStore()

	NewPersistentSource(context.Background(), g, "humidity", 50.0, store)
	if _, ok := store.data["humidity"]; !ok {
		t.Errorf("initial value was not saved for a fresh key")
	}
}

func TestPersistentSourceSavesAfterEachCommit(t *testing.T) {
	g := New()
	defer g.Close()
	store := newMemStore()

	s := NewPersistentSource(context.Background(), g, "pressure", 1000.0, store)
	s.Set(1013.25)
	if string(store.data["pressure"]) != "1013.25" {
		t.Errorf("store holds %q after commit", store.data["pressure"])
	}
}

func TestPersistFailureDoesNotBlockCommit(t *testing.T) {
	var handled []error
	g := New(WithDefaultErrorHandler(func(err error) { handled = append(handled, err) }))
	defer g.Close()

	store := newMemStore()
	s := NewPersistentSource(context.Background(), g, "level", 1.0, store)

	store.failOps = true
	if err := s.Set(2.0); err != nil {
		t.Fatalf("Set failed despite best-effort persistence: %v", err)
	}
	if v, _ := s.Get(); v != 2.0 {
		t.Errorf("in-memory commit blocked by adapter failure: %v", v)
	}

	var pe *PersistError
	if len(handled) == 0 || !errors.As(handled[len(handled)-1], &pe) {
		t.Fatalf("expected PersistError through handler, got %v", handled)
	}
	if pe.Key != "level" || pe.Op != "save" {
		t.Errorf("unexpected PersistError: %+v", pe)
	}
}

func TestPersistentSourceLoadFailureFallsBack(t *testing.T) {
	var handled []error
	g := New(WithDefaultErrorHandler(func(err error) { handled = append(handled, err) }))
	defer g.Close()

	store := newMemStore()
	store.failOps = true
	s := NewPersistentSource(context.Background(), g, "temp", 21.0, store)

	if v, _ := s.Get(); v != 21.0 {
		t.Errorf("load failure should fall back to the supplied default, got %v", v)
	}
	if len(handled) == 0 {
		t.Errorf("load failure not reported through handler")
	}
}

// deadlineStore fails Save once the context it is given has been cancelled.
type deadlineStore struct {
	*memStore
}

func (s *deadlineStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.Save(ctx, key, data)
}

func TestPersistentSourceInitialSaveHonorsContext(t *testing.T) {
	var handled []error
	g := New(WithDefaultErrorHandler(func(err error) { handled = append(handled, err) }))
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &deadlineStore{memStore: newMemStore()}
	s := NewPersistentSource(ctx, g, "temp", 21.0, store)

	// The first-run save of the initial value runs under the caller's
	// context, so the cancelled context must reach the store.
	store.mu.Lock()
	saved := len(store.data)
	store.mu.Unlock()
	if saved != 0 {
		t.Errorf("initial save ignored the cancelled context")
	}
	if len(handled) == 0 {
		t.Errorf("initial save failure not reported through handler")
	}
	if v, _ := s.Get(); v != 21.0 {
		t.Errorf("node unusable after failed initial save: %v", v)
	}
}

package atomik

import (
	"context"
	"encoding/json"
)

// Store is the persistence adapter consumed by persistent sources.
// Implementations live outside the core (see pkg/store); the engine only
// needs load-once-at-construction and save-after-commit.
type Store interface {
	// Load returns the stored bytes for key, with found=false when the key
	// has never been saved.
	Load(ctx context.Context, key string) (data []byte, found bool, err error)

	// Save stores the bytes for key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error
}

// NewPersistentSource creates a source whose value survives restarts.
//
// At construction the store is consulted once: a stored value seeds the
// node, otherwise initial is used and saved. After every committed mutation
// the new value is saved as JSON. Adapter failures are surfaced through the
// node's error-handler chain as PersistError and never block the in-memory
// commit — persistence is best effort after each commit, not a durability
// guarantee.
func NewPersistentSource[T any](ctx context.Context, g *Graph, key string, initial T, store Store) *Source[T] {
	value := initial
	data, found, err := store.Load(ctx, key)
	switch {
	case err != nil:
		g.handleError(nil, &PersistError{Key: key, Op: "load", Err: err})
	case found:
		var stored T
		if err := json.Unmarshal(data, &stored); err != nil {
			g.handleError(nil, &PersistError{Key: key, Op: "load", Err: err})
		} else {
			value = stored
		}
	default:
		// First run: record the initial value so the key exists.
		saveValue(ctx, g, nil, store, key, initial)
	}

	s := NewSource(g, value)
	s.n.persist = func(v any) {
		saveValue(context.Background(), g, s.n, store, key, v)
	}
	return s
}

// saveValue writes one value to the store, routing failures to the
// error-handler chain.
func saveValue(ctx context.Context, g *Graph, n *node, store Store, key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = store.Save(ctx, key, data)
	}
	if err != nil {
		g.handleError(n, &PersistError{Key: key, Op: "save", Err: err})
	}
}

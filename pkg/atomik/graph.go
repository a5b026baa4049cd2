package atomik

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrorHandler receives errors that must not abort a propagation wave:
// ComputeError, ObserverError, and PersistError. The handler resolution
// order is per-node handler, then the graph default, then a slog warning.
//
// Handlers run outside the graph mutation lock and may safely read node
// values, but must not block for long; they are invoked inline on the
// mutating goroutine (or worker goroutine for the deferred path).
type ErrorHandler func(err error)

// Event describes one committed node change, delivered to the graph
// observer after the subscribers of the owning wave have been notified.
type Event struct {
	// NodeID identifies the changed node.
	NodeID uint64

	// Kind is "source" or "derived".
	Kind string

	// Wave is the id of the propagation wave that committed the change.
	Wave uint64

	// Revision is the node's revision after the change.
	Revision uint64

	// Value is the committed value.
	Value any
}

// Graph owns a reactive node arena: the mutation lock that linearizes
// propagation waves, the bounded worker pool behind the deferred mutation
// path, and the error-handler chain.
//
// All methods are safe for concurrent use. Construct with New and release
// pool resources with Close.
type Graph struct {
	// mu is the graph-wide mutation lock. Every structural mutation
	// (value writes, revision bumps, edge changes) happens under it;
	// no two propagation waves interleave.
	mu sync.Mutex

	// nodes is the arena, keyed by node id. A node's memory is reclaimed
	// only when Cleanup removes it from the arena.
	nodes   map[uint64]*node
	nodesMu sync.RWMutex

	// waveCounter numbers propagation waves. Guarded by mu.
	waveCounter uint64

	pool   *workerPool
	logger *slog.Logger

	defaultHandler atomic.Pointer[ErrorHandler]

	// observer, if set, receives every committed change event.
	observer func(Event)

	// batches holds per-goroutine batch state, keyed by goroutine id.
	batches sync.Map

	metrics *graphMetrics
	tracer  trace.Tracer

	autoCleanup bool
	debug       bool
	closed      atomic.Bool
}

// graphConfig collects the options applied by New.
type graphConfig struct {
	maxWorkers   int
	queueDepth   int
	workerPrefix string
	autoCleanup  bool
	debug        bool
	logger       *slog.Logger
	handler      ErrorHandler
	observer     func(Event)
	registry     prometheus.Registerer
	tracerName   string
}

// GraphOption configures a Graph at construction.
type GraphOption func(*graphConfig)

// WithMaxWorkers bounds the deferred-mutation worker pool.
// Valid range is 1..32; the default is 4.
func WithMaxWorkers(n int) GraphOption {
	return func(c *graphConfig) { c.maxWorkers = n }
}

// WithQueueDepth sets the per-worker queue capacity for deferred mutations.
// A full queue blocks the submitter; deferred mutations are never dropped.
func WithQueueDepth(n int) GraphOption {
	return func(c *graphConfig) { c.queueDepth = n }
}

// WithWorkerNamePrefix names the pool's worker goroutines for debugging.
func WithWorkerNamePrefix(prefix string) GraphOption {
	return func(c *graphConfig) { c.workerPrefix = prefix }
}

// WithAutoCleanup controls whether Close also detaches every node.
// Enabled by default; long-running processes that close one graph and keep
// handles into another may disable it.
func WithAutoCleanup(enabled bool) GraphOption {
	return func(c *graphConfig) { c.autoCleanup = enabled }
}

// WithDebug enables debug-level logging of waves and dispatches.
func WithDebug(enabled bool) GraphOption {
	return func(c *graphConfig) { c.debug = enabled }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) GraphOption {
	return func(c *graphConfig) { c.logger = l }
}

// WithDefaultErrorHandler sets the graph-wide error handler used when a
// node has no handler of its own.
func WithDefaultErrorHandler(h ErrorHandler) GraphOption {
	return func(c *graphConfig) { c.handler = h }
}

// WithObserver taps every committed change event. The observer runs after
// subscriber dispatch, outside the mutation lock.
func WithObserver(fn func(Event)) GraphOption {
	return func(c *graphConfig) { c.observer = fn }
}

// WithMetrics registers Prometheus metrics on the given registerer.
func WithMetrics(reg prometheus.Registerer) GraphOption {
	return func(c *graphConfig) { c.registry = reg }
}

// WithTracing enables an OpenTelemetry span per propagation wave, using the
// named tracer from the global provider.
func WithTracing(tracerName string) GraphOption {
	return func(c *graphConfig) { c.tracerName = tracerName }
}

// New constructs a Graph. The zero configuration is a 4-worker pool, no
// metrics, no tracing, auto-cleanup on Close.
func New(opts ...GraphOption) *Graph {
	cfg := graphConfig{
		maxWorkers:   4,
		queueDepth:   64,
		workerPrefix: "atomik-worker",
		autoCleanup:  true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxWorkers < 1 {
		cfg.maxWorkers = 1
	}
	if cfg.maxWorkers > 32 {
		cfg.maxWorkers = 32
	}
	if cfg.queueDepth < 1 {
		cfg.queueDepth = 1
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	g := &Graph{
		nodes:       make(map[uint64]*node),
		logger:      cfg.logger,
		observer:    cfg.observer,
		autoCleanup: cfg.autoCleanup,
		debug:       cfg.debug,
	}
	if cfg.handler != nil {
		h := cfg.handler
		g.defaultHandler.Store(&h)
	}
	if cfg.registry != nil {
		g.metrics = newGraphMetrics(cfg.registry)
	}
	if cfg.tracerName != "" {
		g.tracer = otel.Tracer(cfg.tracerName)
	}
	g.pool = newWorkerPool(g, cfg.maxWorkers, cfg.queueDepth, cfg.workerPrefix)
	return g
}

// Close shuts down the worker pool, waiting for in-flight deferred
// mutations to finish. With auto-cleanup enabled (the default) every node
// is then detached from the graph. Close is idempotent.
func (g *Graph) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	g.pool.shutdown()
	if g.autoCleanup {
		for _, n := range g.snapshotNodes() {
			g.cleanupNode(n)
		}
	}
	return nil
}

// SetDefaultErrorHandler replaces the graph-wide error handler.
// A nil handler restores the logging fallback.
func (g *Graph) SetDefaultErrorHandler(h ErrorHandler) {
	if h == nil {
		g.defaultHandler.Store(nil)
		return
	}
	g.defaultHandler.Store(&h)
}

// Len returns the number of live nodes in the arena.
func (g *Graph) Len() int {
	g.nodesMu.RLock()
	defer g.nodesMu.RUnlock()
	return len(g.nodes)
}

// addNode inserts a node into the arena.
func (g *Graph) addNode(n *node) {
	g.nodesMu.Lock()
	g.nodes[n.id] = n
	g.nodesMu.Unlock()
}

// node looks up an arena entry by id.
func (g *Graph) node(id uint64) (*node, bool) {
	g.nodesMu.RLock()
	n, ok := g.nodes[id]
	g.nodesMu.RUnlock()
	return n, ok
}

// removeNode deletes an arena entry. The node's memory is reclaimed here,
// never by reference counting.
func (g *Graph) removeNode(id uint64) {
	g.nodesMu.Lock()
	delete(g.nodes, id)
	g.nodesMu.Unlock()
}

// snapshotNodes copies the arena entries, ordered by id.
func (g *Graph) snapshotNodes() []*node {
	g.nodesMu.RLock()
	out := make([]*node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	g.nodesMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// handleError routes a wave error through the handler chain:
// per-node handler, graph default, slog warning.
func (g *Graph) handleError(n *node, err error) {
	if n != nil {
		if h := n.handler(); h != nil {
			g.safeHandle(h, err)
			return
		}
	}
	if p := g.defaultHandler.Load(); p != nil {
		g.safeHandle(*p, err)
		return
	}
	g.logger.Warn("atomik: unhandled graph error", "err", err)
}

// safeHandle invokes a handler, containing handler panics so a failing
// handler cannot abort the wave either.
func (g *Graph) safeHandle(h ErrorHandler, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("atomik: error handler panicked", "err", err, "panic", r)
		}
	}()
	h(err)
}

// NodeInfo is a point-in-time description of one node, as exposed to
// debugging surfaces. Values are the committed post-wave values.
type NodeInfo struct {
	ID          uint64   `json:"id"`
	Kind        string   `json:"kind"`
	Revision    uint64   `json:"revision"`
	Value       any      `json:"value"`
	Deps        []uint64 `json:"deps,omitempty"`
	Dependents  []uint64 `json:"dependents,omitempty"`
	Subscribers int      `json:"subscribers"`
	LastWave    uint64   `json:"last_wave"`
}

// Snapshot returns a description of every live node, ordered by id.
// It briefly takes the mutation lock so edge sets are observed between
// waves, never mid-propagation.
func (g *Graph) Snapshot() []NodeInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	nodes := g.snapshotNodes()
	out := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		n.subMu.RLock()
		subs := len(n.subs)
		n.subMu.RUnlock()
		out = append(out, NodeInfo{
			ID:          n.id,
			Kind:        n.kind.String(),
			Revision:    n.rev.Load(),
			Value:       n.value(),
			Deps:        append([]uint64(nil), n.deps...),
			Dependents:  append([]uint64(nil), n.dependents...),
			Subscribers: subs,
			LastWave:    n.lastWave.Load(),
		})
	}
	return out
}

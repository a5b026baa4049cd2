package atomik

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Getter is the dependency accessor handed to a derived node's compute
// function. It only resolves nodes the derived node declared at
// construction; reading anything else fails the computation. Values
// returned are the settled values of the current wave (dependencies are
// always recomputed before their dependents).
type Getter struct {
	g       *Graph
	allowed map[uint64]struct{}
}

// value resolves a declared dependency's settled value.
// Panics with errUndeclaredDep on violation; the recompute engine recovers
// the panic into a ComputeError, so a bad read never crashes the process.
func (get Getter) value(id uint64) any {
	if _, ok := get.allowed[id]; !ok {
		panic(errUndeclaredDep{nodeID: id, reason: "not declared as a dependency"})
	}
	n, ok := get.g.node(id)
	if !ok || n.inert.Load() {
		panic(errUndeclaredDep{nodeID: id, reason: "no longer available"})
	}
	return n.value()
}

// waveErr pairs a wave error with the node it should be reported against.
type waveErr struct {
	n   *node
	err error
}

// waveResult is what one propagation wave committed.
type waveResult struct {
	id uint64

	// changed holds every node whose value changed, in dependency order
	// with the seed source first.
	changed []*node

	errs []waveErr
}

// propagate recomputes every derived node reachable from src, at most once,
// in dependency order. src's new value must already be committed. Caller
// must hold the graph mutation lock.
//
// A derived node recomputes only if at least one of its dependencies
// changed this wave; a node that settles on a value equal to its cached one
// does not count as changed, which halts redundant fan-out. A failed
// computation keeps the prior cached value and likewise does not propagate.
func (g *Graph) propagate(src *node) waveResult {
	g.waveCounter++
	res := waveResult{id: g.waveCounter, changed: []*node{src}}
	src.lastWave.Store(res.id)

	start := time.Now()
	var span spanCloser
	if g.tracer != nil {
		span = g.startWaveSpan(res.id, src.id)
	}

	// Reachable derived set, following dependents edges.
	reachable := map[uint64]*node{}
	var frontier []*node
	frontier = append(frontier, src)
	for len(frontier) > 0 {
		n := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, depID := range n.dependents {
			d, ok := g.nodes[depID]
			if !ok || d.inert.Load() {
				continue
			}
			if _, seen := reachable[d.id]; !seen {
				reachable[d.id] = d
				frontier = append(frontier, d)
			}
		}
	}

	// Kahn's ordering restricted to the reachable subgraph guarantees each
	// node settles only after all of its in-wave dependencies have.
	indegree := make(map[uint64]int, len(reachable))
	for _, d := range reachable {
		for _, depID := range d.deps {
			if _, in := reachable[depID]; in {
				indegree[d.id]++
			}
		}
	}
	var queue []*node
	for _, depID := range src.dependents {
		if d, in := reachable[depID]; in && indegree[d.id] == 0 {
			queue = append(queue, d)
		}
	}
	for _, d := range reachable {
		if indegree[d.id] == 0 && !inQueue(queue, d) {
			queue = append(queue, d)
		}
	}

	changedSet := map[uint64]struct{}{src.id: {}}
	visited := 0
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		visited++
		d.lastWave.Store(res.id)

		dirty := false
		for _, depID := range d.deps {
			if _, ok := changedSet[depID]; ok {
				dirty = true
				break
			}
		}
		if dirty {
			if g.metrics != nil {
				g.metrics.recomputes.Inc()
			}
			v, err := evalCompute(d, Getter{g: g, allowed: d.depSet})
			switch {
			case err != nil && d.hasFallback:
				// Fallback substitutes for the failed computation and
				// propagates as the new value.
				v, err = d.fallback, nil
				fallthrough
			case err == nil:
				if !d.equals(d.value(), v) {
					d.setValue(v)
					changedSet[d.id] = struct{}{}
					res.changed = append(res.changed, d)
				}
			default:
				// Keep the prior cached value; dependents are not
				// recomputed on account of this node.
				res.errs = append(res.errs, waveErr{n: d, err: &ComputeError{NodeID: d.id, Err: err}})
			}
		}

		for _, depID := range d.dependents {
			dep, in := reachable[depID]
			if !in {
				continue
			}
			indegree[dep.id]--
			if indegree[dep.id] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if g.metrics != nil {
		g.metrics.waves.Inc()
		g.metrics.waveDuration.Observe(time.Since(start).Seconds())
	}
	if span != nil {
		span(len(res.changed), len(res.errs))
	}
	if g.debug {
		g.logger.Debug("atomik: wave settled",
			"wave", res.id, "seed", src.id, "visited", visited,
			"changed", len(res.changed), "errors", len(res.errs))
	}
	return res
}

// inQueue reports whether n is already queued.
func inQueue(queue []*node, n *node) bool {
	for _, q := range queue {
		if q.id == n.id {
			return true
		}
	}
	return false
}

// evalCompute runs a compute function, converting panics (including
// undeclared-dependency reads) into errors.
func evalCompute(n *node, get Getter) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	return n.compute(get)
}

// spanCloser finishes a wave span with its result counts.
type spanCloser func(changed, errs int)

// startWaveSpan opens the per-wave trace span.
func (g *Graph) startWaveSpan(waveID, seedID uint64) spanCloser {
	_, span := g.tracer.Start(context.Background(), "atomik.wave")
	span.SetAttributes(
		attribute.Int64("atomik.wave_id", int64(waveID)),
		attribute.Int64("atomik.seed_node", int64(seedID)),
	)
	return func(changed, errs int) {
		span.SetAttributes(
			attribute.Int("atomik.changed_nodes", changed),
			attribute.Int("atomik.compute_errors", errs),
		)
		span.End()
	}
}

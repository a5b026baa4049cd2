package atomik

// cleanupNode detaches a node from the graph.
//
// It removes the node from every dependency's dependents set, clears its
// subscribers, marks it inert, and deletes it from the arena — the only way
// node memory is ever reclaimed. It does not touch neighboring nodes'
// structure: a derived node whose dependency was cleaned up keeps its
// declared dependency list and reads a "no longer available" failure on its
// next recompute instead of crashing.
//
// Idempotent: repeated calls after the first are no-ops.
func (g *Graph) cleanupNode(n *node) {
	if !n.inert.CompareAndSwap(false, true) {
		return
	}

	g.mu.Lock()
	for _, depID := range n.deps {
		if dep, ok := g.nodes[depID]; ok {
			dep.dependents = removeID(dep.dependents, n.id)
		}
	}
	// Dependents keep their fixed dependency lists; only the back-edges
	// into this node's dependents set go away with the node itself.
	n.dependents = nil
	// Arena removal happens inside the critical section: propagation
	// reads g.nodes under the mutation lock, so the delete must be
	// ordered against in-flight waves.
	g.removeNode(n.id)
	g.mu.Unlock()

	n.clearSubs()

	if g.debug {
		g.logger.Debug("atomik: node cleaned up", "node", n.id)
	}
}

// removeID deletes id from ids, preserving order.
func removeID(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

package atomik

import "fmt"

// Subscription identifies one registered observer callback.
// The zero value is inert; Unsubscribe on it is a no-op.
type Subscription struct {
	n  *node
	id uint64
}

// ID returns the subscription's unique id.
func (s Subscription) ID() uint64 { return s.id }

// Unsubscribe removes the callback. Safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.n != nil {
		s.n.removeSub(s.id)
	}
}

// subscribeNode registers an untyped callback on a node.
// Insertion order defines notification order.
func (g *Graph) subscribeNode(n *node, fn func(any)) (Subscription, error) {
	if n.inert.Load() {
		return Subscription{}, ErrInert
	}
	sub := subscriber{id: nextID(), fn: fn}
	n.addSub(sub)
	return Subscription{n: n, id: sub.id}, nil
}

// dispatch fires subscriber callbacks for every node changed in a settled
// wave, in wave order, each node's subscribers in insertion order. A
// callback that panics is routed to the error-handler chain and never
// suppresses notifications to the remaining subscribers or nodes. Runs
// outside the mutation lock.
func (g *Graph) dispatch(changed []*node) {
	for _, n := range changed {
		v := n.value()
		subs := n.snapshotSubs()
		for _, s := range subs {
			g.safeCall(n, s, v)
		}
		if g.metrics != nil {
			g.metrics.notifications.Add(float64(len(subs)))
		}
		if g.observer != nil {
			g.observer(Event{
				NodeID:   n.id,
				Kind:     n.kind.String(),
				Wave:     n.lastWave.Load(),
				Revision: n.rev.Load(),
				Value:    v,
			})
		}
	}
}

// safeCall invokes one subscriber, isolating panics.
func (g *Graph) safeCall(n *node, s subscriber, v any) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}
			if g.metrics != nil {
				g.metrics.callbackErrors.Inc()
			}
			g.handleError(n, &ObserverError{NodeID: n.id, SubscriptionID: s.id, Err: err})
		}
	}()
	s.fn(v)
}

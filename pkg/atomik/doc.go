// Package atomik implements a reactive state graph: mutable sources hold
// values, derived nodes compute values from declared dependencies, and
// subscribers are notified after each propagation wave settles.
//
// A Graph owns everything: the node arena, the mutation lock that linearizes
// propagation waves, the bounded worker pool behind the asynchronous mutation
// path, and the error-handler chain. There is no package-level shared state;
// construct a Graph once at process start and thread it through.
//
// Basic usage:
//
//	g := atomik.New()
//	defer g.Close()
//
//	celsius := atomik.NewSource(g, 20.0)
//	fahrenheit, _ := atomik.NewDerived(g, func(get atomik.Getter) (float64, error) {
//	    return celsius.From(get)*9/5 + 32, nil
//	}, celsius)
//
//	sub, _ := fahrenheit.Subscribe(func(f float64) {
//	    fmt.Println("now", f)
//	})
//	defer sub.Unsubscribe()
//
//	celsius.Set(30.0) // fahrenheit recomputes to 86.0, subscriber fires
//
// Derived values are recomputed eagerly and exactly once per wave, in
// dependency order, so reads never observe a stale value and diamond-shaped
// graphs never recompute a node twice. Equal values (per the node's equality
// function) neither bump the revision nor propagate further.
package atomik

package atomik

import "sync"

// job is one deferred mutation awaiting a worker.
type job struct {
	run func()
	fut *Future
}

// workerPool executes deferred mutations on a bounded set of workers.
//
// Jobs are sharded by node id, one FIFO lane per worker, so deferred
// mutations to the same node always execute in submission order. A full
// lane blocks the submitter; no mutation is ever dropped.
type workerPool struct {
	g     *Graph
	lanes []chan job
	wg    sync.WaitGroup

	// mu guards closed against racing submits and shutdown.
	mu     sync.RWMutex
	closed bool
}

func newWorkerPool(g *Graph, workers, depth int, namePrefix string) *workerPool {
	p := &workerPool{
		g:     g,
		lanes: make([]chan job, workers),
	}
	for i := range p.lanes {
		p.lanes[i] = make(chan job, depth)
		p.wg.Add(1)
		go p.work(i, namePrefix, p.lanes[i])
	}
	return p
}

// work drains one lane until shutdown closes it.
func (p *workerPool) work(i int, namePrefix string, lane <-chan job) {
	defer p.wg.Done()
	for j := range lane {
		// A job cancelled before execution is skipped; its future has
		// already resolved with ErrCancelled.
		if !j.fut.start() {
			continue
		}
		j.run()
	}
	if p.g.debug {
		p.g.logger.Debug("atomik: worker exiting", "worker", namePrefix, "lane", i)
	}
}

// submit queues a job on the lane owned by nodeID. Blocks when the lane is
// full. Returns ErrQueueClosed after shutdown.
func (p *workerPool) submit(nodeID uint64, run func(), fut *Future) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueClosed
	}
	lane := p.lanes[nodeID%uint64(len(p.lanes))]
	lane <- job{run: run, fut: fut}
	if p.g.metrics != nil {
		p.g.metrics.queueDepth.Set(float64(p.depth()))
	}
	return nil
}

// depth reports the total number of queued jobs across lanes.
func (p *workerPool) depth() int {
	total := 0
	for _, lane := range p.lanes {
		total += len(lane)
	}
	return total
}

// shutdown closes all lanes and waits for in-flight jobs to finish.
func (p *workerPool) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for _, lane := range p.lanes {
		close(lane)
	}
	p.wg.Wait()
}

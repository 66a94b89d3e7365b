package ecsched

import (
	"runtime"
	"sync"
)

// Pool is a fixed set of worker goroutines fed through a buffered channel.
// Jobs submitted while the pool is stopped or its queue is full run inline
// on the submitting goroutine, so Submit never blocks on a saturated pool.
type Pool struct {
	workers int

	mu      sync.RWMutex
	jobs    chan func()
	running bool
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given number of workers.
// Zero or negative uses runtime.GOMAXPROCS(0).
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Start launches the workers. Starting a running pool is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.jobs = make(chan func(), p.workers*4)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(p.jobs)
	}
}

// Stop drains the queue and waits for all workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// Running reports whether the workers are up.
func (p *Pool) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// worker is a pool worker that executes jobs.
func (p *Pool) worker(jobs <-chan func()) {
	defer p.wg.Done()
	for fn := range jobs {
		fn()
	}
}

// Handle tracks one submitted job.
type Handle struct {
	done chan struct{}
}

// Wait blocks until the job has finished.
func (h *Handle) Wait() {
	<-h.done
}

// Submit schedules fn and returns a handle to wait on. fn must not panic.
func (p *Pool) Submit(fn func()) *Handle {
	h := &Handle{done: make(chan struct{})}
	job := func() {
		defer close(h.done)
		fn()
	}

	if p == nil {
		job()
		return h
	}

	p.mu.RLock()
	if p.running {
		select {
		case p.jobs <- job:
			p.mu.RUnlock()
			return h
		default:
			// Worker pool full, run inline
		}
	}
	p.mu.RUnlock()

	job()
	return h
}

// JoinAll waits for every handle.
func JoinAll(handles ...*Handle) {
	for _, h := range handles {
		if h != nil {
			h.Wait()
		}
	}
}

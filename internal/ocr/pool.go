package ocr

import (
	"errors"
	"runtime"
	"sync"
)

// ErrPoolSaturated is returned when the job queue is full. Callers
// surface it as backpressure instead of queueing unboundedly.
var ErrPoolSaturated = errors.New("ocr pool saturated")

// ErrPoolClosed is returned when submitting after shutdown.
var ErrPoolClosed = errors.New("ocr pool closed")

// Pool runs blocking recognition calls on a fixed set of workers so
// they never stall request handling. One Pool exists per serving
// process: created at startup, closed on shutdown.
type Pool struct {
	workers   int
	jobQueue  chan func()
	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewPool creates a pool with the given worker count and queue
// capacity. workers <= 0 defaults to the CPU count.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	return &Pool{
		workers:  workers,
		jobQueue: make(chan func(), queueSize),
	}
}

// Start launches the workers. Safe to call more than once.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	for job := range p.jobQueue {
		job()
	}
}

// TrySubmit enqueues a job without blocking. Returns ErrPoolSaturated
// when the queue is at capacity, ErrPoolClosed after Close.
func (p *Pool) TrySubmit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return ErrPoolSaturated
	}
}

// Close shuts down the pool. Queued jobs still run; new submissions
// are rejected.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.jobQueue)
	})
}

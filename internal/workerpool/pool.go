// Package workerpool runs frame sink writes on a fixed set of goroutines
// behind a bounded queue.
package workerpool

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/wgcapture/internal/logging"
)

var log = logging.L("workerpool")

// ErrStopped is returned by SubmitWait once the pool stops accepting.
var ErrStopped = errors.New("worker pool stopped")

// Task is a unit of work. ctx is cancelled when the pool finishes draining.
type Task func(ctx context.Context)

// Pool is a bounded goroutine pool with a fixed-size task queue.
type Pool struct {
	name      string
	queue     chan Task
	wg        sync.WaitGroup
	submitMu  sync.RWMutex
	accepting atomic.Bool
	stopOnce  sync.Once
	closeOnce sync.Once
	stopChan  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	completed atomic.Uint64
	panicked  atomic.Uint64
}

// New creates a pool with workers goroutines and a task queue of queueSize.
func New(name string, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:     name,
		queue:    make(chan Task, queueSize),
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Debug("worker pool started", "pool", name, "workers", workers, "queueSize", queueSize)
	return p
}

// Context is cancelled after Drain returns.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Submit enqueues a task without blocking. Returns false if the pool is
// stopped or the queue is full.
func (p *Pool) Submit(task Task) bool {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done()
		log.Warn("worker pool queue full, task rejected", "pool", p.name)
		return false
	}
}

// SubmitWait enqueues a task, blocking while the queue is full until ctx
// is done or the pool stops.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if !p.accepting.Load() {
		return ErrStopped
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	case <-p.stopChan:
		p.wg.Done()
		return ErrStopped
	}
}

// StopAccepting prevents new tasks from being submitted. Submissions already
// inside Submit or SubmitWait finish first.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain waits for queued and in-flight tasks, bounded by ctx. Drain implies
// StopAccepting; the queue is closed so the workers exit once it empties.
func (p *Pool) Drain(ctx context.Context) {
	p.StopAccepting()
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	// stopChan released any blocked SubmitWait; wait for submitters to
	// leave before closing the queue.
	p.submitMu.Lock()
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.submitMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug("worker pool drained", "pool", p.name, "completed", p.completed.Load())
	case <-ctx.Done():
		log.Warn("worker pool drain timed out", "pool", p.name)
	}
	p.cancel()
}

// Shutdown stops accepting and drains.
func (p *Pool) Shutdown(ctx context.Context) {
	p.StopAccepting()
	p.Drain(ctx)
}

// Completed is the number of tasks that returned or panicked.
func (p *Pool) Completed() uint64 { return p.completed.Load() }

// Panicked is the number of tasks that panicked.
func (p *Pool) Panicked() uint64 { return p.panicked.Load() }

func (p *Pool) worker() {
	for task := range p.queue {
		p.runTask(task)
	}
}

// runTask executes one task with panic recovery. wg.Done matches the Add
// made at submission.
func (p *Pool) runTask(task Task) {
	defer p.wg.Done()
	defer p.completed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			log.Error("task panicked", "pool", p.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task(p.ctx)
}

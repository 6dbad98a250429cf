package sink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/wgcapture/internal/logging"
	"github.com/breeze-rmm/wgcapture/internal/workerpool"
	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

// Async hands writes to a worker pool so the capture loop never blocks on
// disk. The first write error is kept and returned by Err and Close.
type Async struct {
	w    Writer
	pool *workerpool.Pool

	mu       sync.Mutex
	firstErr error
	written  atomic.Uint64
	failed   atomic.Uint64
}

// NewAsync wraps w with a pool of workers goroutines and a queueSize queue.
func NewAsync(w Writer, workers, queueSize int) *Async {
	return &Async{
		w:    w,
		pool: workerpool.New("sink", workers, queueSize),
	}
}

// Write queues frame, waiting for queue space until ctx is done.
func (a *Async) Write(ctx context.Context, seq uint64, frame capture.RawFrameData) error {
	return a.pool.SubmitWait(ctx, func(context.Context) {
		if err := a.w.Write(seq, frame); err != nil {
			a.failed.Add(1)
			a.record(err)
			log.Warn("frame write failed", logging.KeySequence, seq, logging.KeyError, err)
			return
		}
		a.written.Add(1)
	})
}

func (a *Async) record(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.firstErr == nil {
		a.firstErr = err
	}
}

// Err returns the first write error seen so far.
func (a *Async) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.firstErr
}

// Written is the number of frames stored successfully.
func (a *Async) Written() uint64 { return a.written.Load() }

// Failed is the number of frames whose write returned an error.
func (a *Async) Failed() uint64 { return a.failed.Load() }

// Close drains queued writes, bounded by ctx, and returns the first error.
func (a *Async) Close(ctx context.Context) error {
	a.pool.Shutdown(ctx)
	if err := ctx.Err(); err != nil && a.Err() == nil {
		return err
	}
	return a.Err()
}

// Package workers provides the fixed-size worker pool and the shared work
// queue used by the scan engine. Workers drain the queue until it is empty
// and report their lifecycle to the structured logging and metrics systems.
package workers

import (
	"context"
	"sync"

	"github.com/anstrom/scanprobe/internal/logging"
	"github.com/anstrom/scanprobe/internal/metrics"
)

// DefaultSize is the number of workers started for every scan. It does not
// depend on the size of the port range.
const DefaultSize = 100

// Handler processes a single port. It must not block without bound.
type Handler func(ctx context.Context, workerID int, port uint16)

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{Size: DefaultSize}
}

// Pool manages a fixed set of worker goroutines draining one Queue.
type Pool struct {
	config    Config
	queue     *Queue
	handler   Handler
	recorder  metrics.Recorder
	logger    *logging.Logger
	workers   []*worker
	wg        sync.WaitGroup
	startOnce sync.Once
}

// worker represents a single worker goroutine.
type worker struct {
	id   int
	pool *Pool
}

// New creates a new worker pool over queue. A non-positive size falls back
// to a single worker; a nil recorder disables metrics.
func New(config Config, queue *Queue, handler Handler, recorder metrics.Recorder) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	pool := &Pool{
		config:   config,
		queue:    queue,
		handler:  handler,
		recorder: recorder,
		logger:   logging.Default().WithComponent("workers"),
		workers:  make([]*worker, config.Size),
	}

	for i := 0; i < config.Size; i++ {
		pool.workers[i] = &worker{
			id:   i,
			pool: pool,
		}
	}

	return pool
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return p.config.Size
}

// Start launches every worker. Calling Start more than once has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.logger.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queued", p.queue.Len())

		for _, w := range p.workers {
			p.wg.Add(1)
			go w.run(ctx)
		}
	})
}

// Wait blocks until every worker goroutine has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// run pops ports until the queue is empty.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.recorder.WorkerStarted()
	defer w.pool.recorder.WorkerStopped()

	for {
		port, ok := w.pool.queue.Pop()
		if !ok {
			return
		}
		w.process(ctx, port)
	}
}

// process runs the handler for one port and always acknowledges it.
func (w *worker) process(ctx context.Context, port uint16) {
	defer w.pool.queue.Done()
	w.pool.handler(ctx, w.id, port)
}

// Package worker implements spec.md §4.F/SPEC_FULL.md §4.F's bounded
// goroutine pool: the DNS server loop hands each decoded datagram to this
// pool rather than spawning a goroutine per datagram, so a traffic burst
// shows up as queueing delay instead of unbounded goroutine growth.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrQueueFull indicates the datagram queue is full. The caller
	// (dnsserver.loop) drops the datagram on this error, matching
	// spec.md §5's backpressure policy: the UDP path has no
	// transport-level flow control, so the pool's bounded queue is the
	// only one, and a full queue sheds load rather than growing without
	// bound.
	ErrQueueFull = errors.New("datagram queue is full")
)

// Job is one decoded datagram's worth of work: resolve it and send the
// reply. dnsserver never needs a result back from a Job — see
// SubmitAsync — so Job.Execute only reports failures for the
// jobsFailed counter.
type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc adapts a plain function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Config holds worker pool configuration.
type Config struct {
	// Workers bounds the number of goroutines draining the queue.
	// Zero selects a default sized for I/O-bound datagram handling
	// (runtime.NumCPU() * 2: each job is a short decode/resolve/encode
	// sequence, not a CPU-bound one, so there is little reason to go as
	// far as a generic CPU-bound pool's NumCPU()*4).
	Workers int

	// QueueSize bounds how many decoded datagrams may be waiting for a
	// free worker. Zero selects defaultQueueSize. Each queued item is
	// one already-parsed request (see internal/codec) destined for one
	// reply of at most the 512-byte datagram ceiling from spec.md §6,
	// so sizing tracks expected burst depth rather than a multiple of
	// Workers.
	QueueSize int

	// PanicHandler, if set, is called with the recovered value when a
	// Job panics. The pool always recovers; PanicHandler only observes.
	PanicHandler func(interface{})
}

const (
	defaultQueueSize = 2048
)

// Pool is a bounded worker pool that prevents goroutine exhaustion under
// a burst of incoming datagrams.
type Pool struct {
	workers int
	queue   chan Job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool

	queueSize int

	panicHandler func(interface{})

	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	jobsRejected  atomic.Uint64
	jobsFailed    atomic.Uint64
	totalLatency  atomic.Uint64 // nanoseconds
}

// NewPool creates a new worker pool and starts its workers.
func NewPool(cfg Config) *Pool {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU() * 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:      cfg.Workers,
		queue:        make(chan Job, cfg.QueueSize),
		ctx:          ctx,
		cancel:       cancel,
		queueSize:    cfg.QueueSize,
		panicHandler: cfg.PanicHandler,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.executeJob(job)
		}
	}
}

func (p *Pool) executeJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			p.jobsFailed.Add(1)
		}
	}()

	start := time.Now()
	err := job.Execute(p.ctx)
	p.totalLatency.Add(uint64(time.Since(start).Nanoseconds()))

	if err != nil {
		p.jobsFailed.Add(1)
	} else {
		p.jobsCompleted.Add(1)
	}
}

// SubmitAsync queues job for a worker to run and returns immediately,
// without waiting for (or reporting) the job's result. This is the only
// submission method the DNS server loop uses: handleDatagram already
// writes its own reply to the socket and records its own outcome in
// internal/metrics, so nothing the caller needs comes back through the
// pool itself.
func (p *Pool) SubmitAsync(ctx context.Context, job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.jobsSubmitted.Add(1)

	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.jobsRejected.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting new jobs and waits for in-flight jobs to finish.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return ErrPoolClosed
	}

	close(p.queue)
	p.wg.Wait()
	p.cancel()

	return nil
}

// Stats is a snapshot of the pool's atomic counters.
type Stats struct {
	Workers      int
	QueueSize    int
	QueueDepth   int
	Submitted    uint64
	Completed    uint64
	Rejected     uint64
	Failed       uint64
	AvgLatencyNs uint64
}

// GetStats returns current pool statistics.
func (p *Pool) GetStats() Stats {
	completed := p.jobsCompleted.Load()
	totalLatency := p.totalLatency.Load()

	var avgLatency uint64
	if completed > 0 {
		avgLatency = totalLatency / completed
	}

	return Stats{
		Workers:      p.workers,
		QueueSize:    p.queueSize,
		QueueDepth:   len(p.queue),
		Submitted:    p.jobsSubmitted.Load(),
		Completed:    completed,
		Rejected:     p.jobsRejected.Load(),
		Failed:       p.jobsFailed.Load(),
		AvgLatencyNs: avgLatency,
	}
}

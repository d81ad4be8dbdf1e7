// Package inferpool implements the bounded infer-request slot pool: nireq
// opaque runtime handles checked out for the duration of one execution,
// guarding admission the same way a scoped RAII checkout guard would. It is
// a plain buffered-channel semaphore (acquired with a select/timeout,
// released via a deferred closure) rather than a new concurrency primitive.
package inferpool

import (
	"context"
	"sync/atomic"

	"modelserverd/internal/statuscode"
)

// Handle is an opaque runtime slot identifier. The pool does not interpret
// it; the stateful instance maps it to whatever the runtime collaborator
// needs (stream id, device handle, etc).
type Handle int

// ActiveGauge receives active/inactive transitions as a scoped guard is
// acquired and released, mirroring ExecutingStreamIdGuard's nested
// CurrentRequestsMetricGuard. The metrics package implements this.
type ActiveGauge interface {
	Inc()
	Dec()
}

type noopGauge struct{}

func (noopGauge) Inc() {}
func (noopGauge) Dec() {}

// Pool is a fixed-size set of Handles checked out FIFO-ish via a buffered
// channel.
type Pool struct {
	slots chan Handle
	size  int
	gauge ActiveGauge

	inUse atomic.Int64
}

// New creates a Pool with nireq slots, numbered 0..nireq-1.
func New(nireq int, gauge ActiveGauge) *Pool {
	if nireq <= 0 {
		nireq = 1
	}
	if gauge == nil {
		gauge = noopGauge{}
	}
	p := &Pool{slots: make(chan Handle, nireq), size: nireq, gauge: gauge}
	for i := 0; i < nireq; i++ {
		p.slots <- Handle(i)
	}
	return p
}

// Size returns the configured number of slots (nireq), for the
// ovms_infer_req_queue_size gauge.
func (p *Pool) Size() int { return p.size }

// InUse returns the number of currently checked-out slots, for the
// ovms_infer_req_active gauge.
func (p *Pool) InUse() int { return int(p.inUse.Load()) }

// Guard is a scoped acquisition: release it exactly once, on every exit path,
// the same discipline as ExecutingStreamIdGuard's RAII destructor.
type Guard struct {
	pool   *Pool
	handle Handle
}

func (g *Guard) Handle() Handle { return g.handle }

// Release returns the handle to the pool and decrements the active-requests
// gauge. Safe to call via defer immediately after a successful Acquire.
func (g *Guard) Release() {
	g.pool.inUse.Add(-1)
	g.pool.gauge.Dec()
	g.pool.slots <- g.handle
}

// Acquire blocks until a slot is free or ctx is done. A context cancellation
// before a slot frees is the one cancellation point the core honors — once
// acquired, execution is expected to run to completion.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	select {
	case h := <-p.slots:
		p.inUse.Add(1)
		p.gauge.Inc()
		return &Guard{pool: p, handle: h}, nil
	case <-ctx.Done():
		return nil, statuscode.New(statuscode.DeadlineExceeded, "infer handle acquisition canceled: %v", ctx.Err())
	}
}

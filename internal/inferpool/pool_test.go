package inferpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"modelserverd/internal/statuscode"
)

type countingGauge struct {
	mu       sync.Mutex
	incs     int
	decs     int
	maxValue int
	cur      int
}

func (g *countingGauge) Inc() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.incs++
	g.cur++
	if g.cur > g.maxValue {
		g.maxValue = g.cur
	}
}

func (g *countingGauge) Dec() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decs++
	g.cur--
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	gauge := &countingGauge{}
	p := New(2, gauge)
	g, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if p.InUse() != 1 {
		t.Fatalf("expected InUse=1, got %d", p.InUse())
	}
	g.Release()
	if p.InUse() != 0 {
		t.Fatalf("expected InUse=0 after Release, got %d", p.InUse())
	}
	if gauge.incs != 1 || gauge.decs != 1 {
		t.Fatalf("expected 1 inc and 1 dec, got incs=%d decs=%d", gauge.incs, gauge.decs)
	}
}

func TestAcquireBlocksUntilSlotFrees(t *testing.T) {
	p := New(1, nil)
	g1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		g2, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("second Acquire failed: %v", err)
			return
		}
		g2.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("second Acquire completed before the slot was released")
	case <-time.After(20 * time.Millisecond):
	}

	g1.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second Acquire never completed after release")
	}
}

func TestAcquireCanceledByContext(t *testing.T) {
	p := New(1, nil)
	g1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer g1.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx)
	if statuscode.CodeOf(err) != statuscode.DeadlineExceeded {
		t.Fatalf("expected DEADLINE_EXCEEDED, got %v", statuscode.CodeOf(err))
	}
}

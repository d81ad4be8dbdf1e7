package sequence

import (
	"sync"
	"testing"
	"time"

	"modelserverd/internal/statuscode"
)

func TestBindStartCreatesSequence(t *testing.T) {
	m := NewManager("demo", 1, 0)
	h, err := m.Bind(ProcessingSpec{SequenceID: 7, Control: Start})
	if err != nil {
		t.Fatalf("Bind(START) returned error: %v", err)
	}
	if h.Sequence().ID != 7 {
		t.Fatalf("expected sequence id 7, got %d", h.Sequence().ID)
	}
	h.Release()
	if got := m.Len(); got != 1 {
		t.Fatalf("expected 1 live sequence after START, got %d", got)
	}
}

func TestBindStartZeroGeneratesID(t *testing.T) {
	m := NewManager("demo", 1, 0)
	h, err := m.Bind(ProcessingSpec{SequenceID: 0, Control: Start})
	if err != nil {
		t.Fatalf("Bind(START, id=0) returned error: %v", err)
	}
	if h.Sequence().ID == 0 {
		t.Fatalf("expected a nonzero server-generated id")
	}
	h.Release()
}

func TestBindStartDuplicateFails(t *testing.T) {
	m := NewManager("demo", 1, 0)
	h, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: Start})
	if err != nil {
		t.Fatalf("first START failed: %v", err)
	}
	h.Release()

	if _, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: Start}); err == nil {
		t.Fatalf("expected SEQUENCE_ALREADY_EXISTS, got nil error")
	} else if statuscode.CodeOf(err) != statuscode.SequenceAlreadyExists {
		t.Fatalf("expected SEQUENCE_ALREADY_EXISTS, got %v", statuscode.CodeOf(err))
	}
}

func TestBindNoneOrEndWithZeroIDFails(t *testing.T) {
	m := NewManager("demo", 1, 0)
	for _, c := range []ControlCode{None, End} {
		if _, err := m.Bind(ProcessingSpec{SequenceID: 0, Control: c}); statuscode.CodeOf(err) != statuscode.SequenceIDNotProvided {
			t.Fatalf("control=%v id=0: expected SEQUENCE_ID_NOT_PROVIDED, got %v", c, statuscode.CodeOf(err))
		}
	}
}

func TestBindMissingSequenceFails(t *testing.T) {
	m := NewManager("demo", 1, 0)
	if _, err := m.Bind(ProcessingSpec{SequenceID: 99, Control: None}); statuscode.CodeOf(err) != statuscode.SequenceMissing {
		t.Fatalf("expected SEQUENCE_MISSING, got %v", statuscode.CodeOf(err))
	}
}

func TestEndRemovesSequence(t *testing.T) {
	m := NewManager("demo", 1, 0)
	h, err := m.Bind(ProcessingSpec{SequenceID: 5, Control: Start})
	if err != nil {
		t.Fatalf("START failed: %v", err)
	}
	h.Release()

	h2, err := m.Bind(ProcessingSpec{SequenceID: 5, Control: End})
	if err != nil {
		t.Fatalf("END failed: %v", err)
	}
	h2.Release()

	if got := m.Len(); got != 0 {
		t.Fatalf("expected 0 sequences after END, got %d", got)
	}
	if _, err := m.Bind(ProcessingSpec{SequenceID: 5, Control: None}); statuscode.CodeOf(err) != statuscode.SequenceMissing {
		t.Fatalf("expected SEQUENCE_MISSING after END, got %v", statuscode.CodeOf(err))
	}
}

func TestAbortRollsBackFreshStart(t *testing.T) {
	m := NewManager("demo", 1, 0)
	h, err := m.Bind(ProcessingSpec{SequenceID: 3, Control: Start})
	if err != nil {
		t.Fatalf("START failed: %v", err)
	}
	h.Abort()
	if got := m.Len(); got != 0 {
		t.Fatalf("expected Abort to roll back the fresh START, got %d live sequences", got)
	}
}

func TestMaxSequenceNumberReached(t *testing.T) {
	m := NewManager("demo", 1, 1)
	h, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: Start})
	if err != nil {
		t.Fatalf("first START failed: %v", err)
	}
	h.Release()

	if _, err := m.Bind(ProcessingSpec{SequenceID: 2, Control: Start}); statuscode.CodeOf(err) != statuscode.MaxSequenceNumberReached {
		t.Fatalf("expected MAX_SEQUENCE_NUMBER_REACHED, got %v", statuscode.CodeOf(err))
	}
}

// TestPerSequenceLockSerializesConcurrentNone exercises the invariant that no
// two concurrent requests for the same sequence id may hold its lock at once:
// both goroutines sleep while holding the handle, and we assert that at most
// one of them holds it at any moment and that both complete.
func TestPerSequenceLockSerializesConcurrentNone(t *testing.T) {
	m := NewManager("demo", 1, 0)
	h, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: Start})
	if err != nil {
		t.Fatalf("START failed: %v", err)
	}
	h.Release()

	var wg sync.WaitGroup
	var order []int
	var holders int
	var mu sync.Mutex
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hh, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: None})
			if err != nil {
				t.Errorf("goroutine %d: Bind failed: %v", n, err)
				return
			}
			mu.Lock()
			holders++
			if holders > 1 {
				t.Errorf("goroutine %d: %d requests hold the sequence at once", n, holders)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			holders--
			order = append(order, n)
			mu.Unlock()
			hh.Release()
		}(i)
	}
	wg.Wait()
	if len(order) != 2 {
		t.Fatalf("expected both goroutines to complete, got %v", order)
	}
}

// TestConcurrentBindAfterEndObservesMissing exercises Open Question (b) from
// DESIGN.md: a Bind whose manager-lock section runs strictly after a prior
// END has already removed the sequence must observe SEQUENCE_MISSING, even
// when the two Bind calls happen on different goroutines. A channel forces
// the ordering deterministically instead of relying on scheduler timing.
func TestConcurrentBindAfterEndObservesMissing(t *testing.T) {
	m := NewManager("demo", 1, 0)
	h, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: Start})
	if err != nil {
		t.Fatalf("START failed: %v", err)
	}
	h.Release()

	ended := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		hh, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: End})
		if err != nil {
			t.Errorf("END goroutine: Bind failed: %v", err)
			close(ended)
			return
		}
		hh.Release()
		close(ended)
	}()

	go func() {
		defer wg.Done()
		<-ended
		if _, err := m.Bind(ProcessingSpec{SequenceID: 1, Control: None}); statuscode.CodeOf(err) != statuscode.SequenceMissing {
			t.Errorf("expected SEQUENCE_MISSING for Bind after END completed, got %v", statuscode.CodeOf(err))
		}
	}()

	wg.Wait()
	if got := m.Len(); got != 0 {
		t.Fatalf("expected 0 live sequences after END, got %d", got)
	}
}

// Package sequence implements per-model sequence tracking: the map from a
// client- or server-assigned sequence id to its stored state blobs, and the
// manager that owns that map under a split-lock discipline: a short-held
// manager lock resolves which sequence a request binds to, then a
// per-sequence lock is held for the duration of the request itself.
package sequence

import (
	"sync"
	"time"

	"modelserverd/internal/statuscode"
)

// ControlCode mirrors the three-value transition table a request can carry.
type ControlCode int

const (
	None ControlCode = iota
	Start
	End
)

// Sequence holds the opaque per-state blobs for one sequence id plus the
// lock that serializes requests against it. A live Sequence is never shared
// outside its owning Manager.
type Sequence struct {
	ID       uint64
	mu       sync.Mutex
	state    map[string][]byte
	lastUsed time.Time
}

// State returns the blob stored under name, and whether it was present.
func (s *Sequence) State(name string) ([]byte, bool) {
	b, ok := s.state[name]
	return b, ok
}

// SetState stores (or replaces) the blob for name.
func (s *Sequence) SetState(name string, blob []byte) {
	if s.state == nil {
		s.state = make(map[string][]byte)
	}
	s.state[name] = blob
}

// StateNames lists every state name currently stored, for pre-inference
// processing that needs to know what was carried over from a prior request.
func (s *Sequence) StateNames() []string {
	names := make([]string, 0, len(s.state))
	for n := range s.state {
		names = append(names, n)
	}
	return names
}

// LastUsed reports when this sequence last completed a bound request.
func (s *Sequence) LastUsed() time.Time { return s.lastUsed }

// ProcessingSpec is the ephemeral per-request binding request.
type ProcessingSpec struct {
	SequenceID uint64
	Control    ControlCode
}

// Manager owns every live sequence for one stateful model instance (a single
// (model name, version) pair). |sequences| never exceeds maxSequenceNumber.
type Manager struct {
	ModelName    string
	ModelVersion int64

	mu                sync.Mutex
	sequences         map[uint64]*Sequence
	maxSequenceNumber uint32
	nextServerID      uint64
}

// NewManager constructs a Manager for one model instance. maxSequenceNumber
// of 0 means unbounded, matching an unset config value.
func NewManager(modelName string, version int64, maxSequenceNumber uint32) *Manager {
	return &Manager{
		ModelName:         modelName,
		ModelVersion:      version,
		sequences:         make(map[uint64]*Sequence),
		maxSequenceNumber: maxSequenceNumber,
	}
}

// Len reports the current number of live sequences, for tests and metrics.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sequences)
}

// Handle is a sequence bound to the in-flight request that called Bind. The
// caller must call Release (success) or Abort (failure) exactly once; either
// call unlocks the sequence.
type Handle struct {
	seq     *Sequence
	mgr     *Manager
	control ControlCode
	isNew   bool
}

func (h *Handle) Sequence() *Sequence { return h.seq }

// Release completes the request against this handle. On End it removes the
// sequence from the manager; on Start/None it simply records the touch time
// and releases the per-sequence lock.
func (h *Handle) Release() {
	h.seq.lastUsed = time.Now()
	h.seq.mu.Unlock()
	if h.control == End {
		h.mgr.mu.Lock()
		delete(h.mgr.sequences, h.seq.ID)
		h.mgr.mu.Unlock()
	}
}

// Abort rolls back a failed request: if this Bind call created the sequence
// (a fresh START), it is removed so the failure does not leak a live
// sequence; otherwise the sequence is left untouched, only unlocked.
func (h *Handle) Abort() {
	h.seq.mu.Unlock()
	if h.isNew {
		h.mgr.mu.Lock()
		delete(h.mgr.sequences, h.seq.ID)
		h.mgr.mu.Unlock()
	}
}

// Bind resolves spec against the manager's sequence table and returns a
// Handle with the target sequence already locked. The manager lock is held
// only long enough to resolve/create/remove the map entry, per the
// short-manager-lock, long-sequence-lock discipline.
func (m *Manager) Bind(spec ProcessingSpec) (*Handle, error) {
	m.mu.Lock()

	seq, isNew, err := m.resolveLocked(spec)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	seq.mu.Lock()
	m.mu.Unlock()

	return &Handle{seq: seq, mgr: m, control: spec.Control, isNew: isNew}, nil
}

// resolveLocked implements the transition table from §3; m.mu must already
// be held by the caller.
func (m *Manager) resolveLocked(spec ProcessingSpec) (*Sequence, bool, error) {
	switch spec.Control {
	case Start:
		id := spec.SequenceID
		if id == 0 {
			id = m.generateIDLocked()
		} else if _, exists := m.sequences[id]; exists {
			return nil, false, statuscode.New(statuscode.SequenceAlreadyExists, "sequence %d already exists for %s", id, m.ModelName)
		}
		if m.maxSequenceNumber > 0 && uint32(len(m.sequences)) >= m.maxSequenceNumber {
			return nil, false, statuscode.New(statuscode.MaxSequenceNumberReached, "model %s has reached max_sequence_number=%d", m.ModelName, m.maxSequenceNumber)
		}
		seq := &Sequence{ID: id, lastUsed: time.Now()}
		m.sequences[id] = seq
		return seq, true, nil

	case None, End:
		if spec.SequenceID == 0 {
			return nil, false, statuscode.New(statuscode.SequenceIDNotProvided, "control=%v requires a nonzero sequence id", spec.Control)
		}
		seq, ok := m.sequences[spec.SequenceID]
		if !ok {
			return nil, false, statuscode.New(statuscode.SequenceMissing, "sequence %d not found for %s", spec.SequenceID, m.ModelName)
		}
		return seq, false, nil

	default:
		return nil, false, statuscode.New(statuscode.InvalidSequenceControlInput, "unknown control code %v", spec.Control)
	}
}

// generateIDLocked assigns a server-side id unique within this manager. m.mu
// must already be held.
func (m *Manager) generateIDLocked() uint64 {
	for {
		m.nextServerID++
		id := m.nextServerID
		if id == 0 {
			continue
		}
		if _, exists := m.sequences[id]; !exists {
			return id
		}
	}
}

// SweepIdle evicts every sequence whose last touch is older than maxIdle,
// using a try-lock on each sequence so an in-flight request is never
// interrupted: a sequence currently bound to another goroutine is simply
// skipped until the next sweep pass. It returns the number evicted.
func (m *Manager) SweepIdle(maxIdle time.Duration) int {
	if !m.mu.TryLock() {
		return 0
	}
	defer m.mu.Unlock()

	evicted := 0
	now := time.Now()
	for id, seq := range m.sequences {
		if !seq.mu.TryLock() {
			continue
		}
		idle := now.Sub(seq.lastUsed)
		seq.mu.Unlock()
		if idle >= maxIdle {
			delete(m.sequences, id)
			evicted++
		}
	}
	return evicted
}

// Package stateful implements the stateful model instance: the orchestrator
// that runs the full validate → bind-sequence → acquire → pre-state →
// execute → serialize → post-state → release → meter pipeline, wiring
// together internal/validate, internal/sequence, internal/inferpool,
// internal/runtime, and internal/metrics.
package stateful

import (
	"context"
	"strconv"
	"sync"
	"time"

	"modelserverd/internal/inferpool"
	"modelserverd/internal/metrics"
	"modelserverd/internal/runtime"
	"modelserverd/internal/sequence"
	"modelserverd/internal/statuscode"
	"modelserverd/internal/sweeper"
	"modelserverd/internal/validate"
	"modelserverd/pkg/types"
)

// Instance is one loaded (model name, version) pair.
type Instance struct {
	Name    string
	Version int64

	engine   runtime.Engine
	seqMgr   *sequence.Manager
	pool     *inferpool.Pool
	reporter *metrics.Reporter

	mu                       sync.RWMutex
	declaredInputs           []validate.InputInfo
	lowLatencyTransformation bool
	maxSequenceNumber        uint32

	unloadMu   sync.Mutex
	unloadCond *sync.Cond
	inflight   int
	retiring   bool

	sweeper *sweeper.Sweeper
}

// Config groups everything needed to bring up an Instance, mirroring the
// fields of types.ModelConfig that matter to the core (base_path is consumed
// by the runtime Load call, not stored here).
type Config struct {
	Nireq                    int
	MaxSequenceNumber        uint32
	LowLatencyTransformation bool
	IdleSequenceCleanup      bool
	DeclaredInputs           []validate.InputInfo
	PluginConfig             map[string]string
}

// streamsFrom resolves the ovms_streams count from plugin_config's
// CPU_THROUGHPUT_STREAMS, falling back to nireq when it is absent or not a
// plain integer (AUTO/throughput-mode strings aren't a stream count).
func streamsFrom(pluginConfig map[string]string, nireq int) int {
	raw, ok := pluginConfig["CPU_THROUGHPUT_STREAMS"]
	if !ok {
		return nireq
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return nireq
	}
	return n
}

// New constructs and loads an Instance. The engine is loaded before the
// sequence manager and pool are built, so a load failure never leaves
// partially-constructed bookkeeping behind. If sweep is non-nil and
// cfg.IdleSequenceCleanup is set, the new instance registers itself for
// periodic idle-sequence eviction via sweeper.Register on load and
// sweeper.Unregister on Retire.
func New(ctx context.Context, name string, version int64, cfg Config, opts runtime.LoadOptions, engine runtime.Engine, reg *metrics.Registry, sweep *sweeper.Sweeper) (*Instance, error) {
	if err := engine.Load(ctx, name, version, opts); err != nil {
		return nil, err
	}
	nireq := cfg.Nireq
	if nireq <= 0 {
		nireq = 1
	}
	reg.RegisterModel(name, version, nireq, streamsFrom(cfg.PluginConfig, nireq))
	reporter := reg.ReporterFor(name, version)

	inst := &Instance{
		Name:                     name,
		Version:                  version,
		engine:                   engine,
		seqMgr:                   sequence.NewManager(name, version, cfg.MaxSequenceNumber),
		pool:                     inferpool.New(nireq, reporter.ActiveGauge()),
		reporter:                 reporter,
		declaredInputs:           cfg.DeclaredInputs,
		lowLatencyTransformation: cfg.LowLatencyTransformation,
		maxSequenceNumber:        cfg.MaxSequenceNumber,
		sweeper:                  sweep,
	}
	inst.unloadCond = sync.NewCond(&inst.unloadMu)
	if sweep != nil && cfg.IdleSequenceCleanup {
		sweep.Register(name, version, inst)
	}
	return inst, nil
}

// Metadata reports the instance's current shape for status/metadata APIs.
func (inst *Instance) Metadata() types.ModelMetadata {
	inst.mu.RLock()
	defer inst.mu.RUnlock()
	return types.ModelMetadata{
		Name:                inst.Name,
		Version:             inst.Version,
		Stateful:            true,
		MaxSequenceNumber:   inst.maxSequenceNumber,
		ActiveSequences:     inst.seqMgr.Len(),
		LowLatencyTransform: inst.lowLatencyTransformation,
	}
}

// beginRequest registers one more in-flight caller, rejecting new work once
// Retire has been called — the "unload guard" from the concurrency model
// that delays reload/retirement until in-flight requests finish, modeled
// here the other way round: retirement waits for them, and no new request
// starts once retirement has begun.
func (inst *Instance) beginRequest() error {
	inst.unloadMu.Lock()
	defer inst.unloadMu.Unlock()
	if inst.retiring {
		return statuscode.New(statuscode.ModelNotReady, "model %s version %d is retiring", inst.Name, inst.Version)
	}
	inst.inflight++
	return nil
}

func (inst *Instance) endRequest() {
	inst.unloadMu.Lock()
	inst.inflight--
	if inst.inflight == 0 {
		inst.unloadCond.Broadcast()
	}
	inst.unloadMu.Unlock()
}

// Retire blocks until every in-flight request has finished, then unloads the
// engine. A second call finds nothing in flight and repeats the sweeper
// unregistration and the engine Unload.
func (inst *Instance) Retire(ctx context.Context) error {
	inst.unloadMu.Lock()
	inst.retiring = true
	for inst.inflight > 0 {
		inst.unloadCond.Wait()
	}
	inst.unloadMu.Unlock()
	if inst.sweeper != nil {
		inst.sweeper.Unregister(inst.Name, inst.Version)
	}
	return inst.engine.Unload(ctx, inst.Name, inst.Version)
}

// Reload atomically swaps in new declared-input metadata and low-latency
// flag, the copy-on-reload policy from the concurrency model: in-flight
// requests keep running against whatever they already captured, and new
// requests see the new shape the instant this call returns. It also
// re-evaluates sweeper registration, covering "disable-reload" (§4.4): a
// reload that flips idle_sequence_cleanup off unregisters the instance, one
// that flips it on registers it.
func (inst *Instance) Reload(declaredInputs []validate.InputInfo, lowLatencyTransformation, idleSequenceCleanup bool) {
	inst.mu.Lock()
	inst.declaredInputs = declaredInputs
	inst.lowLatencyTransformation = lowLatencyTransformation
	inst.mu.Unlock()

	if inst.sweeper == nil {
		return
	}
	if idleSequenceCleanup {
		inst.sweeper.Register(inst.Name, inst.Version, inst)
	} else {
		inst.sweeper.Unregister(inst.Name, inst.Version)
	}
}

// Infer runs the full pipeline for one request. ep identifies which
// transport surface and method the caller is serving this request through
// (the core itself never decides this; it only reports against it) — the
// label half of spec.md §4.2 step 11 that the transport layer owns. The only
// cancellation point honored is before the infer-handle is acquired; once
// execution begins it runs to completion even if ctx is later canceled.
func (inst *Instance) Infer(ctx context.Context, req types.InferRequest, ep metrics.Endpoint) (types.InferResponse, error) {
	if err := inst.beginRequest(); err != nil {
		return types.InferResponse{}, err
	}
	defer inst.endRequest()

	start := time.Now()
	resp, err := inst.infer(ctx, req)
	inst.reporter.ObserveRequest(ep, err == nil, float64(time.Since(start).Microseconds()))
	return resp, err
}

func (inst *Instance) infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
	inst.mu.RLock()
	declared := inst.declaredInputs
	inst.mu.RUnlock()

	if err := validate.Validate(req, validate.Resolution{ModelFound: true, VersionFound: true, Inputs: declared}); err != nil {
		return types.InferResponse{}, err
	}

	control := controlCodeFrom(req.SequenceControl)
	handle, err := inst.seqMgr.Bind(sequence.ProcessingSpec{SequenceID: req.SequenceID, Control: control})
	if err != nil {
		return types.InferResponse{}, err
	}

	waitStart := time.Now()
	guard, err := inst.pool.Acquire(ctx)
	inst.reporter.ObserveWaitForInferReq(float64(time.Since(waitStart).Microseconds()))
	if err != nil {
		handle.Abort()
		return types.InferResponse{}, err
	}
	defer guard.Release()

	inst.reporter.IncCurrentRequests()
	defer inst.reporter.DecCurrentRequests()

	priorState := map[string][]byte{}
	if control != sequence.Start {
		seq := handle.Sequence()
		for _, name := range seq.StateNames() {
			blob, _ := seq.State(name)
			priorState[name] = blob
		}
	}

	execStart := time.Now()
	outputs, nextState, err := inst.engine.Execute(ctx, inst.Name, inst.Version, guard.Handle(), req.Inputs, priorState)
	inst.reporter.ObserveInference(float64(time.Since(execStart).Microseconds()))
	if err != nil {
		handle.Abort()
		return types.InferResponse{}, err
	}

	if control != sequence.End {
		seq := handle.Sequence()
		for name, blob := range nextState {
			seq.SetState(name, blob)
		}
	}
	handle.Release()

	return types.InferResponse{Outputs: outputs, SequenceID: handle.Sequence().ID}, nil
}

func controlCodeFrom(c types.SequenceControlInput) sequence.ControlCode {
	switch c {
	case types.SequenceStart:
		return sequence.Start
	case types.SequenceEnd:
		return sequence.End
	default:
		return sequence.None
	}
}

// SweepIdle evicts sequences idle longer than maxIdle, delegating to the
// sequence manager's try-lock sweep.
func (inst *Instance) SweepIdle(maxIdle time.Duration) int {
	return inst.seqMgr.SweepIdle(maxIdle)
}

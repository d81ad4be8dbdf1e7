//go:build llama

// This file links github.com/go-skynet/go-llama.cpp as a CGO backend,
// repurposed from chat-completion streaming to a stateful Engine. go-llama.cpp does not expose raw KV-cache
// serialization, so "state" here is the accumulated prompt text replayed on
// every call rather than a binary cache snapshot — a deliberate, documented
// simplification (see DESIGN.md) rather than a silent approximation.
package runtime

import (
	"context"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"modelserverd/internal/inferpool"
	"modelserverd/internal/statuscode"
	"modelserverd/pkg/types"
)

type modelKey struct {
	name    string
	version int64
}

type llamaEngine struct {
	ctxSize int
	threads int

	mu     sync.Mutex
	models map[modelKey]*llama.LLama
}

// New returns an Engine backed by go-llama.cpp. ctxSize/threads are fixed at
// process start; per-request sampling parameters come from plugin_config.
func New() Engine {
	return &llamaEngine{ctxSize: 2048, threads: 4, models: make(map[modelKey]*llama.LLama)}
}

func (e *llamaEngine) Load(ctx context.Context, name string, version int64, opts LoadOptions) error {
	if opts.BasePath == "" {
		return statuscode.New(statuscode.InternalError, "model %s: base_path is empty", name)
	}
	m, err := llama.New(opts.BasePath, llama.SetContext(e.ctxSize))
	if err != nil {
		return statuscode.New(statuscode.InternalError, "model %s: llama.New: %v", name, err)
	}
	e.mu.Lock()
	e.models[modelKey{name, version}] = m
	e.mu.Unlock()
	return nil
}

func (e *llamaEngine) Unload(ctx context.Context, name string, version int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := modelKey{name, version}
	if m, ok := e.models[k]; ok {
		m.Free()
		delete(e.models, k)
	}
	return nil
}

func (e *llamaEngine) Execute(ctx context.Context, name string, version int64, handle inferpool.Handle, inputs map[string]types.Tensor, priorState map[string][]byte) (map[string]types.Tensor, map[string][]byte, error) {
	e.mu.Lock()
	m, ok := e.models[modelKey{name, version}]
	e.mu.Unlock()
	if !ok {
		return nil, nil, statuscode.New(statuscode.InternalError, "model %s version %d not loaded", name, version)
	}

	prompt := decodePromptText(inputs["prompt_tokens"])
	transcript := string(priorState["transcript"]) + prompt

	text, err := m.Predict(transcript, llama.SetTokens(256), llama.SetThreads(e.threads))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, statuscode.New(statuscode.DeadlineExceeded, "execution canceled: %v", ctx.Err())
		}
		return nil, nil, statuscode.New(statuscode.InternalError, "llama predict: %v", err)
	}

	outputs := map[string]types.Tensor{
		"completion_tokens": encodePromptText(text),
	}
	nextState := map[string][]byte{
		"transcript": []byte(transcript + text),
	}
	return outputs, nextState, nil
}

func decodePromptText(t types.Tensor) string {
	buf := make([]byte, len(t.UData))
	for i, v := range t.UData {
		buf[i] = byte(v)
	}
	return string(buf)
}

func encodePromptText(s string) types.Tensor {
	u := make([]uint64, len(s))
	for i := range s {
		u[i] = uint64(s[i])
	}
	return types.Tensor{Shape: []int64{int64(len(u))}, UData: u}
}

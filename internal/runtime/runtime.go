// Package runtime defines the opaque inference runtime collaborator: the
// thing that actually executes a model given inputs and a prior state,
// deliberately kept behind a narrow interface per spec's non-goal of
// re-implementing the runtime itself. It follows a build-tag-selected
// adapter boundary: a default stub that fails fast with a typed error, and
// a real backend compiled in only with -tags=llama.
package runtime

import (
	"context"

	"modelserverd/internal/inferpool"
	"modelserverd/pkg/types"
)

// LoadOptions configures a model load, passed straight through from
// types.ModelConfig by the stateful instance.
type LoadOptions struct {
	BasePath                 string
	PluginConfig             map[string]string
	LowLatencyTransformation bool
}

// Engine executes one bound inference call. handle identifies which
// infer-request slot this call owns (the pool guarantees at most nireq
// concurrent Execute calls per loaded model). priorState is the sequence's
// stored blobs keyed by state name, or nil for a fresh SEQUENCE_START;
// nextState is what the stateful instance will snapshot back onto the
// sequence afterward, or nil to leave it unchanged (SEQUENCE_END).
type Engine interface {
	Load(ctx context.Context, name string, version int64, opts LoadOptions) error
	Unload(ctx context.Context, name string, version int64) error
	Execute(ctx context.Context, name string, version int64, handle inferpool.Handle, inputs map[string]types.Tensor, priorState map[string][]byte) (outputs map[string]types.Tensor, nextState map[string][]byte, err error)
}

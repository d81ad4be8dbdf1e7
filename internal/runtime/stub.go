//go:build !llama

package runtime

import (
	"context"

	"modelserverd/internal/inferpool"
	"modelserverd/internal/statuscode"
	"modelserverd/pkg/types"
)

// stubEngine fails every call with a typed, internal error rather than
// silently returning zero-value outputs: fail-fast over mocking.
type stubEngine struct{}

// New returns the default engine. Build with -tags=llama to link a real
// go-llama.cpp-backed engine instead.
func New() Engine { return stubEngine{} }

func (stubEngine) Load(ctx context.Context, name string, version int64, opts LoadOptions) error {
	return statuscode.New(statuscode.InternalError, "no inference runtime compiled in; build with -tags=llama or supply a different Engine")
}

func (stubEngine) Unload(ctx context.Context, name string, version int64) error { return nil }

func (stubEngine) Execute(ctx context.Context, name string, version int64, handle inferpool.Handle, inputs map[string]types.Tensor, priorState map[string][]byte) (map[string]types.Tensor, map[string][]byte, error) {
	return nil, nil, statuscode.New(statuscode.InternalError, "no inference runtime compiled in; build with -tags=llama or supply a different Engine")
}

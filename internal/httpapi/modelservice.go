package httpapi

import (
	"context"
	"net/http"
	"time"

	"modelserverd/internal/metrics"
	"modelserverd/internal/stateful"
	"modelserverd/pkg/types"
)

// ModelService adapts a *stateful.ModelSet and a *metrics.Registry to the
// Service interface NewMux depends on: the mux never touches the core
// directly.
type ModelService struct {
	models    *stateful.ModelSet
	reg       *metrics.Registry
	startedAt time.Time
}

// NewModelService builds a ModelService. startedAt should be the time the
// server began accepting connections, for the /v2 status uptime field.
func NewModelService(models *stateful.ModelSet, reg *metrics.Registry, startedAt time.Time) *ModelService {
	return &ModelService{models: models, reg: reg, startedAt: startedAt}
}

func (s *ModelService) Infer(ctx context.Context, name string, version int64, req types.InferRequest, ep metrics.Endpoint) (types.InferResponse, error) {
	inst, err := s.models.Resolve(name, version)
	if err != nil {
		return types.InferResponse{}, err
	}
	return inst.Infer(ctx, req, ep)
}

func (s *ModelService) ModelMetadata(name string, version int64) (types.ModelMetadata, error) {
	inst, err := s.models.Resolve(name, version)
	if err != nil {
		return types.ModelMetadata{}, err
	}
	return inst.Metadata(), nil
}

func (s *ModelService) ModelReady(name string, version int64) (bool, error) {
	if _, err := s.models.Resolve(name, version); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ModelService) Status() types.StatusResponse {
	return types.StatusResponse{
		Models:         s.models.List(),
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
}

func (s *ModelService) MetricsHandler() http.Handler { return s.reg.Handler() }

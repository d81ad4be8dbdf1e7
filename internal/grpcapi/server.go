// Package grpcapi exposes the engine over gRPC using the standard
// grpc_health_v1 health-checking service, grounded on the vLLM simulator's
// startGRPC lifecycle (grpc.NewServer, reflection.Register, a context-driven
// Serve/Stop pair). A full KServe GRPCInferenceService/TFS PredictionService
// would need custom .proto-generated stubs, which this module cannot
// regenerate without running the Go toolchain's protoc plugins; grpc_health_v1
// ships pre-generated inside google.golang.org/grpc itself, so this is the
// real gRPC surface this build can offer without fabricating a fake module.
// The REST transport in internal/httpapi carries the full ModelInfer/Predict
// traffic; this package reports each loaded (model, version) pair's
// readiness the way a gRPC-native client or k8s probe would expect to ask.
package grpcapi

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server wraps a grpc.Server exposing grpc_health_v1, with per-model service
// names kept in sync with the underlying model set.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// New builds a Server. Overall serving status starts SERVING; callers should
// call SetModelServing after every load/retire to keep per-model statuses
// current.
func New() *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{grpcServer: gs, health: hs}
}

// modelServiceName is the gRPC health-checking "service" name for one loaded
// model version, so a client can ask "is dummy/1 ready" instead of only the
// server-wide status.
func modelServiceName(name string, version int64) string {
	return "modelserverd." + name + "." + formatVersion(version)
}

func formatVersion(v int64) string {
	if v == 0 {
		return "latest"
	}
	buf := make([]byte, 0, 8)
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		buf = append(buf, '0')
	}
	for v > 0 {
		buf = append(buf, byte('0'+v%10))
		v /= 10
	}
	if neg {
		buf = append(buf, '-')
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// SetModelServing marks (name, version)'s health-check service as SERVING or
// NOT_SERVING, called on model load/retire.
func (s *Server) SetModelServing(name string, version int64, serving bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(modelServiceName(name, version), status)
}

// Shutdown marks the server-wide status NOT_SERVING, for graceful-shutdown
// health probes to notice before the listener actually closes.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// Serve runs the gRPC server on listener until ctx is canceled, the same
// select{ctx.Done / serverErr} shutdown shape as the vLLM simulator's
// startGRPC.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	serverErr := make(chan error, 1)
	go func() { serverErr <- s.grpcServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		return nil
	case err := <-serverErr:
		return err
	}
}

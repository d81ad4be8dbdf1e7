package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"modelserverd/internal/metrics"
	"modelserverd/internal/statuscode"
	"modelserverd/pkg/types"
)

// Service is the REST layer's one collaborator: everything it needs from the
// core engine, narrowed to exactly what the routes below call, keeping the
// mux independently testable from the real stateful.ModelSet.
type Service interface {
	Infer(ctx context.Context, name string, version int64, req types.InferRequest, ep metrics.Endpoint) (types.InferResponse, error)
	ModelMetadata(name string, version int64) (types.ModelMetadata, error)
	ModelReady(name string, version int64) (bool, error)
	Status() types.StatusResponse
	MetricsHandler() http.Handler
}

// NewMux builds the full REST surface: the KServe v2-shaped
// infer/metadata/ready routes, the TensorFlow Serving v1-shaped :predict
// route, and the ambient /healthz and /metrics endpoints. Middleware stack
// is request id, real ip, recoverer, gzip, and a nosniff header, with CORS
// added only when SetCORSOptions(true, ...) was called.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(corsMiddleware())
	}

	MountSwagger(r)

	r.Route("/v2/models/{name}", func(r chi.Router) {
		r.Get("/", handleModelStatus(svc))
		r.Get("/ready", handleModelReady(svc, 0))
		r.Route("/versions/{version}", func(r chi.Router) {
			r.Get("/", handleModelMetadata(svc))
			r.Get("/ready", handleModelReadyVersioned(svc))
			r.Post("/infer", handleInfer(svc, metrics.InterfaceREST))
		})
	})

	r.Get("/v1/models/{name:[^:]+}:predict", handlePredict(svc, metrics.InterfaceREST))
	r.Get("/v1/models/{name:[^:]+}/versions/{version:[^:]+}:predict", handlePredict(svc, metrics.InterfaceREST))

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		svc.MetricsHandler().ServeHTTP(w, r)
	})

	return r
}

func parseVersion(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "version")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// handleModelStatus answers GetModelStatus (TFS) / versionless model status:
// GET /v2/models/{name}.
func handleModelStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		md, err := svc.ModelMetadata(name, 0)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, md)
	}
}

// handleModelMetadata answers GET /v2/models/{name}/versions/{version}.
func handleModelMetadata(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		version, err := parseVersion(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid version", statuscode.InvalidShape.String())
			return
		}
		md, err := svc.ModelMetadata(name, version)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, md)
	}
}

func handleModelReady(svc Service, fixedVersion int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		ready, err := svc.ModelReady(name, fixedVersion)
		writeReady(w, ready, err)
	}
}

func handleModelReadyVersioned(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		version, err := parseVersion(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid version", statuscode.InvalidShape.String())
			return
		}
		ready, err := svc.ModelReady(name, version)
		writeReady(w, ready, err)
	}
}

func writeReady(w http.ResponseWriter, ready bool, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleInfer answers POST /v2/models/{name}/versions/{version}/infer, the
// KServe ModelInfer surface over REST.
func handleInfer(svc Service, iface string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		version, err := parseVersion(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid version", statuscode.InvalidShape.String())
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.InferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body", statuscode.InvalidContentSize.String())
			return
		}
		req.Model = name
		req.Version = version

		ctx, cancel := requestContext(r)
		defer cancel()

		start := time.Now()
		lvl := requestLogLevel(r)
		resp, err := svc.Infer(ctx, name, version, req, metrics.Endpoint{API: metrics.APIKServe, Interface: iface, Method: metrics.MethodModelInfer})
		logInferOutcome(r, lvl, start, err)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, resp)
	}
}

// handlePredict answers GET /v1/models/{name}[/versions/{version}]:predict,
// the TensorFlow Serving REST Predict surface, routed to the same core
// Infer call as handleInfer — the two APIs share one engine, differing only
// in which metric label tuple the call is reported under.
func handlePredict(svc Service, iface string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var version int64
		if raw := chi.URLParam(r, "version"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid version", statuscode.InvalidShape.String())
				return
			}
			version = v
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.InferRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body", statuscode.InvalidContentSize.String())
				return
			}
		}
		req.Model = name
		req.Version = version

		ctx, cancel := requestContext(r)
		defer cancel()

		resp, err := svc.Infer(ctx, name, version, req, metrics.Endpoint{API: metrics.APITensorFlowServing, Interface: iface, Method: metrics.MethodPredict})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, resp)
	}
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	if inferTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, time.Duration(inferTimeout)*time.Second)
		prev := cancel
		cancel = func() { timeoutCancel(); prev() }
	}
	return ctx, cancel
}

func logInferOutcome(r *http.Request, lvl LogLevel, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	status := "200"
	if err != nil {
		status = strconv.Itoa(statusHTTPCode(statuscode.CodeOf(err)))
	}
	if zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path).Str("status", status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("infer end")
		return
	}
	log.Printf("infer end path=%s status=%s dur=%s err=%v", r.URL.Path, status, time.Since(start), err)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

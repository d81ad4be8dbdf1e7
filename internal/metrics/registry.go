// Package metrics implements the Metric Registry & Reporter: a Prometheus
// registry that pre-materializes the full label cartesian product for every
// enabled family at model-registration time, so a scrape never shows a
// series flicking in and out of existence. It follows a module-level idiom
// of CounterVec/HistogramVec/GaugeVec instances registered against
// client_golang, built around one Registry value per process so tests can
// build independent instances instead of relying on prometheus.MustRegister
// against the global DefaultRegisterer.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelserverd/internal/inferpool"
)

// API names, interface names, and method names are closed sets: the exact
// (api, interface, method) vocabulary spec.md §6 names for the two gRPC
// surfaces, mirrored onto their REST counterparts.
const (
	APITensorFlowServing = "TensorFlowServing"
	APIKServe            = "KServe"

	InterfaceGRPC = "gRPC"
	InterfaceREST = "REST"

	MethodPredict           = "Predict"
	MethodGetModelMetadata  = "GetModelMetadata"
	MethodGetModelStatus    = "GetModelStatus"
	MethodModelInfer        = "ModelInfer"
	MethodModelMetadata     = "ModelMetadata"
	MethodModelReady        = "ModelReady"
)

// Endpoint identifies which transport surface and method produced a given
// request, the label tuple half that the core itself does not know (the
// stateful instance only knows success/failure and timings; the transport
// layer that called it knows which API/interface/method it is).
type Endpoint struct {
	API      string
	Interface string
	Method   string
}

// versionless reports whether version is omitted from this endpoint's label
// tuple, per spec.md §3: "version absent for ModelReady / GetModelStatus" —
// those two methods answer for a model name as a whole, not one version.
func (e Endpoint) versionless() bool {
	return e.Method == MethodGetModelStatus || e.Method == MethodModelReady
}

// endpoints is the precomputed {api}×{interface}×{method} universe from
// spec.md §4.5/§4.9, restricted to the real api/method pairings (a method
// belongs to exactly one API in both the TFS and KServe vocabularies) times
// both interfaces.
var endpoints = []Endpoint{
	{APITensorFlowServing, InterfaceGRPC, MethodPredict},
	{APITensorFlowServing, InterfaceREST, MethodPredict},
	{APITensorFlowServing, InterfaceGRPC, MethodGetModelMetadata},
	{APITensorFlowServing, InterfaceREST, MethodGetModelMetadata},
	{APITensorFlowServing, InterfaceGRPC, MethodGetModelStatus},
	{APITensorFlowServing, InterfaceREST, MethodGetModelStatus},
	{APIKServe, InterfaceGRPC, MethodModelInfer},
	{APIKServe, InterfaceREST, MethodModelInfer},
	{APIKServe, InterfaceGRPC, MethodModelMetadata},
	{APIKServe, InterfaceREST, MethodModelMetadata},
	{APIKServe, InterfaceGRPC, MethodModelReady},
	{APIKServe, InterfaceREST, MethodModelReady},
}

// Registry is the enable-gated metric pipeline for one server process.
type Registry struct {
	enabled bool
	list    map[Family]bool
	reg     *prometheus.Registry
	handler http.Handler

	currentRequests       *prometheus.GaugeVec
	requestsSuccess       *prometheus.CounterVec
	requestsFail          *prometheus.CounterVec
	requestTimeUs         *prometheus.HistogramVec
	streams               *prometheus.GaugeVec
	inferenceTimeUs       *prometheus.HistogramVec
	waitForInferReqTimeUs *prometheus.HistogramVec
	inferReqQueueSize     *prometheus.GaugeVec
	inferReqActive        *prometheus.GaugeVec
}

// modelLabels is the label set the model-scoped-only families use: model
// name and version, named "name"/"version" to match spec.md §8's scenario
// text verbatim (e.g. ovms_streams{name=dummy,version=1}).
var modelLabels = []string{"name", "version"}

// endpointLabels is the label set for the three per-completion families that
// carry the full spec.md §3 tuple: api, interface, method, name, version.
var endpointLabels = []string{"api", "interface", "method", "name", "version"}

// usBuckets are histogram buckets in microseconds, wide enough to span a
// fast validation-only rejection and a slow multi-second generation call.
var usBuckets = []float64{50, 100, 250, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000}

// New builds a Registry. enable=false yields a Registry whose Handler always
// serves an empty scrape body, matching "an empty/absent monitoring block
// disables the entire registry". metricsList, when enable is true, names the
// additional (opt-in) families to activate on top of the always-on default
// set; unknown names are ignored.
func New(enable bool, metricsList []string) *Registry {
	r := &Registry{enabled: enable, list: make(map[Family]bool)}
	if !enable {
		r.handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})
		return r
	}
	for f := range defaultFamilies {
		r.list[f] = true
	}
	for _, name := range metricsList {
		f := Family(name)
		if isKnown(f) {
			r.list[f] = true
		}
	}

	r.reg = prometheus.NewRegistry()
	r.currentRequests = r.gaugeVec("ovms_current_requests", "Number of requests currently being processed by the server.", modelLabels)
	r.requestsSuccess = r.counterVec("ovms_requests_success", "Total number of successful requests.", endpointLabels)
	r.requestsFail = r.counterVec("ovms_requests_fail", "Total number of failed requests.", endpointLabels)
	r.requestTimeUs = r.histogramVec("ovms_request_time_us", "End-to-end request processing time in microseconds.", endpointLabels)
	r.streams = r.gaugeVec("ovms_streams", "Configured number of execution streams (plugin_config CPU_THROUGHPUT_STREAMS) for the model.", modelLabels)
	r.inferenceTimeUs = r.histogramVec("ovms_inference_time_us", "Model execution time in microseconds.", modelLabels)
	r.waitForInferReqTimeUs = r.histogramVec("ovms_wait_for_infer_req_time_us", "Time spent waiting for a free infer request handle, in microseconds.", modelLabels)

	if r.list[FamilyInferReqQueueSize] {
		r.inferReqQueueSize = r.gaugeVec("ovms_infer_req_queue_size", "Configured infer-request pool size (nireq) for the model.", modelLabels)
	}
	if r.list[FamilyInferReqActive] {
		r.inferReqActive = r.gaugeVec("ovms_infer_req_active", "Number of infer request handles currently checked out.", modelLabels)
	}

	r.handler = promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return r
}

func (r *Registry) gaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	r.reg.MustRegister(v)
	return v
}

func (r *Registry) counterVec(name, help string, labels []string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	r.reg.MustRegister(v)
	return v
}

func (r *Registry) histogramVec(name, help string, labels []string) *prometheus.HistogramVec {
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: usBuckets}, labels)
	r.reg.MustRegister(v)
	return v
}

// Handler serves the Prometheus text exposition for this registry, or an
// empty body when disabled.
func (r *Registry) Handler() http.Handler { return r.handler }

// Enabled reports whether the registry is collecting at all.
func (r *Registry) Enabled() bool { return r.enabled }

// RegisterModel pre-creates every label combination for name/version across
// every currently-eligible family, at their zero value, sets the streams
// gauge to streams (the plugin_config execution-stream count, independent of
// nireq), and sets the queue-size gauge to nireq (the pool's configured slot
// count). This is the "full label cartesian-product pre-registration"
// invariant: a model that has never failed a request must still show
// ovms_requests_fail{...}=0 rather than an absent series for every
// (api, interface, method) tuple it could ever be addressed through.
func (r *Registry) RegisterModel(name string, version int64, nireq, streams int) {
	if !r.enabled {
		return
	}
	labels := labelValues(name, version)
	r.currentRequests.WithLabelValues(labels...).Add(0)
	r.streams.WithLabelValues(labels...).Set(float64(streams))
	r.inferenceTimeUs.WithLabelValues(labels...)
	r.waitForInferReqTimeUs.WithLabelValues(labels...)
	if r.inferReqQueueSize != nil {
		r.inferReqQueueSize.WithLabelValues(labels...).Set(float64(nireq))
	}
	if r.inferReqActive != nil {
		r.inferReqActive.WithLabelValues(labels...).Set(0)
	}

	versionStr := strconv.FormatInt(version, 10)
	for _, ep := range endpoints {
		v := versionStr
		if ep.versionless() {
			v = ""
		}
		epLabels := []string{ep.API, ep.Interface, ep.Method, name, v}
		r.requestsSuccess.WithLabelValues(epLabels...).Add(0)
		r.requestsFail.WithLabelValues(epLabels...).Add(0)
		r.requestTimeUs.WithLabelValues(epLabels...)
	}
}

func labelValues(name string, version int64) []string {
	return []string{name, strconv.FormatInt(version, 10)}
}

// Reporter is a per-model handle into a Registry, so the stateful instance
// never has to repeat (name, version) at every call site.
type Reporter struct {
	reg     *Registry
	name    string
	version int64
	labels  []string
}

// ReporterFor builds a Reporter scoped to one model. Call RegisterModel first.
func (r *Registry) ReporterFor(name string, version int64) *Reporter {
	return &Reporter{reg: r, name: name, version: version, labels: labelValues(name, version)}
}

func (rp *Reporter) IncCurrentRequests() {
	if !rp.reg.enabled {
		return
	}
	rp.reg.currentRequests.WithLabelValues(rp.labels...).Inc()
}

func (rp *Reporter) DecCurrentRequests() {
	if !rp.reg.enabled {
		return
	}
	rp.reg.currentRequests.WithLabelValues(rp.labels...).Dec()
}

// endpointLabelValues resolves the 5-tuple label set for one endpoint,
// honoring the version-absent rule for GetModelStatus/ModelReady.
func (rp *Reporter) endpointLabelValues(ep Endpoint) []string {
	version := rp.labels[1]
	if ep.versionless() {
		version = ""
	}
	return []string{ep.API, ep.Interface, ep.Method, rp.name, version}
}

// ObserveRequest increments ovms_requests_success or ovms_requests_fail and
// observes ovms_request_time_us for the given endpoint, the per-completion
// metric commit from spec.md §4.2 step 11.
func (rp *Reporter) ObserveRequest(ep Endpoint, success bool, us float64) {
	if !rp.reg.enabled {
		return
	}
	labels := rp.endpointLabelValues(ep)
	if success {
		rp.reg.requestsSuccess.WithLabelValues(labels...).Inc()
	} else {
		rp.reg.requestsFail.WithLabelValues(labels...).Inc()
	}
	rp.reg.requestTimeUs.WithLabelValues(labels...).Observe(us)
}

func (rp *Reporter) ObserveInference(us float64) {
	if !rp.reg.enabled {
		return
	}
	rp.reg.inferenceTimeUs.WithLabelValues(rp.labels...).Observe(us)
}

func (rp *Reporter) ObserveWaitForInferReq(us float64) {
	if !rp.reg.enabled {
		return
	}
	rp.reg.waitForInferReqTimeUs.WithLabelValues(rp.labels...).Observe(us)
}

// ActiveGauge adapts this Reporter's ovms_infer_req_active series to
// inferpool.ActiveGauge, so the pool's scoped Acquire/Release can drive it
// directly without inferpool importing the metrics package.
func (rp *Reporter) ActiveGauge() inferpool.ActiveGauge {
	if !rp.reg.enabled || rp.reg.inferReqActive == nil {
		return nil
	}
	return rp.reg.inferReqActive.WithLabelValues(rp.labels...)
}

package metrics

// Family is one of the exact metric names this engine may expose. The set is
// closed: seven families are eligible by default once the registry is
// enabled, two (queue size, active count) are opt-in only and must be named
// explicitly in metrics_list.
type Family string

const (
	FamilyCurrentRequests      Family = "ovms_current_requests"
	FamilyRequestsSuccess      Family = "ovms_requests_success"
	FamilyRequestsFail         Family = "ovms_requests_fail"
	FamilyRequestTimeUs        Family = "ovms_request_time_us"
	FamilyStreams              Family = "ovms_streams"
	FamilyInferenceTimeUs      Family = "ovms_inference_time_us"
	FamilyWaitForInferReqTimeUs Family = "ovms_wait_for_infer_req_time_us"
	FamilyInferReqQueueSize    Family = "ovms_infer_req_queue_size"
	FamilyInferReqActive       Family = "ovms_infer_req_active"
)

// defaultFamilies are eligible as soon as the registry is enabled, without
// needing to be named in metrics_list.
var defaultFamilies = map[Family]bool{
	FamilyCurrentRequests:       true,
	FamilyRequestsSuccess:       true,
	FamilyRequestsFail:          true,
	FamilyRequestTimeUs:         true,
	FamilyStreams:               true,
	FamilyInferenceTimeUs:       true,
	FamilyWaitForInferReqTimeUs: true,
}

// additionalFamilies require an explicit entry in metrics_list even though
// the registry is otherwise enabled.
var additionalFamilies = map[Family]bool{
	FamilyInferReqQueueSize: true,
	FamilyInferReqActive:    true,
}

// allFamilies is the closed universe used to validate metrics_list entries.
var allFamilies = func() map[Family]bool {
	m := make(map[Family]bool, len(defaultFamilies)+len(additionalFamilies))
	for f := range defaultFamilies {
		m[f] = true
	}
	for f := range additionalFamilies {
		m[f] = true
	}
	return m
}()

func isDefault(f Family) bool { return defaultFamilies[f] }
func isKnown(f Family) bool   { return allFamilies[f] }

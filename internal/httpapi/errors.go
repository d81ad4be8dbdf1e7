package httpapi

import (
	"encoding/json"
	"net/http"

	"modelserverd/internal/statuscode"
	"modelserverd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusHTTPCode maps a closed statuscode.Code to the HTTP status spec.md §6
// assigns it: client errors are 400s, a missing model/version is 404,
// resource/transient errors are 503 (the caller may retry) except an
// exceeded deadline, which is 504, and internal errors are 500.
func statusHTTPCode(code statuscode.Code) int {
	switch code {
	case statuscode.ModelMissing, statuscode.ModelVersionMissing:
		return http.StatusNotFound
	case statuscode.MaxSequenceNumberReached, statuscode.ModelNotReady, statuscode.InferHandleTimeout:
		return http.StatusServiceUnavailable
	case statuscode.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case statuscode.InternalError:
		return http.StatusInternalServerError
	default:
		if code.Kind() == statuscode.KindClient {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// writeErr writes the closed ErrorResponse payload for err, resolving its
// statuscode.Code to both the wire "status" string and the HTTP status line.
func writeErr(w http.ResponseWriter, err error) {
	code := statuscode.CodeOf(err)
	status := statusHTTPCode(code)
	writeJSONError(w, status, err.Error(), code.String())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg, statusName string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Status: statusName, Code: status})
}

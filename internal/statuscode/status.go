// Package statuscode defines the closed set of outcomes the core engine can
// return and the error kind each belongs to.
package statuscode

import "fmt"

// Code is a closed enum of outcomes covering every way an inference request
// can fail or succeed. The REST transport maps these to HTTP status codes
// in one table (statusHTTPCode in internal/httpapi); the gRPC transport only
// serves health checks and does not map them.
type Code int

const (
	OK Code = iota

	// client errors — reported verbatim, never retried internally.
	InvalidSequenceControlInput
	SequenceIDNotProvided
	SequenceAlreadyExists
	SequenceMissing
	SequenceIDBadType
	SequenceControlInputBadType
	InvalidShape
	InvalidNoOfShapeDimensions
	SpecialInputNoTensorShape
	InvalidNoOfInputs
	InvalidPrecision
	InvalidContentSize
	ModelMissing
	ModelVersionMissing

	// resource errors — reported verbatim, no retry.
	MaxSequenceNumberReached

	// transient errors — not retried by the core itself.
	DeadlineExceeded
	ModelNotReady
	InferHandleTimeout

	// internal errors — abort, release, roll back.
	InternalError
)

// Kind classifies a Code for the purposes of the error-handling contract:
// client and resource errors are verbatim-reportable, transient errors are
// the transport's call on whether to retry, internal errors always abort.
type Kind int

const (
	KindOK Kind = iota
	KindClient
	KindResource
	KindTransient
	KindInternal
)

func (c Code) Kind() Kind {
	switch c {
	case OK:
		return KindOK
	case MaxSequenceNumberReached:
		return KindResource
	case DeadlineExceeded, ModelNotReady, InferHandleTimeout:
		return KindTransient
	case InternalError:
		return KindInternal
	default:
		return KindClient
	}
}

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case InvalidSequenceControlInput:
		return "INVALID_SEQUENCE_CONTROL_INPUT"
	case SequenceIDNotProvided:
		return "SEQUENCE_ID_NOT_PROVIDED"
	case SequenceAlreadyExists:
		return "SEQUENCE_ALREADY_EXISTS"
	case SequenceMissing:
		return "SEQUENCE_MISSING"
	case SequenceIDBadType:
		return "SEQUENCE_ID_BAD_TYPE"
	case SequenceControlInputBadType:
		return "SEQUENCE_CONTROL_INPUT_BAD_TYPE"
	case InvalidShape:
		return "INVALID_SHAPE"
	case InvalidNoOfShapeDimensions:
		return "INVALID_NO_OF_SHAPE_DIMENSIONS"
	case SpecialInputNoTensorShape:
		return "SPECIAL_INPUT_NO_TENSOR_SHAPE"
	case InvalidNoOfInputs:
		return "INVALID_NO_OF_INPUTS"
	case InvalidPrecision:
		return "INVALID_PRECISION"
	case InvalidContentSize:
		return "INVALID_CONTENT_SIZE"
	case ModelMissing:
		return "MODEL_MISSING"
	case ModelVersionMissing:
		return "MODEL_VERSION_MISSING"
	case MaxSequenceNumberReached:
		return "MAX_SEQUENCE_NUMBER_REACHED"
	case DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	case ModelNotReady:
		return "MODEL_NOT_READY"
	case InferHandleTimeout:
		return "INFER_HANDLE_TIMEOUT"
	case InternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is a typed error carrying a Code: a plain struct, no sentinel vars,
// and a paired IsXxx helper below for callers that only care about one code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Message)
}

// New builds an *Error for the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, returning InternalError for any error
// that did not originate in this package — callers should treat that as a
// bug, not a status to surface raw.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if se, ok := err.(*Error); ok {
		return se.Code
	}
	return InternalError
}

func IsClient(err error) bool    { return CodeOf(err).Kind() == KindClient }
func IsResource(err error) bool  { return CodeOf(err).Kind() == KindResource }
func IsTransient(err error) bool { return CodeOf(err).Kind() == KindTransient }
func IsInternal(err error) bool  { return CodeOf(err).Kind() == KindInternal }

// IsSequenceMissing reports whether err is exactly a SequenceMissing status,
// as distinct from the rest of the client-error bucket.
func IsSequenceMissing(err error) bool { return CodeOf(err) == SequenceMissing }

// IsModelMissing reports whether err is exactly a ModelMissing status.
func IsModelMissing(err error) bool { return CodeOf(err) == ModelMissing }

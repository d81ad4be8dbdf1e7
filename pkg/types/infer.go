package types

// SequenceControlInput is the closed set of control codes a client may pass
// alongside a sequence id. NoControlInput (0) means "continue an existing
// sequence"; SequenceStart opens one; SequenceEnd closes it after this request.
type SequenceControlInput uint32

const (
	NoControlInput SequenceControlInput = 0
	SequenceStart  SequenceControlInput = 1
	SequenceEnd    SequenceControlInput = 2
)

func (c SequenceControlInput) String() string {
	switch c {
	case SequenceStart:
		return "SEQUENCE_START"
	case SequenceEnd:
		return "SEQUENCE_END"
	default:
		return "NO_CONTROL_INPUT"
	}
}

// InferRequest represents a single stateful inference call.
type InferRequest struct {
	// Model name as registered with the server.
	// example: dialog-state-tracker
	Model string `json:"model" example:"dialog-state-tracker"`
	// Model version; zero selects the latest.
	// example: 1
	Version int64 `json:"version,omitempty" example:"1"`
	// Sequence id. Required unless SequenceControl is SEQUENCE_START, in which
	// case a value of 0 requests server-generated id assignment.
	// example: 42
	SequenceID uint64 `json:"sequence_id,omitempty" example:"42"`
	// SequenceControl selects START/END/NO_CONTROL_INPUT semantics.
	// example: 0
	SequenceControl SequenceControlInput `json:"sequence_control_input,omitempty" example:"0"`
	// Inputs carries the named input tensors for this call. The core engine
	// checks their count, shape, precision and element count against the
	// model's declared inputs and otherwise passes them to the runtime as is.
	Inputs map[string]Tensor `json:"inputs"`
}

// Tensor is a minimal named, shaped array — a deliberately simplified stand-in
// for the real TensorProto wire representation, sufficient to drive the
// sequence-id / control-input extraction rules without reimplementing the
// full tensor codec.
type Tensor struct {
	Shape []int64   `json:"shape"`
	Data  []float64 `json:"data,omitempty"`
	UData []uint64  `json:"udata,omitempty"`
}

// InferResponse carries the model outputs plus the server-resolved sequence id,
// which is always appended so clients that requested server-side id
// assignment on SEQUENCE_START can learn it.
type InferResponse struct {
	Outputs    map[string]Tensor `json:"outputs"`
	SequenceID uint64            `json:"sequence_id" example:"42"`
}

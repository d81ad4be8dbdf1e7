// Package validate implements the request validator: a single pure function
// that checks a request against a resolved model's declared input metadata
// and returns, in precedence order, the first violated rule. The two special
// tensors (sequence_id, sequence_control_input) are extracted and checked
// first, then everything else gets a full shape/precision/count check.
package validate

import (
	"modelserverd/internal/statuscode"
	"modelserverd/pkg/types"
)

// InputInfo is one declared, non-special model input.
type InputInfo struct {
	Name      string
	Shape     []int64 // a dimension of -1 means "any size accepted here"
	Precision Precision
}

type Precision int

const (
	PrecisionFloat Precision = iota
	PrecisionUint
)

// Resolution carries the outcome of looking the model up by name/version,
// kept separate from the model metadata itself so ModelMissing and
// ModelVersionMissing can be reported before anything else, matching the
// precedence order in the validator contract.
type Resolution struct {
	ModelFound   bool
	VersionFound bool
	Inputs       []InputInfo
}

// Validate checks req against a resolved model. Precedence: MODEL_MISSING,
// MODEL_VERSION_MISSING, special-key errors, INVALID_NO_OF_INPUTS,
// INVALID_SHAPE, INVALID_PRECISION, INVALID_CONTENT_SIZE.
func Validate(req types.InferRequest, res Resolution) error {
	if !res.ModelFound {
		return statuscode.New(statuscode.ModelMissing, "model %q not found", req.Model)
	}
	if !res.VersionFound {
		return statuscode.New(statuscode.ModelVersionMissing, "model %q has no version %d", req.Model, req.Version)
	}

	if err := validateSpecialKeys(req); err != nil {
		return err
	}

	declared := res.Inputs
	if len(req.Inputs) != len(declared) {
		return statuscode.New(statuscode.InvalidNoOfInputs, "expected %d inputs, got %d", len(declared), len(req.Inputs))
	}

	for _, want := range declared {
		got, ok := req.Inputs[want.Name]
		if !ok {
			return statuscode.New(statuscode.InvalidNoOfInputs, "missing declared input %q", want.Name)
		}
		if err := validateShape(want, got); err != nil {
			return err
		}
		if err := validatePrecision(want, got); err != nil {
			return err
		}
		if err := validateContentSize(want, got); err != nil {
			return err
		}
	}
	return nil
}

// validateSpecialKeys mirrors extractSequenceId/extractSequenceControlInput:
// the control code must belong to the closed set, and a nonzero id is
// required unless the control code is SEQUENCE_START.
func validateSpecialKeys(req types.InferRequest) error {
	switch req.SequenceControl {
	case types.NoControlInput, types.SequenceStart, types.SequenceEnd:
	default:
		return statuscode.New(statuscode.InvalidSequenceControlInput, "unknown control input %d", req.SequenceControl)
	}
	if req.SequenceControl != types.SequenceStart && req.SequenceID == 0 {
		return statuscode.New(statuscode.SequenceIDNotProvided, "control=%s requires a nonzero sequence_id", req.SequenceControl)
	}
	return nil
}

func validateShape(want InputInfo, got types.Tensor) error {
	if len(want.Shape) != len(got.Shape) {
		return statuscode.New(statuscode.InvalidNoOfShapeDimensions, "input %q: expected %d dims, got %d", want.Name, len(want.Shape), len(got.Shape))
	}
	for i, dim := range want.Shape {
		if dim == -1 {
			continue
		}
		if got.Shape[i] != dim {
			return statuscode.New(statuscode.InvalidShape, "input %q: dim %d expected %d, got %d", want.Name, i, dim, got.Shape[i])
		}
	}
	return nil
}

func validatePrecision(want InputInfo, got types.Tensor) error {
	switch want.Precision {
	case PrecisionFloat:
		if len(got.Data) == 0 && len(got.UData) > 0 {
			return statuscode.New(statuscode.InvalidPrecision, "input %q: expected floating-point data", want.Name)
		}
	case PrecisionUint:
		if len(got.UData) == 0 && len(got.Data) > 0 {
			return statuscode.New(statuscode.InvalidPrecision, "input %q: expected unsigned-integer data", want.Name)
		}
	}
	return nil
}

func validateContentSize(want InputInfo, got types.Tensor) error {
	expected := int64(1)
	for i, d := range want.Shape {
		if d == -1 {
			d = got.Shape[i]
		}
		expected *= d
	}
	n := int64(len(got.Data) + len(got.UData))
	if n != expected {
		return statuscode.New(statuscode.InvalidContentSize, "input %q: expected %d elements, got %d", want.Name, expected, n)
	}
	return nil
}

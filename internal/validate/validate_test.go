package validate

import (
	"testing"

	"modelserverd/internal/statuscode"
	"modelserverd/pkg/types"
)

func okResolution() Resolution {
	return Resolution{
		ModelFound:   true,
		VersionFound: true,
		Inputs: []InputInfo{
			{Name: "prompt", Shape: []int64{1, -1}, Precision: PrecisionFloat},
		},
	}
}

func TestModelMissingTakesPrecedence(t *testing.T) {
	req := types.InferRequest{Model: "ghost"}
	err := Validate(req, Resolution{ModelFound: false})
	if statuscode.CodeOf(err) != statuscode.ModelMissing {
		t.Fatalf("expected MODEL_MISSING, got %v", statuscode.CodeOf(err))
	}
}

func TestModelVersionMissing(t *testing.T) {
	req := types.InferRequest{Model: "demo", Version: 9}
	err := Validate(req, Resolution{ModelFound: true, VersionFound: false})
	if statuscode.CodeOf(err) != statuscode.ModelVersionMissing {
		t.Fatalf("expected MODEL_VERSION_MISSING, got %v", statuscode.CodeOf(err))
	}
}

func TestInvalidSequenceControlInput(t *testing.T) {
	req := types.InferRequest{Model: "demo", SequenceControl: types.SequenceControlInput(99)}
	err := Validate(req, okResolution())
	if statuscode.CodeOf(err) != statuscode.InvalidSequenceControlInput {
		t.Fatalf("expected INVALID_SEQUENCE_CONTROL_INPUT, got %v", statuscode.CodeOf(err))
	}
}

func TestSequenceIDRequiredUnlessStart(t *testing.T) {
	req := types.InferRequest{Model: "demo", SequenceControl: types.NoControlInput, SequenceID: 0}
	err := Validate(req, okResolution())
	if statuscode.CodeOf(err) != statuscode.SequenceIDNotProvided {
		t.Fatalf("expected SEQUENCE_ID_NOT_PROVIDED, got %v", statuscode.CodeOf(err))
	}
}

func TestStartAllowsZeroSequenceID(t *testing.T) {
	req := types.InferRequest{
		Model:           "demo",
		SequenceControl: types.SequenceStart,
		SequenceID:      0,
		Inputs: map[string]types.Tensor{
			"prompt": {Shape: []int64{1, 3}, Data: []float64{1, 2, 3}},
		},
	}
	if err := Validate(req, okResolution()); err != nil {
		t.Fatalf("unexpected error for START with id=0: %v", err)
	}
}

func TestInvalidNoOfInputs(t *testing.T) {
	req := types.InferRequest{Model: "demo", SequenceControl: types.SequenceStart, Inputs: map[string]types.Tensor{}}
	err := Validate(req, okResolution())
	if statuscode.CodeOf(err) != statuscode.InvalidNoOfInputs {
		t.Fatalf("expected INVALID_NO_OF_INPUTS, got %v", statuscode.CodeOf(err))
	}
}

func TestInvalidShapeDimensionMismatch(t *testing.T) {
	req := types.InferRequest{
		Model:           "demo",
		SequenceControl: types.SequenceStart,
		Inputs: map[string]types.Tensor{
			"prompt": {Shape: []int64{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}},
		},
	}
	err := Validate(req, okResolution())
	if statuscode.CodeOf(err) != statuscode.InvalidShape {
		t.Fatalf("expected INVALID_SHAPE, got %v", statuscode.CodeOf(err))
	}
}

func TestInvalidContentSize(t *testing.T) {
	req := types.InferRequest{
		Model:           "demo",
		SequenceControl: types.SequenceStart,
		Inputs: map[string]types.Tensor{
			"prompt": {Shape: []int64{1, 3}, Data: []float64{1, 2}},
		},
	}
	err := Validate(req, okResolution())
	if statuscode.CodeOf(err) != statuscode.InvalidContentSize {
		t.Fatalf("expected INVALID_CONTENT_SIZE, got %v", statuscode.CodeOf(err))
	}
}

func TestSpecialInputsExcludedFromDeclaredCount(t *testing.T) {
	// sequence_id/sequence_control_input never appear in req.Inputs in this
	// engine's simplified wire representation (they are dedicated struct
	// fields), so a request with exactly the declared inputs must pass.
	req := types.InferRequest{
		Model:           "demo",
		SequenceControl: types.NoControlInput,
		SequenceID:      1,
		Inputs: map[string]types.Tensor{
			"prompt": {Shape: []int64{1, 2}, Data: []float64{1, 2}},
		},
	}
	if err := Validate(req, okResolution()); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

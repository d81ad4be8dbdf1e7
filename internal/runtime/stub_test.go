package runtime

import (
	"context"
	"testing"

	"modelserverd/internal/statuscode"
)

func TestStubEngineFailsFast(t *testing.T) {
	e := New()
	if err := e.Load(context.Background(), "demo", 1, LoadOptions{BasePath: "/models/demo"}); statuscode.CodeOf(err) != statuscode.InternalError {
		t.Fatalf("expected INTERNAL_ERROR from stub Load, got %v", statuscode.CodeOf(err))
	}
	_, _, err := e.Execute(context.Background(), "demo", 1, 0, nil, nil)
	if statuscode.CodeOf(err) != statuscode.InternalError {
		t.Fatalf("expected INTERNAL_ERROR from stub Execute, got %v", statuscode.CodeOf(err))
	}
}

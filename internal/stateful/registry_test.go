package stateful

import (
	"context"
	"testing"

	"modelserverd/internal/metrics"
	"modelserverd/internal/runtime"
	"modelserverd/internal/statuscode"
	"modelserverd/internal/validate"
)

func newTestModelSetInstance(t *testing.T, name string, version int64) *Instance {
	t.Helper()
	eng := newFakeEngine()
	reg := metrics.New(true, nil)
	inst, err := New(context.Background(), name, version, Config{
		Nireq:             1,
		MaxSequenceNumber: 10,
		DeclaredInputs:    []validate.InputInfo{{Name: "in", Shape: []int64{-1}, Precision: validate.PrecisionFloat}},
	}, runtime.LoadOptions{}, eng, reg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return inst
}

func TestModelSetResolveLatestVersion(t *testing.T) {
	s := NewModelSet()
	s.Put(newTestModelSetInstance(t, "dummy", 1))
	s.Put(newTestModelSetInstance(t, "dummy", 2))

	inst, err := s.Resolve("dummy", 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if inst.Version != 2 {
		t.Fatalf("expected latest version 2, got %d", inst.Version)
	}
}

func TestModelSetResolveMissingModel(t *testing.T) {
	s := NewModelSet()
	_, err := s.Resolve("ghost", 0)
	if statuscode.CodeOf(err) != statuscode.ModelMissing {
		t.Fatalf("expected MODEL_MISSING, got %v", err)
	}
}

func TestModelSetResolveMissingVersion(t *testing.T) {
	s := NewModelSet()
	s.Put(newTestModelSetInstance(t, "dummy", 1))
	_, err := s.Resolve("dummy", 5)
	if statuscode.CodeOf(err) != statuscode.ModelVersionMissing {
		t.Fatalf("expected MODEL_VERSION_MISSING, got %v", err)
	}
}

func TestModelSetListSortedByNameThenVersion(t *testing.T) {
	s := NewModelSet()
	s.Put(newTestModelSetInstance(t, "b", 1))
	s.Put(newTestModelSetInstance(t, "a", 2))
	s.Put(newTestModelSetInstance(t, "a", 1))

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	if list[0].Name != "a" || list[0].Version != 1 {
		t.Fatalf("expected a/1 first, got %+v", list[0])
	}
	if list[1].Name != "a" || list[1].Version != 2 {
		t.Fatalf("expected a/2 second, got %+v", list[1])
	}
	if list[2].Name != "b" {
		t.Fatalf("expected b third, got %+v", list[2])
	}
}

func TestModelSetRemove(t *testing.T) {
	s := NewModelSet()
	s.Put(newTestModelSetInstance(t, "dummy", 1))
	s.Remove("dummy", 1)
	if _, err := s.Resolve("dummy", 1); statuscode.CodeOf(err) != statuscode.ModelMissing {
		t.Fatalf("expected MODEL_MISSING after Remove, got %v", err)
	}
}

func TestModelSetEachVisitsAllInstances(t *testing.T) {
	s := NewModelSet()
	s.Put(newTestModelSetInstance(t, "a", 1))
	s.Put(newTestModelSetInstance(t, "b", 1))
	seen := map[string]bool{}
	s.Each(func(inst *Instance) { seen[inst.Name] = true })
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected Each to visit both instances, got %v", seen)
	}
}

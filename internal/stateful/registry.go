package stateful

import (
	"sort"
	"sync"

	"modelserverd/internal/statuscode"
	"modelserverd/pkg/types"
)

// ModelSet holds every loaded Instance, keyed by name and version, behind an
// RWMutex-guarded map.
type ModelSet struct {
	mu        sync.RWMutex
	instances map[types.ModelKey]*Instance
	latest    map[string]int64
}

func NewModelSet() *ModelSet {
	return &ModelSet{instances: make(map[types.ModelKey]*Instance), latest: make(map[string]int64)}
}

// Put installs or replaces an instance, updating the "latest version" index
// used when a request omits a version number.
func (s *ModelSet) Put(inst *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := types.ModelKey{Name: inst.Name, Version: inst.Version}
	s.instances[key] = inst
	if inst.Version > s.latest[inst.Name] {
		s.latest[inst.Name] = inst.Version
	}
}

// Remove drops an instance from the set. Callers are responsible for having
// already Retire()d it.
func (s *ModelSet) Remove(name string, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, types.ModelKey{Name: name, Version: version})
	if s.latest[name] != version {
		return
	}
	delete(s.latest, name)
	for k := range s.instances {
		if k.Name == name && k.Version > s.latest[name] {
			s.latest[name] = k.Version
		}
	}
}

// Resolve looks up name/version, resolving version=0 to the latest loaded
// version. Returns ModelMissing or ModelVersionMissing on failure, in that
// precedence order, matching the Request Validator contract.
func (s *ModelSet) Resolve(name string, version int64) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		v, ok := s.latest[name]
		if !ok {
			return nil, statuscode.New(statuscode.ModelMissing, "model %q not found", name)
		}
		version = v
	}
	inst, ok := s.instances[types.ModelKey{Name: name, Version: version}]
	if !ok {
		if _, anyVersion := s.latest[name]; anyVersion {
			return nil, statuscode.New(statuscode.ModelVersionMissing, "model %q has no version %d", name, version)
		}
		return nil, statuscode.New(statuscode.ModelMissing, "model %q not found", name)
	}
	return inst, nil
}

// List returns metadata for every loaded instance, sorted by name then
// version, for the /status surface.
func (s *ModelSet) List() []types.ModelMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ModelMetadata, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst.Metadata())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Each calls fn for every loaded instance, outside the set's lock; the
// server uses it to Retire every instance on shutdown.
func (s *ModelSet) Each(fn func(*Instance)) {
	s.mu.RLock()
	insts := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		insts = append(insts, inst)
	}
	s.mu.RUnlock()
	for _, inst := range insts {
		fn(inst)
	}
}

package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AdapterRegistry resolves backend names to adapters. Resolution is total:
// unknown or empty names fall back to the default backend.
type AdapterRegistry struct {
	mu          sync.RWMutex
	adapters    map[string]BackendAdapter
	aliases     map[string]string
	defaultName string
}

func NewAdapterRegistry(defaultName string) *AdapterRegistry {
	name := normalizeBackendName(defaultName)
	if name == "" {
		name = BackendPrimary
	}
	return &AdapterRegistry{
		adapters:    make(map[string]BackendAdapter),
		aliases:     make(map[string]string),
		defaultName: name,
	}
}

func (r *AdapterRegistry) Register(adapter BackendAdapter) error {
	if r == nil {
		return fmt.Errorf("core: adapter registry is nil")
	}
	if adapter == nil {
		return fmt.Errorf("core: backend adapter is nil")
	}
	name := normalizeBackendName(adapter.Name())
	if name == "" {
		return fmt.Errorf("core: backend adapter name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("core: backend adapter already registered: %s", name)
	}
	r.adapters[name] = adapter
	return nil
}

func (r *AdapterRegistry) Alias(alias string, target string) error {
	if r == nil {
		return fmt.Errorf("core: adapter registry is nil")
	}
	alias = normalizeBackendName(alias)
	target = normalizeBackendName(target)
	if alias == "" || target == "" {
		return fmt.Errorf("core: alias and target are required")
	}
	r.mu.Lock()
	r.aliases[alias] = target
	r.mu.Unlock()
	return nil
}

// ResolveName returns the canonical backend name a selector resolves to.
func (r *AdapterRegistry) ResolveName(name string) string {
	if r == nil {
		return BackendPrimary
	}
	key := normalizeBackendName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	if _, ok := r.adapters[key]; ok {
		return key
	}
	return r.defaultName
}

// Resolve fails only when the default backend was never registered.
func (r *AdapterRegistry) Resolve(name string) (BackendAdapter, error) {
	if r == nil {
		return nil, fmt.Errorf("core: adapter registry is nil")
	}
	resolved := r.ResolveName(name)
	r.mu.RLock()
	adapter, ok := r.adapters[resolved]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("core: default backend adapter %q is not registered", resolved)
	}
	return adapter, nil
}

func (r *AdapterRegistry) Get(name string) (BackendAdapter, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	adapter, ok := r.adapters[normalizeBackendName(name)]
	r.mu.RUnlock()
	return adapter, ok
}

func (r *AdapterRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func normalizeBackendName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

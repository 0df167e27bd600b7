package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownRule is returned when a selector names a rule that is not registered.
var ErrUnknownRule = errors.New("rule not found")

// Registry maps rule IDs to factories. Rules are constructed fresh on every
// List/Resolve so no state leaks between runs.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default holds the built-in checks, registered from init() in package checks.
var Default = NewRegistry()

func Register(f Factory) {
	Default.Register(f)
}

func List() []Rule {
	return Default.List()
}

func Resolve(ids []string) ([]Rule, error) {
	return Default.Resolve(ids)
}

func (r *Registry) Register(f Factory) {
	if f == nil {
		panic("rules: nil factory")
	}
	id := f().ID()
	if strings.TrimSpace(id) == "" {
		panic("rules: rule with empty ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		panic(fmt.Sprintf("rule %s already registered", id))
	}
	r.factories[id] = f
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// List returns one fresh instance of every registered rule, sorted by ID.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Rule, 0, len(ids))
	for _, id := range ids {
		out = append(out, &ScopeWrapper{Rule: r.factories[id]()})
	}
	return out
}

// Resolve returns fresh instances for ids in the given order. Entries may be
// comma-separated. Empty ids selects every registered rule. Each rule is
// wrapped in a ScopeWrapper.
func (r *Registry) Resolve(ids []string) ([]Rule, error) {
	ids = splitIDs(ids)
	if len(ids) == 0 {
		return r.List(), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	selected := make([]Rule, 0, len(ids))
	for _, id := range ids {
		f, ok := r.factories[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRule, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, &ScopeWrapper{Rule: f()})
	}
	return selected, nil
}

func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

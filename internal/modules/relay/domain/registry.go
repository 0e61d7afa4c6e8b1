package domain

import "fmt"

// Registry maps command names to descriptors. It is built once and never
// mutated, so it is safe for concurrent use without locking.
type Registry struct {
	byName map[string]CommandDescriptor
	order  []string
}

// NewRegistry builds a registry from descriptors in declaration order.
func NewRegistry(descriptors []CommandDescriptor) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]CommandDescriptor, len(descriptors)),
		order:  make([]string, 0, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Name == "" {
			return nil, ErrEmptyCommandName
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, d.Name)
		}
		r.byName[d.Name] = d.clone()
		r.order = append(r.order, d.Name)
	}

	return r, nil
}

// Resolve returns the descriptor for name. Matching is exact and case-sensitive.
// Resolving on a registry that was never built is a programming error.
func (r *Registry) Resolve(name string) (CommandDescriptor, bool) {
	if r == nil || r.byName == nil {
		panic("domain: command registry resolved before population")
	}
	d, ok := r.byName[name]
	if !ok {
		return CommandDescriptor{}, false
	}
	return d.clone(), true
}

// Descriptors returns all descriptors in declaration order.
func (r *Registry) Descriptors() []CommandDescriptor {
	result := make([]CommandDescriptor, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name].clone())
	}
	return result
}

// Names returns all command names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of commands.
func (r *Registry) Len() int {
	return len(r.order)
}

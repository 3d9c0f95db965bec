// Package registry implements the system registry (spec.md §4.11):
// descriptors with named dependencies, topological resolution via
// three-color DFS, and instantiation against a shared context.
//
// Grounded on the teacher's (Voskan/arena-cache) pkg/config.go pattern of a
// single validated container built up before use; generalized from a fixed
// field set to a name-keyed map of descriptors.
//
// © 2025 corert authors. MIT License.
package registry

import "sort"

// Descriptor describes one system: a stable name, its named dependencies,
// a factory closure invoked with the shared context C, and an optional
// description.
type Descriptor[C any] struct {
	Name        string
	Deps        []string
	Factory     func(ctx C) (any, error)
	Description string
}

// Resolution is the result of Resolve: either a valid topological Order, or
// a non-empty Missing/Cycle error set (never both populated and
// non-empty-Order simultaneously).
type Resolution struct {
	Order   []string
	Missing []string
	Cycle   []string
}

// HasErrors reports whether resolution failed.
func (r Resolution) HasErrors() bool {
	return len(r.Missing) > 0 || len(r.Cycle) > 0
}

// Registry holds descriptors in an insertion-ordered, name-keyed map.
type Registry[C any] struct {
	order       []string
	descriptors map[string]Descriptor[C]
}

// New constructs an empty Registry.
func New[C any]() *Registry[C] {
	return &Registry[C]{descriptors: make(map[string]Descriptor[C])}
}

// Register adds d to the registry. It fails if Name is empty, Factory is
// nil, or a descriptor with the same name is already registered.
func (r *Registry[C]) Register(d Descriptor[C]) error {
	if d.Name == "" || d.Factory == nil {
		return ErrInvalidDescriptor
	}
	if _, exists := r.descriptors[d.Name]; exists {
		return ErrAlreadyRegistered
	}
	r.descriptors[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// color states for the three-color DFS cycle-detection marking.
const (
	white = iota
	gray
	black
)

// Resolve performs a depth-first topological sort over the dependency graph
// rooted at requestedNames. When requestedNames is empty, every registered
// descriptor is requested, in name-sorted order (spec.md §4.11). Missing
// dependency names and any discovered cycle are reported in the returned
// Resolution; Order is populated only when both are empty.
func (r *Registry[C]) Resolve(requestedNames []string) Resolution {
	roots := requestedNames
	if len(roots) == 0 {
		roots = make([]string, len(r.order))
		copy(roots, r.order)
		sort.Strings(roots)
	}

	color := make(map[string]int, len(r.descriptors))
	var missing []string
	missingSeen := make(map[string]bool)
	var order []string
	var cycle []string
	var stack []string

	var visit func(name string) bool // true means "stop: cycle found"
	visit = func(name string) bool {
		switch color[name] {
		case black:
			return false
		case gray:
			idx := -1
			for i, s := range stack {
				if s == name {
					idx = i
					break
				}
			}
			cyc := append([]string{}, stack[idx:]...)
			cyc = append(cyc, name)
			cycle = cyc
			return true
		}

		desc, ok := r.descriptors[name]
		if !ok {
			if !missingSeen[name] {
				missingSeen[name] = true
				missing = append(missing, name)
			}
			color[name] = black
			return false
		}

		color[name] = gray
		stack = append(stack, name)
		for _, dep := range desc.Deps {
			if visit(dep) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		order = append(order, name)
		return false
	}

	for _, root := range roots {
		if visit(root) {
			break
		}
	}

	res := Resolution{Missing: missing, Cycle: cycle}
	if !res.HasErrors() {
		res.Order = order
	}
	return res
}

// Instantiate invokes each factory named in res.Order, in order, with the
// shared context ctx. If res carries resolution errors, it returns a nil
// slice and a *ResolutionError without invoking any factory.
func (r *Registry[C]) Instantiate(res Resolution, ctx C) ([]any, error) {
	if res.HasErrors() {
		return nil, &ResolutionError{Missing: res.Missing, Cycle: res.Cycle}
	}
	out := make([]any, 0, len(res.Order))
	for _, name := range res.Order {
		d := r.descriptors[name]
		inst, err := d.Factory(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// Names returns every registered descriptor name, in registration order.
func (r *Registry[C]) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Describe returns the descriptor registered under name, if any.
func (r *Registry[C]) Describe(name string) (Descriptor[C], bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

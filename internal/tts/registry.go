package tts

import "fmt"

// Registry maps modes to adapters. It is built once at startup and is
// read-only afterwards.
type Registry struct {
	adapters map[Mode]Adapter
	order    []Mode
}

// NewRegistry registers adapters in the given order.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[Mode]Adapter, len(adapters))}
	for _, a := range adapters {
		mode := a.Mode()
		if _, dup := r.adapters[mode]; dup {
			return nil, fmt.Errorf("mode %q registered twice", mode)
		}
		r.adapters[mode] = a
		r.order = append(r.order, mode)
	}
	return r, nil
}

// Resolve returns the adapter for mode.
func (r *Registry) Resolve(mode Mode) (Adapter, error) {
	a, ok := r.adapters[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return a, nil
}

// Modes returns the registered modes in registration order.
func (r *Registry) Modes() []Mode {
	out := make([]Mode, len(r.order))
	copy(out, r.order)
	return out
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, m := range r.order {
		out = append(out, r.adapters[m])
	}
	return out
}

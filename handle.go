package connbinding

import "weak"

// WrapperRef resolves the binding's paired consumer-side handle at event
// delivery time. Resolution is fallible by design: a handle that has been
// garbage collected resolves to (nil, false), which suppresses the pending
// event without error. Resolution must only occur on the consumer
// goroutine, and never promotes the binding to ownership of the handle.
type WrapperRef interface {
	Resolve() (any, bool)
}

// WeakRef is a [WrapperRef] over a weak pointer.
type WeakRef[T any] struct {
	p weak.Pointer[T]
}

// NewWeakRef creates a weak reference to v. The referenced object remains
// collectable; holding the WeakRef does not keep it alive.
func NewWeakRef[T any](v *T) *WeakRef[T] {
	return &WeakRef[T]{p: weak.Make(v)}
}

// Resolve returns the referenced object, or false if it has been collected.
func (r *WeakRef[T]) Resolve() (any, bool) {
	v := r.p.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

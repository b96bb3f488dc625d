package connbinding

import "sync/atomic"

// refCount is an atomic strong reference count with a deterministic on-zero
// hook. It is the only binding field mutated from arbitrary goroutines; it
// substitutes for a lock by guaranteeing the binding is never torn down
// while any goroutine might still touch it.
//
// Acquire and release sites are asymmetric by design: the connect-attempt
// ticket is acquired in one place (Connect) and released at exactly one of
// two later sites (failed setup delivery, or shutdown delivery). Each event
// envelope holds its own count for its lifetime.
type refCount struct {
	n      atomic.Int64
	onZero func()
}

func (r *refCount) init(onZero func()) {
	r.n.Store(1)
	r.onZero = onZero
}

func (r *refCount) acquire() {
	if r.n.Add(1) <= 1 {
		panic("connbinding: acquire on a released binding")
	}
}

func (r *refCount) release() {
	switch n := r.n.Add(-1); {
	case n == 0:
		if r.onZero != nil {
			r.onZero()
		}
	case n < 0:
		panic("connbinding: strong reference count released below zero")
	}
}

func (r *refCount) count() int64 {
	return r.n.Load()
}

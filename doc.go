// Package connbinding implements the lifetime, reference-counting, and
// event-delivery protocol of a connection proxy shared between a
// single-goroutine consumer environment and an asynchronous transport.
//
// A [Binding] pairs a consumer-side handle (e.g. an object in an embedded
// scripting runtime) with a native streaming connection owned by an external
// transport. The transport invokes completion callbacks on arbitrary
// goroutines; the binding marshals each callback across a
// [github.com/joeycumines/go-connbinding/dispatch.Bridge] as a single-use
// event envelope, and raises consumer-visible events only on the bridge's
// consumer goroutine.
//
// # Data access rules
//
//  1. On the consumer goroutine (running the bridge), anything in the
//     binding may be accessed.
//  2. On any other goroutine, only the bridge submit operation and the
//     binding's strong reference count may be used. In particular, the
//     stored connection and the closed flag are off-limits.
//
// The binding is reference counted because it must outlive even the native
// connection: events emitted while the connection is being destroyed are
// still in flight on the bridge, and must reach a valid binding. The count
// starts at one (the construction reference) and reaches zero only once the
// consumer side, any in-flight connect attempt, and all in-flight event
// envelopes have released their holds.
package connbinding

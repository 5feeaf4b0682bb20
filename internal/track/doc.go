// Package track provides the event primitives, non-blocking hub, and emitter
// interfaces the pipeline uses to report invocation progress. It batches
// events on a background goroutine and fans them out to pluggable sinks such
// as Prometheus metrics or the invocation history store.
package track

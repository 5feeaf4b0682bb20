// Package sinks implements concrete tracking consumers: Prometheus metrics,
// the invocation history store, and structured logging. Each sink satisfies
// the track.Sink interface and is safe for repeated Consume/Close cycles.
package sinks

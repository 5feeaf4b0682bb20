// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status/{identifier} for running the escalation pipeline.
//   - GET /v1/history for invocation summaries via the history.Store interface.
package api

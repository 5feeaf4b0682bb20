// Package status defines the domain types shared across the fetch pipeline:
// parsed status records, tagged tier results, per-invocation attempt
// bookkeeping, and the wire format of the upstream status endpoint.
package status

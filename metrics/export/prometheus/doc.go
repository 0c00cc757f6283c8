// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [goIDP.Engine] and exposes an
// [net/http.Handler] that renders all counters and histograms. Counter names
// are prefixed goidp_*_total; the single histogram is
// goidp_check_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler.
//   - Mutate engine state.
package prometheus

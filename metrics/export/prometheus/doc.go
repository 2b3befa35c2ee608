// Package prometheus renders engine counters and the login latency histogram in
// the Prometheus text exposition format.
//
// Series are prefixed identity_. The exporter never touches a global registry;
// callers mount [PrometheusExporter.Handler] where they want it.
package prometheus

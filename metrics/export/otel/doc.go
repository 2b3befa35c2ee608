// Package otel publishes engine metrics through an OpenTelemetry meter.
//
// Counters become Int64ObservableCounters. The login latency histogram is a
// cumulative bucket gauge with one data point per "le" attribute plus a
// sample count. One callback reads the engine snapshot per collection; the
// caller owns the MeterProvider.
package otel

/*
Package metrics provides Prometheus metrics for Vigil.

All collectors are package-level and registered at init, following the
convention that a metric is usable from any package without wiring. The
serve command exposes them on METRICS_ADDRESS under /metrics.

Key series:

  - vigil_probes_total{outcome,error_kind}: probe volume and failure mix
  - vigil_monitor_transitions_total{from,to}: confirmation-threshold churn
  - vigil_incidents_opened_total{source} / vigil_incidents_resolved_total
  - vigil_notifications_sent_total{channel,outcome}: per-channel delivery
  - vigil_worker_cycle_duration_seconds{worker}: loop latency
  - vigil_worker_batch_size{worker}: rows claimed per SKIP LOCKED batch

Alert on vigil_worker_errors_total rate > 0 sustained over minutes, and
on vigil_worker_batch_size hitting the select limit continuously, which
means the worker cannot drain its backlog at the configured interval.
*/
package metrics

/*
Package probe issues HTTP probes for Vigil monitors.

Two probers implement the same contract:

	┌──────────────────── PROBE LAYER ─────────────────────┐
	│                                                        │
	│  ┌──────────────────────────────────────┐            │
	│  │           Prober interface            │            │
	│  │  Ping(ctx, endpoint) → Response       │            │
	│  └───────┬─────────────────────┬─────────┘            │
	│          │                     │                       │
	│  ┌───────▼────────┐   ┌────────▼─────────┐            │
	│  │   HTTPProber   │   │  BrowserProber   │            │
	│  │  - net/http    │   │  - gRPC client   │            │
	│  │  - httptrace   │   │  - 3x retry, 1s  │            │
	│  │  - DNS capture │   │  - screenshots   │            │
	│  └────────────────┘   └──────────────────┘            │
	└────────────────────────────────────────────────────┘

A probe never returns a Go error. Every failure mode maps to an
ErrorKind (timeout, connect_failed, tls_error, dns_error,
body_read_error, browser_service_call_failed) so the monitor state
machine consumes one uniform shape. HTTP status classification
(success means a code in [200, 399]) happens in pkg/monitor, not here.

Per-monitor timeouts are clamped to MaximumRequestTimeout (60s).

The browser service speaks a google.protobuf.Struct contract over gRPC
and additionally returns a page screenshot, which the executor persists
through the file store when a probe fails.
*/
package probe

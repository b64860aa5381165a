package probe

import (
	"context"
	"time"
)

// ErrorKind classifies why a probe failed
type ErrorKind string

const (
	ErrorKindNone                     ErrorKind = "none"
	ErrorKindTimeout                  ErrorKind = "timeout"
	ErrorKindConnectFailed            ErrorKind = "connect_failed"
	ErrorKindTLSError                 ErrorKind = "tls_error"
	ErrorKindDNSError                 ErrorKind = "dns_error"
	ErrorKindBodyReadError            ErrorKind = "body_read_error"
	ErrorKindHTTPCodeError            ErrorKind = "http_code_error"
	ErrorKindBrowserServiceCallFailed ErrorKind = "browser_service_call_failed"
)

// Header is one request header. Order is preserved, so repeated names and
// deliberate ordering survive the round trip to the target.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Endpoint describes one probe target
type Endpoint struct {
	URL     string
	Timeout time.Duration
	Headers []Header
}

// Response is the outcome of a single probe. ErrorKind is ErrorKindNone
// when the request itself completed; HTTP-level classification is the
// caller's concern.
type Response struct {
	HTTPCode     *int
	ErrorKind    ErrorKind
	Headers      map[string]string
	ResponseTime time.Duration
	ResponseIP   string
	ResolvedIPs  []string
	BodySize     int
	Body         []byte
	Screenshot   []byte
}

// Prober issues probes against HTTP endpoints. Implementations never
// return a Go error; every failure mode maps to an ErrorKind so the
// monitor state machine sees a uniform outcome.
type Prober interface {
	Ping(ctx context.Context, endpoint Endpoint) Response
}

package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"
)

const (
	// MaximumRequestTimeout is the ceiling applied to per-monitor
	// timeouts. Anything larger would hold a probe slot across multiple
	// executor ticks.
	MaximumRequestTimeout = 60 * time.Second

	// DefaultRequestTimeout applies when a monitor has no timeout set.
	DefaultRequestTimeout = 10 * time.Second

	// maxBodyBytes bounds how much of the response body is retained.
	maxBodyBytes = 1 << 20
)

// HTTPProber probes endpoints with plain HTTP GET requests
type HTTPProber struct {
	// Transport is shared across probes; connections are pooled per host.
	transport *http.Transport
}

// NewHTTPProber creates a new HTTP prober
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		transport: &http.Transport{
			MaxIdleConns:        256,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Ping performs one probe against the endpoint. The endpoint timeout is
// clamped to MaximumRequestTimeout.
func (p *HTTPProber) Ping(ctx context.Context, endpoint Endpoint) Response {
	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if timeout > MaximumRequestTimeout {
		timeout = MaximumRequestTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	var resolvedIPs []string
	var responseIP string
	trace := &httptrace.ClientTrace{
		DNSDone: func(info httptrace.DNSDoneInfo) {
			for _, addr := range info.Addrs {
				resolvedIPs = append(resolvedIPs, addr.String())
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			if addr := info.Conn.RemoteAddr(); addr != nil {
				if host, _, err := net.SplitHostPort(addr.String()); err == nil {
					responseIP = host
				}
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, endpoint.URL, nil)
	if err != nil {
		return Response{
			ErrorKind:    ErrorKindConnectFailed,
			ResponseTime: time.Since(start),
		}
	}
	for _, h := range endpoint.Headers {
		req.Header.Add(h.Name, h.Value)
	}

	client := &http.Client{Transport: p.transport}
	resp, err := client.Do(req)
	if err != nil {
		return Response{
			ErrorKind:    classifyRequestError(err),
			ResponseTime: time.Since(start),
			ResolvedIPs:  resolvedIPs,
			ResponseIP:   responseIP,
		}
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	if err != nil {
		return Response{
			HTTPCode:     &code,
			ErrorKind:    ErrorKindBodyReadError,
			Headers:      headers,
			ResponseTime: elapsed,
			ResolvedIPs:  resolvedIPs,
			ResponseIP:   responseIP,
		}
	}

	return Response{
		HTTPCode:     &code,
		ErrorKind:    ErrorKindNone,
		Headers:      headers,
		ResponseTime: elapsed,
		ResolvedIPs:  resolvedIPs,
		ResponseIP:   responseIP,
		BodySize:     len(body),
		Body:         body,
	}
}

// classifyRequestError maps transport failures onto probe error kinds
func classifyRequestError(err error) ErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorKindDNSError
	}

	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var hostErr x509.HostnameError
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &recordErr) ||
		errors.As(err, &hostErr) || errors.As(err, &authErr) {
		return ErrorKindTLSError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	return ErrorKindConnectFailed
}

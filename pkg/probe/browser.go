package probe

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	browserPingMethod = "/vigil.browser.v1.BrowserService/Ping"

	browserCallRetries = 3
	browserCallBackoff = 1 * time.Second
)

// BrowserProber probes endpoints through the headless-browser service.
// The service speaks a loosely typed google.protobuf.Struct contract so
// the browser fleet can evolve its payload without lockstep deploys.
type BrowserProber struct {
	conn *grpc.ClientConn
}

// NewBrowserProber connects to the browser service at the given address
func NewBrowserProber(address string) (*BrowserProber, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to browser service: %w", err)
	}
	return &BrowserProber{conn: conn}, nil
}

// Close releases the underlying connection
func (p *BrowserProber) Close() error {
	return p.conn.Close()
}

// Healthy reports whether the browser service answers the standard gRPC
// health protocol.
func (p *BrowserProber) Healthy(ctx context.Context) bool {
	resp, err := healthpb.NewHealthClient(p.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

// Ping probes the endpoint through the browser service. Calls are retried
// up to three times with a fixed one-second backoff; exhausting retries
// maps to ErrorKindBrowserServiceCallFailed.
func (p *BrowserProber) Ping(ctx context.Context, endpoint Endpoint) Response {
	start := time.Now()

	req, err := pingRequest(endpoint)
	if err != nil {
		return Response{ErrorKind: ErrorKindBrowserServiceCallFailed, ResponseTime: time.Since(start)}
	}

	var reply *structpb.Struct
	for attempt := 1; attempt <= browserCallRetries; attempt++ {
		reply = &structpb.Struct{}
		err = p.conn.Invoke(ctx, browserPingMethod, req, reply)
		if err == nil {
			break
		}
		if attempt == browserCallRetries {
			return Response{ErrorKind: ErrorKindBrowserServiceCallFailed, ResponseTime: time.Since(start)}
		}
		select {
		case <-time.After(browserCallBackoff):
		case <-ctx.Done():
			return Response{ErrorKind: ErrorKindBrowserServiceCallFailed, ResponseTime: time.Since(start)}
		}
	}

	resp := decodePingReply(reply)
	if resp.ResponseTime == 0 {
		resp.ResponseTime = time.Since(start)
	}
	return resp
}

func pingRequest(endpoint Endpoint) (*structpb.Struct, error) {
	headers := make(map[string]any, len(endpoint.Headers))
	for _, h := range endpoint.Headers {
		headers[h.Name] = h.Value
	}
	return structpb.NewStruct(map[string]any{
		"url":        endpoint.URL,
		"timeout_ms": float64(endpoint.Timeout.Milliseconds()),
		"headers":    headers,
		"screenshot": true,
	})
}

func decodePingReply(reply *structpb.Struct) Response {
	fields := reply.GetFields()
	resp := Response{ErrorKind: ErrorKindNone}

	if v, ok := fields["error_kind"]; ok {
		if s := v.GetStringValue(); s != "" && s != string(ErrorKindNone) {
			resp.ErrorKind = ErrorKind(s)
		}
	}
	if v, ok := fields["http_code"]; ok {
		code := int(v.GetNumberValue())
		if code > 0 {
			resp.HTTPCode = &code
		}
	}
	if v, ok := fields["response_time_ms"]; ok {
		resp.ResponseTime = time.Duration(v.GetNumberValue()) * time.Millisecond
	}
	if v, ok := fields["response_ip"]; ok {
		resp.ResponseIP = v.GetStringValue()
	}
	if v, ok := fields["resolved_ips"]; ok {
		for _, item := range v.GetListValue().GetValues() {
			if ip := item.GetStringValue(); ip != "" {
				resp.ResolvedIPs = append(resp.ResolvedIPs, ip)
			}
		}
	}
	if v, ok := fields["headers"]; ok {
		hs := v.GetStructValue().GetFields()
		if len(hs) > 0 {
			resp.Headers = make(map[string]string, len(hs))
			for name, value := range hs {
				resp.Headers[name] = value.GetStringValue()
			}
		}
	}
	if v, ok := fields["body_size"]; ok {
		resp.BodySize = int(v.GetNumberValue())
	}
	if v, ok := fields["body"]; ok {
		resp.Body = []byte(v.GetStringValue())
		if resp.BodySize == 0 {
			resp.BodySize = len(resp.Body)
		}
	}
	if v, ok := fields["screenshot"]; ok {
		if raw, err := base64.StdEncoding.DecodeString(v.GetStringValue()); err == nil {
			resp.Screenshot = raw
		}
	}
	return resp
}

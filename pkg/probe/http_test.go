package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingSuccess(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Probe-Token")
		w.Header().Set("X-Answer", "42")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	p := NewHTTPProber()
	resp := p.Ping(context.Background(), Endpoint{
		URL:     srv.URL,
		Timeout: 5 * time.Second,
		Headers: []Header{{Name: "X-Probe-Token", Value: "secret"}},
	})

	require.NotNil(t, resp.HTTPCode)
	assert.Equal(t, 200, *resp.HTTPCode)
	assert.Equal(t, ErrorKindNone, resp.ErrorKind)
	assert.Equal(t, "secret", gotHeader)
	assert.Equal(t, "42", resp.Headers["X-Answer"])
	assert.Equal(t, 4, resp.BodySize)
	assert.Equal(t, []byte("pong"), resp.Body)
	assert.Greater(t, resp.ResponseTime, time.Duration(0))
}

func TestPingKeepsOutOfRangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProber()
	resp := p.Ping(context.Background(), Endpoint{URL: srv.URL})

	// A completed request is never an error at the probe level; the
	// state machine classifies the code.
	require.NotNil(t, resp.HTTPCode)
	assert.Equal(t, 500, *resp.HTTPCode)
	assert.Equal(t, ErrorKindNone, resp.ErrorKind)
}

func TestPingTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewHTTPProber()
	resp := p.Ping(context.Background(), Endpoint{URL: srv.URL, Timeout: 50 * time.Millisecond})

	assert.Nil(t, resp.HTTPCode)
	assert.Equal(t, ErrorKindTimeout, resp.ErrorKind)
}

func TestPingConnectFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	p := NewHTTPProber()
	resp := p.Ping(context.Background(), Endpoint{URL: srv.URL, Timeout: time.Second})

	assert.Nil(t, resp.HTTPCode)
	assert.Equal(t, ErrorKindConnectFailed, resp.ErrorKind)
}

package discord

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
)

type flakyTransport struct {
	failures int
	calls    int
	err      error
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestRetryTransportRetriesDialFailures(t *testing.T) {
	base := &flakyTransport{failures: 2, err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}
	rt := &retryTransport{base: base, maxRetries: 2}

	req, _ := http.NewRequest(http.MethodPost, "https://discord.com/api/v10/channels/1/messages", strings.NewReader(`{"content":"x"}`))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if resp.StatusCode != http.StatusOK || base.calls != 3 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, base.calls)
	}
}

func TestRetryTransportDoesNotResendAfterConnect(t *testing.T) {
	readErr := &net.OpError{Op: "read", Err: errors.New("connection reset by peer")}
	base := &flakyTransport{failures: 1, err: readErr}
	rt := &retryTransport{base: base, maxRetries: 3}

	req, _ := http.NewRequest(http.MethodPost, "https://discord.com/api/v10/channels/1/messages", strings.NewReader(`{}`))
	if _, err := rt.RoundTrip(req); !errors.Is(err, readErr) {
		t.Fatalf("err = %v, want read error", err)
	}
	if base.calls != 1 {
		t.Fatalf("calls = %d, want 1", base.calls)
	}
}

func TestBuildHTTPClientWithoutRetries(t *testing.T) {
	c := BuildHTTPClient(0)
	if _, ok := c.Transport.(*http.Transport); !ok {
		t.Fatalf("transport = %T, want *http.Transport", c.Transport)
	}
	if _, ok := BuildHTTPClient(2).Transport.(*retryTransport); !ok {
		t.Fatal("expected retry transport when retries > 0")
	}
}

package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	read := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial", dial, true},
		{"dial wrapped in url error", &url.Error{Op: "Post", URL: "https://discord.com", Err: dial}, true},
		{"read after connect", read, false},
		{"temporary dns", &net.DNSError{Err: "server misbehaving", IsTemporary: true}, true},
		{"permanent dns", &net.DNSError{Err: "no such host", IsNotFound: true}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"refused", syscall.ECONNREFUSED, true},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Errorf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

package discord

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/questionbot/core/discord/netutil"
	"github.com/m3rciful/questionbot/core/logger"
)

// Discord answers REST calls well within these limits; the rate limiter in
// discordgo sleeps outside the client timeout.
var restTransport = struct {
	dial, keepAlive, tls, header, idle, total time.Duration
	idleConns, idlePerHost                    int
}{
	dial:        5 * time.Second,
	keepAlive:   30 * time.Second,
	tls:         5 * time.Second,
	header:      10 * time.Second,
	idle:        90 * time.Second,
	total:       20 * time.Second,
	idleConns:   32,
	idlePerHost: 8,
}

const retryStep = 500 * time.Millisecond

var errBodyNotReplayable = errors.New("discord: request body cannot be replayed")

// BuildHTTPClient returns the client discordgo uses for REST calls.
// retries bounds resends of requests that never reached Discord; 0 disables them.
func BuildHTTPClient(retries int) *http.Client {
	dialer := &net.Dialer{Timeout: restTransport.dial, KeepAlive: restTransport.keepAlive}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          restTransport.idleConns,
		MaxIdleConnsPerHost:   restTransport.idlePerHost,
		IdleConnTimeout:       restTransport.idle,
		TLSHandshakeTimeout:   restTransport.tls,
		ResponseHeaderTimeout: restTransport.header,
	}
	client := &http.Client{Timeout: restTransport.total, Transport: base}
	if retries > 0 {
		client.Transport = &retryTransport{base: base, maxRetries: retries, backoff: retryStep}
	}
	return client
}

// retryTransport resends requests whose dial failed. Anything that may have
// reached Discord is returned as is so a message is never posted twice.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.maxRetries && netutil.ShouldRetry(err); attempt++ {
		wait := t.backoff * time.Duration(attempt)
		logger.DC.Debug("request retry",
			slog.String("event", "discord.http.retry"),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", wait),
			logger.ErrAttr(err),
		)
		if werr := sleepCtx(req, wait); werr != nil {
			return nil, werr
		}
		next, rerr := rewind(req)
		if rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

// rewind clones req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return req.Context().Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}

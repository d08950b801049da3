package trino

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/trinodb/trino-go-client/internal/tlog"
)

// retryableStatusCodes are retried indefinitely (or up to MaxRetries, if
// set) on the same request, per spec §4.1.
var retryableStatusCodes = map[int]bool{
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// decorrelated jitter backoff, ported from the teacher's waitAlgo in
// retry.go: t = 3*sleep - base; the new sleep is base plus a random draw
// below t when t > 0, or 3*sleep plus a random draw below -t when t < 0,
// capped at cap. While 3*sleep < base (the first retry starts from a
// zero sleep) the result can fall below base.
type backoff struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	base time.Duration
	cap  time.Duration
}

func newBackoff(base, cap time.Duration) *backoff {
	return &backoff{rnd: rand.New(rand.NewSource(time.Now().UnixNano())), base: base, cap: cap}
}

func (b *backoff) next(sleep time.Duration) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := 3*sleep - b.base
	var candidate time.Duration
	switch {
	case t > 0:
		candidate = durationMin(b.cap, b.randDuration(t)+b.base)
	case t < 0:
		candidate = durationMin(b.cap, b.randDuration(-t)+3*sleep)
	default:
		candidate = b.base
	}
	return candidate
}

func (b *backoff) randDuration(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(b.rnd.Int63n(int64(n)))
}

func durationMin(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var defaultBackoff = newBackoff(200*time.Millisecond, 30*time.Second)

// httpResult is a fully-drained HTTP response: headers plus the whole
// body, since every caller in this package needs both together anyway
// (either to JSON-decode the body or to build a *ProtocolError from it).
type httpResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPTransport executes HTTP requests against the coordinator with
// retry on transient status codes, header attachment, and transparent
// compression, following the shape of the teacher's snowflakeRestful +
// retryHTTP but generalized to spec §4.1/§6/§7's retry and header rules.
type HTTPTransport struct {
	client     *http.Client
	auth       Auth
	maxRetries int
	limiter    *rate.Limiter
	userAgent  string
	compress   bool
}

// NewHTTPTransport builds a transport from Config, resolving TLS options
// via BuildTLSConfig.
func NewHTTPTransport(cfg Config, auth Auth) (*HTTPTransport, error) {
	tlsCfg, err := BuildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	requestTimeout := cfg.RequestTimeout
	t := &HTTPTransport{
		client: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
			Timeout:   requestTimeout,
		},
		auth:       auth,
		maxRetries: cfg.MaxRetries,
		userAgent:  DefaultAgent,
		compress:   !cfg.DisableCompression,
	}
	if cfg.MaxRequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), 1)
	}
	return t, nil
}

// setTLSConfig overrides the transport's TLS config directly.
func (t *HTTPTransport) setTLSConfig(cfg *tls.Config) {
	if tr, ok := t.client.Transport.(*http.Transport); ok {
		tr.TLSClientConfig = cfg
	}
}

// Do issues one HTTP request, retrying indefinitely (or up to
// maxRetries, if configured) on {502, 503, 504}, with decorrelated
// jitter backoff between attempts. A non-retryable non-2xx status is
// returned as a *ProtocolError carrying the status and body. Connection
// failures are wrapped the same way, per spec §7.
func (t *HTTPTransport) Do(ctx context.Context, method, url string, body []byte, extraHeaders map[string]string) (*httpResult, error) {
	attempt := 0
	sleep := time.Duration(0)
	for {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, newProtocolError("rate limiter wait canceled", 0, "", err)
			}
		}

		res, err := t.doOnce(ctx, method, url, body, extraHeaders)
		if err == nil && !retryableStatusCodes[res.StatusCode] {
			if res.StatusCode >= 200 && res.StatusCode < 300 {
				return res, nil
			}
			return nil, newProtocolError(
				fmt.Sprintf("unexpected HTTP status %d", res.StatusCode),
				res.StatusCode, string(res.Body), nil)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		attempt++
		if t.maxRetries > 0 && attempt > t.maxRetries {
			return nil, newProtocolError(
				fmt.Sprintf("exceeded retry budget, last status %d", res.StatusCode),
				res.StatusCode, string(res.Body), nil)
		}

		sleep = defaultBackoff.next(sleep)
		tlog.Logger().Debug("retrying request", "method", method, "url", url, "attempt", attempt, "sleep", sleep)
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func (t *HTTPTransport) doOnce(ctx context.Context, method, url string, body []byte, extraHeaders map[string]string) (*httpResult, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, newProtocolError("building request", 0, "", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	if t.compress {
		req.Header.Set("Accept-Encoding", "gzip")
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	if t.auth != nil {
		if err := t.auth.Attach(req); err != nil {
			return nil, newProtocolError("attaching auth credentials", 0, "", err)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, newProtocolError(fmt.Sprintf("%s %s failed", method, url), 0, "", err)
	}
	defer resp.Body.Close()

	reader2, err := decompressBody(resp)
	if err != nil {
		return nil, newProtocolError("decompressing response body", resp.StatusCode, "", err)
	}
	data, err := io.ReadAll(reader2)
	if err != nil {
		// Body was partially read; surface what we have per spec §7's
		// "capturing the body if it was already read".
		return nil, newProtocolError("reading response body", resp.StatusCode, string(data), err)
	}
	return &httpResult{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func decompressBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

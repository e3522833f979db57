package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
	"github.com/angeloszaimis/resilient-client/internal/backend"
)

const (
	DefaultTimeout = 10 * time.Second

	HeaderRequestID = "X-Request-ID"

	DefaultMaxResponseBytes = 10 << 20
)

type Request struct {
	Method  string
	Path    string
	Params  url.Values
	Body    []byte
	Headers http.Header
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

type Transport struct {
	client   *http.Client
	maxBytes int64
}

// New wraps client. A nil client gets a dedicated one without a global
// timeout; every attempt carries its own deadline instead.
func New(client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Transport{client: client, maxBytes: DefaultMaxResponseBytes}
}

// WithMaxResponseBytes sets the largest response body Do accepts. Larger
// bodies fail the attempt instead of being cut.
func (t *Transport) WithMaxResponseBytes(n int64) *Transport {
	if n > 0 {
		t.maxBytes = n
	}
	return t
}

// Do sends req to target within timeout. A response is returned alongside
// backend-status and request-rejected errors so callers can forward it.
func (t *Transport) Do(ctx context.Context, target backend.Target, req Request, timeout time.Duration) (Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(actx, method, target.Resolve(req.Path, req.Params).String(), body)
	if err != nil {
		return Response{}, apierror.ConfigurationInvalid(fmt.Sprintf("build request for %s", target.Name()), err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	res, err := t.client.Do(httpReq)
	if err != nil {
		return Response{Latency: time.Since(start)}, classify(ctx, target, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, t.maxBytes+1))
	resp := Response{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
		Body:       payload,
		Latency:    time.Since(start),
	}
	if err != nil {
		return resp, classify(ctx, target, err)
	}
	if int64(len(payload)) > t.maxBytes {
		resp.Body = nil
		return resp, apierror.ResponseTooLarge(target.Name(), t.maxBytes)
	}

	switch {
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return resp, apierror.BackendStatus(target.Name(), res.StatusCode)
	case res.StatusCode >= 400:
		return resp, apierror.RequestRejected(target.Name(), res.StatusCode)
	}
	return resp, nil
}

func classify(ctx context.Context, target backend.Target, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return apierror.NetworkUnreachable(target.Name(), ctx.Err())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.NetworkTimeout(target.Name(), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierror.NetworkTimeout(target.Name(), err)
	}
	return apierror.NetworkUnreachable(target.Name(), err)
}

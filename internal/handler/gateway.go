package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/resilient-client/internal/adapter"
	"github.com/angeloszaimis/resilient-client/internal/catalog"
	"github.com/angeloszaimis/resilient-client/internal/metrics"
	"github.com/angeloszaimis/resilient-client/internal/transport"
)

const (
	HeaderBackend     = "X-Backend-Server"
	HeaderCache       = "X-Cache"
	HeaderCachePolicy = "X-Cache-Policy"

	CacheHit   = "hit"
	CacheStale = "stale"
	CacheMiss  = "miss"

	maxRequestBytes = 1 << 20
)

// forwarded lists the inbound headers relayed to the backend.
var forwarded = []string{
	"Accept",
	"Authorization",
	"Content-Type",
	transport.HeaderRequestID,
}

// Client is the part of *adapter.Client the gateway uses.
type Client interface {
	Request(ctx context.Context, spec adapter.RequestSpec) (adapter.Result, error)
	HealthStatus() adapter.HealthStatus
	PerformanceMetrics() metrics.Snapshot
	Options() adapter.Options
	UpdateConfig(opts adapter.Options) error
	Mode() adapter.Mode
}

type Gateway struct {
	logger    *slog.Logger
	client    Client
	catalog   *catalog.Catalog
	collector *metrics.Collector
}

func NewGateway(logger *slog.Logger, client Client, cat *catalog.Catalog, collector *metrics.Collector) *Gateway {
	return &Gateway{
		logger:    logger,
		client:    client,
		catalog:   cat,
		collector: collector,
	}
}

// Proxy relays ANY /api/*path through the client.
func (g *Gateway) Proxy(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes+1))
	if err != nil {
		respondErrorMsg(c, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxRequestBytes {
		respondErrorMsg(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes))
		return
	}

	path := c.Param("path")
	spec := adapter.RequestSpec{
		Method:  c.Request.Method,
		Path:    path,
		Params:  c.Request.URL.Query(),
		Body:    body,
		Headers: forwardHeaders(c.Request.Header),
		Class:   ClassForPath(path),
		NoCache: noCache(c.Request.Header),
		Policy:  adapter.Policy(c.GetHeader(HeaderCachePolicy)),
	}

	g.logger.Debug("Received request",
		slog.String("from", c.ClientIP()),
		slog.String("method", spec.Method),
		slog.String("path", path))

	res, err := g.client.Request(c.Request.Context(), spec)
	writeMeta(c, res)
	if err != nil && len(res.Payload) == 0 {
		respondError(c, err, res.RequestID)
		return
	}

	status := res.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(status, contentType, res.Payload)
}

func writeMeta(c *gin.Context, res adapter.Result) {
	if res.RequestID != "" {
		c.Header(transport.HeaderRequestID, res.RequestID)
	}
	if res.TargetURL != "" {
		c.Header(HeaderBackend, res.TargetURL)
	}

	switch {
	case res.Stale:
		c.Header(HeaderCache, CacheStale)
		c.Header("Warning", `110 - "Response is Stale"`)
	case res.FromCache:
		c.Header(HeaderCache, CacheHit)
	default:
		c.Header(HeaderCache, CacheMiss)
	}
}

// ClassForPath maps a request path to its cache class. Unknown paths have no
// class and are not cached.
func ClassForPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	switch segments[len(segments)-1] {
	case catalog.ClassHealth:
		return catalog.ClassHealth
	case catalog.ClassDetections:
		return catalog.ClassDetections
	case catalog.ClassProducts:
		return catalog.ClassProducts
	}
	if segments[0] == catalog.ClassVideos {
		return catalog.ClassVideos
	}
	return ""
}

func forwardHeaders(in http.Header) http.Header {
	out := http.Header{}
	for _, name := range forwarded {
		if v := in.Get(name); v != "" {
			out.Set(name, v)
		}
	}
	return out
}

func noCache(h http.Header) bool {
	cc := strings.ToLower(h.Get("Cache-Control"))
	return strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store")
}

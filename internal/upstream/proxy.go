// Package upstream forwards gateway requests to the STAC API being fronted.
package upstream

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eo-datahub/stac-gateway/internal/constant"
	"github.com/eo-datahub/stac-gateway/internal/logger"
	"github.com/eo-datahub/stac-gateway/internal/middleware"
)

// Proxy is a reverse proxy to a single upstream STAC API.
type Proxy struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
	logger *logger.Logger
}

type Option func(*Proxy)

// WithTransport replaces the upstream round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Proxy) {
		p.proxy.Transport = rt
	}
}

// NewProxy creates a proxy that forwards every request to target, keeping the
// request path and query below the target path.
func NewProxy(log *logger.Logger, target *url.URL, opts ...Option) *Proxy {
	if log == nil {
		log = logger.Production()
	}
	p := &Proxy{
		target: target,
		logger: log,
	}
	p.proxy = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		ErrorHandler: p.handleError,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Proxy) rewrite(r *httputil.ProxyRequest) {
	r.SetURL(p.target)
	r.SetXForwarded()
	if scheme := middleware.Scheme(r.In.Context()); scheme != "" {
		r.Out.Header.Set(constant.HeaderForwardedProto, scheme)
	}
	r.Out.Header.Del("Accept-Encoding")
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		p.logger.Debug("Client went away before upstream responded",
			"path", r.URL.Path,
		)
		return
	}
	p.logger.Error("Upstream request failed",
		"upstream", p.target.Host,
		"path", r.URL.Path,
		"error", err,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"code":"BadGateway","description":"upstream STAC API unavailable"}`))
}

// Handle serves c through the proxy.
func (p *Proxy) Handle(c *gin.Context) {
	start := time.Now()
	p.proxy.ServeHTTP(c.Writer, c.Request)
	p.logger.Debug("Proxied request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

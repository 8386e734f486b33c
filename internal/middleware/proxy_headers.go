package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eo-datahub/stac-gateway/internal/constant"
)

// ProxyHeaders rewrites the request host and scheme from proxy headers.
//
// Forwarded takes precedence; X-Forwarded-Proto and X-Forwarded-Port are only
// consulted when it is absent. The port is dropped from the host when it is the
// default for the scheme.
func ProxyHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := resolveOrigin(c.Request)
		c.Request.Host = origin.host()
		c.Request = c.Request.WithContext(WithScheme(c.Request.Context(), origin.proto))
		c.Next()
	}
}

// ForwardedScheme returns the scheme resolved by ProxyHeaders.
func ForwardedScheme(c *gin.Context) string {
	if scheme := Scheme(c.Request.Context()); scheme != "" {
		return scheme
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}

// BaseURL returns the externally visible scheme and host of the request.
func BaseURL(c *gin.Context) string {
	return ForwardedScheme(c) + "://" + c.Request.Host
}

type origin struct {
	proto  string
	domain string
	port   int
}

func (o origin) host() string {
	if o.port == 0 || (o.proto == "http" && o.port == 80) || (o.proto == "https" && o.port == 443) {
		return bracketIPv6(o.domain)
	}
	return net.JoinHostPort(o.domain, strconv.Itoa(o.port))
}

func resolveOrigin(r *http.Request) origin {
	o := origin{proto: "http"}
	if r.TLS != nil {
		o.proto = "https"
	}
	o.domain, o.port = splitHostPort(r.Host, 0)

	if forwarded := singleHeader(r.Header, constant.HeaderForwarded); forwarded != "" {
		applyForwarded(&o, forwarded)
		return o
	}

	if proto := singleHeader(r.Header, constant.HeaderForwardedProto); proto != "" {
		o.proto = strings.ToLower(strings.TrimSpace(proto))
	}
	if port := singleHeader(r.Header, constant.HeaderForwardedPort); port != "" {
		if p, ok := parsePort(port); ok {
			o.port = p
		}
	}
	return o
}

// applyForwarded reads proto and host from the first element of a Forwarded header.
func applyForwarded(o *origin, value string) {
	first, _, _ := strings.Cut(value, ",")
	for _, pair := range strings.Split(first, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		val = strings.Trim(strings.TrimSpace(val), `"`)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "proto":
			if val != "" {
				o.proto = strings.ToLower(val)
			}
		case "host":
			if val == "" {
				continue
			}
			if _, _, err := net.SplitHostPort(val); err != nil {
				o.domain, o.port = strings.Trim(val, "[]"), 0
				continue
			}
			o.domain, o.port = splitHostPort(val, o.port)
		}
	}
}

// splitHostPort keeps fallback as the port when hostport carries none or an invalid one.
func splitHostPort(hostport string, fallback int) (string, int) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.Trim(hostport, "[]"), fallback
	}
	if p, ok := parsePort(port); ok {
		return host, p
	}
	return host, fallback
}

func parsePort(s string) (int, bool) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p <= 0 || p > 65535 {
		return 0, false
	}
	return p, true
}

// singleHeader returns the header value only when it was sent exactly once.
func singleHeader(h http.Header, key string) string {
	values := h.Values(key)
	if len(values) != 1 {
		return ""
	}
	return values[0]
}

func bracketIPv6(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

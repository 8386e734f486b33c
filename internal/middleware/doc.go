// Package middleware provides the gin middleware chain of the STAC gateway.
//
// # Blob access
//
// BlobAccess buffers responses of search and items endpoints and hands the JSON
// body to a rewriter that signs asset hrefs. Status code and content type are
// kept; only the body (and its Content-Length) change. Redirects, non-JSON
// bodies and compressed bodies pass through untouched.
//
// # Proxy headers
//
// ProxyHeaders derives the externally visible scheme and host from the
// standard Forwarded header, falling back to X-Forwarded-Proto and
// X-Forwarded-Port, and finally to the request itself:
//
//	router.Use(middleware.ProxyHeaders())
//	router.GET("/", func(c *gin.Context) {
//	    base := middleware.BaseURL(c) // e.g. https://stac.example.com
//	})
//
// # CORS
//
// CORS applies the defaults recommended for STAC APIs: any
// origin, GET/POST/OPTIONS, the Content-Type request header and a ten minute
// preflight cache.
package middleware

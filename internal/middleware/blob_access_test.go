package middleware_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eo-datahub/stac-gateway/internal/middleware"
	"github.com/eo-datahub/stac-gateway/test/fixtures"
)

// markingRewriter replaces "unsigned" with "signed" and counts calls.
type markingRewriter struct {
	calls int
}

func (r *markingRewriter) Rewrite(_ context.Context, body []byte) []byte {
	r.calls++
	return bytes.ReplaceAll(body, []byte("unsigned"), []byte("signed-with-a-longer-token"))
}

func respond(status int, contentType, body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Length", strconv.Itoa(len(body)))
		c.Data(status, contentType, []byte(body))
	}
}

func TestIntercepts(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{path: "/search", expected: true},
		{path: "/api/stac/v1/search", expected: true},
		{path: "/collections/landsat/items", expected: true},
		{path: "/collections/landsat/items/LC08_001", expected: true},
		{path: "/collections/landsat", expected: false},
		{path: "/searchable", expected: false},
		{path: "/collections/items-archive", expected: false},
		{path: "/", expected: false},
		{path: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, middleware.Intercepts(tt.path))
		})
	}
}

func TestBlobAccess(t *testing.T) {
	const body = `{"assets":{"a":{"href":"unsigned"}}}`
	const rewritten = `{"assets":{"a":{"href":"signed-with-a-longer-token"}}}`

	tests := []struct {
		name           string
		path           string
		handler        gin.HandlerFunc
		expectedStatus int
		expectedBody   string
		expectCalls    int
	}{
		{
			name:           "item endpoint is rewritten",
			path:           "/collections/landsat/items/LC08",
			handler:        respond(http.StatusOK, "application/json", body),
			expectedStatus: http.StatusOK,
			expectedBody:   rewritten,
			expectCalls:    1,
		},
		{
			name:           "geojson search is rewritten",
			path:           "/search",
			handler:        respond(http.StatusOK, "application/geo+json", body),
			expectedStatus: http.StatusOK,
			expectedBody:   rewritten,
			expectCalls:    1,
		},
		{
			name:           "json with charset",
			path:           "/search",
			handler:        respond(http.StatusOK, "application/json; charset=utf-8", body),
			expectedStatus: http.StatusOK,
			expectedBody:   rewritten,
			expectCalls:    1,
		},
		{
			name:           "status is preserved",
			path:           "/collections/landsat/items",
			handler:        respond(http.StatusNotFound, "application/json", body),
			expectedStatus: http.StatusNotFound,
			expectedBody:   rewritten,
			expectCalls:    1,
		},
		{
			name:           "other paths pass through",
			path:           "/collections/landsat",
			handler:        respond(http.StatusOK, "application/json", body),
			expectedStatus: http.StatusOK,
			expectedBody:   body,
		},
		{
			name:           "html passes through",
			path:           "/search",
			handler:        respond(http.StatusOK, "text/html", "<p>unsigned</p>"),
			expectedStatus: http.StatusOK,
			expectedBody:   "<p>unsigned</p>",
		},
		{
			name:           "empty body",
			path:           "/search",
			handler:        func(c *gin.Context) { c.Status(http.StatusNoContent) },
			expectedStatus: http.StatusNoContent,
		},
		{
			name: "compressed body passes through",
			path: "/search",
			handler: func(c *gin.Context) {
				c.Header("Content-Encoding", "gzip")
				c.Data(http.StatusOK, "application/json", []byte(body))
			},
			expectedStatus: http.StatusOK,
			expectedBody:   body,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rewriter := &markingRewriter{}
			router := fixtures.SetupTestRouter(t, middleware.BlobAccess(rewriter))
			router.GET(tt.path, tt.handler)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
			assert.Equal(t, tt.expectCalls, rewriter.calls)
		})
	}
}

func TestBlobAccess_RedirectPassesThrough(t *testing.T) {
	rewriter := &markingRewriter{}
	router := fixtures.SetupTestRouter(t, middleware.BlobAccess(rewriter))
	router.GET("/search", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/search?page=2")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/search?page=2", w.Header().Get("Location"))
	assert.Zero(t, rewriter.calls)
}

func TestBlobAccess_HeadersPreserved(t *testing.T) {
	const body = `{"assets":{"a":{"href":"unsigned"}}}`
	rewriter := &markingRewriter{}
	router := fixtures.SetupTestRouter(t, middleware.BlobAccess(rewriter))
	router.GET("/search", func(c *gin.Context) {
		c.Header("X-Request-Id", "abc")
		respond(http.StatusOK, "application/geo+json", body)(c)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))
	assert.Equal(t, strconv.Itoa(w.Body.Len()), w.Header().Get("Content-Length"))
}

func TestBlobAccess_StreamingWritesAreBuffered(t *testing.T) {
	rewriter := &markingRewriter{}
	router := fixtures.SetupTestRouter(t, middleware.BlobAccess(rewriter))
	router.GET("/search", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.Status(http.StatusOK)
		_, _ = c.Writer.WriteString(`{"assets":{"a":`)
		c.Writer.Flush()
		_, _ = c.Writer.WriteString(`{"href":"unsigned"}}}`)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search", nil))

	assert.Equal(t, `{"assets":{"a":{"href":"signed-with-a-longer-token"}}}`, w.Body.String())
	assert.Equal(t, 1, rewriter.calls)
}

func TestBlobAccess_ClientGone(t *testing.T) {
	rewriter := &markingRewriter{}
	router := fixtures.SetupTestRouter(t, middleware.BlobAccess(rewriter))

	ctx, cancel := context.WithCancel(t.Context())
	router.GET("/search", func(c *gin.Context) {
		cancel()
		c.Data(http.StatusOK, "application/json", []byte(`{"assets":{}}`))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search", nil).WithContext(ctx)
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Body.String(), "nothing is written for a cancelled request")
}

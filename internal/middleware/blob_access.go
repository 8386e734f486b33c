package middleware

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"k8s.io/apimachinery/pkg/util/sets"
)

// BodyRewriter transforms an intercepted JSON body. Implementations must not fail.
type BodyRewriter interface {
	Rewrite(ctx context.Context, body []byte) []byte
}

var interceptSegments = sets.New("search", "items")

// BlobAccess rewrites JSON responses of search and items endpoints with rewriter.
func BlobAccess(rewriter BodyRewriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Intercepts(c.Request.URL.Path) {
			c.Next()
			return
		}

		original := c.Writer
		buffered := &bufferedWriter{ResponseWriter: original, status: http.StatusOK}
		c.Writer = buffered
		defer func() { c.Writer = original }()

		c.Next()

		body := buffered.body.Bytes()
		header := original.Header()
		if shouldRewrite(buffered.status, header, body) {
			body = rewriter.Rewrite(c.Request.Context(), body)
			if header.Get("Content-Length") != "" {
				header.Set("Content-Length", strconv.Itoa(len(body)))
			}
		}

		// The client is gone; nothing is waiting for this body.
		if c.Request.Context().Err() != nil {
			return
		}

		original.WriteHeader(buffered.status)
		if len(body) > 0 {
			_, _ = original.Write(body)
		} else {
			original.WriteHeaderNow()
		}
	}
}

// Intercepts reports whether path has a search or items segment.
func Intercepts(path string) bool {
	return interceptSegments.HasAny(strings.Split(path, "/")...)
}

func shouldRewrite(status int, header http.Header, body []byte) bool {
	if status >= http.StatusMultipleChoices && status < http.StatusBadRequest {
		return false
	}
	if len(body) == 0 || header.Get("Content-Encoding") != "" {
		return false
	}
	return isJSON(header.Get("Content-Type"))
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// bufferedWriter holds the status and body until the interceptor decides what to emit.
type bufferedWriter struct {
	gin.ResponseWriter

	body    bytes.Buffer
	status  int
	written bool
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 && !w.written {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {
	w.written = true
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	w.written = true
	return w.body.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.written = true
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	if !w.written {
		return -1
	}
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.written
}

// Flush is a no-op: nothing reaches the client before the body is rewritten.
func (w *bufferedWriter) Flush() {}

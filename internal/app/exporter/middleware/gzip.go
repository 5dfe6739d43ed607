package middleware

import (
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	return g.writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.writer.Write([]byte(s))
}

// WriteHeader drops Content-Length: it describes the uncompressed body.
func (g *gzipWriter) WriteHeader(code int) {
	g.Header().Del("Content-Length")
	g.ResponseWriter.WriteHeader(code)
}

func acceptsGzip(c *gin.Context) bool {
	return strings.Contains(strings.ToLower(c.Request.Header.Get("Accept-Encoding")), "gzip")
}

// GzipMiddleware compresses responses for clients that accept gzip.
// Prometheus sends Accept-Encoding: gzip on every scrape.
func GzipMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acceptsGzip(c) {
			c.Next()
			return
		}

		orig := c.Writer
		gz := gzipPool.Get().(*gzip.Writer)
		gz.Reset(orig)
		defer func() {
			if r := recover(); r != nil {
				// Closing would write the gzip header and commit a 200.
				// Hand the plain writer back to the recovery middleware.
				c.Writer = orig
				c.Writer.Header().Del("Content-Encoding")
				gz.Reset(io.Discard)
				gzipPool.Put(gz)
				panic(r)
			}
			_ = gz.Close()
			gzipPool.Put(gz)
		}()

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{
			ResponseWriter: orig,
			writer:         gz,
		}

		c.Next()
	}
}

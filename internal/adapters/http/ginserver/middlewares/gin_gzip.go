package middlewares

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var compressibleTypes = []string{"application/json", "text/html", "text/plain"}

type gzipConfig struct {
	skip      []string
	level     int
	minLength int
}

// GzipOption tunes GzipResponse.
type GzipOption func(*gzipConfig)

// WithGzipLevel sets the compression level. Invalid levels fall back to gzip.DefaultCompression.
func WithGzipLevel(level int) GzipOption {
	return func(c *gzipConfig) { c.level = level }
}

// WithMinLength leaves bodies shorter than n bytes uncompressed.
func WithMinLength(n int) GzipOption {
	return func(c *gzipConfig) { c.minLength = n }
}

// WithoutPaths bypasses compression for requests whose path starts with any prefix.
func WithoutPaths(prefixes ...string) GzipOption {
	return func(c *gzipConfig) { c.skip = append(c.skip, prefixes...) }
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	pool     *sync.Pool
	gzw      *gzip.Writer
	pending  []byte
	min      int
	decided  bool
	eligible bool
}

func (w *gzipResponseWriter) compressible() bool {
	h := w.Header()
	if h.Get("Content-Encoding") != "" {
		return false
	}
	status := w.Status()
	if status == http.StatusNoContent || status < http.StatusOK || status >= http.StatusBadRequest {
		return false
	}
	ct := h.Get("Content-Type")
	for _, t := range compressibleTypes {
		if strings.HasPrefix(ct, t) {
			return true
		}
	}
	return false
}

func (w *gzipResponseWriter) start() error {
	w.decided = true
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")

	gzw, ok := w.pool.Get().(*gzip.Writer)
	if !ok {
		gzw = gzip.NewWriter(io.Discard)
	}
	gzw.Reset(w.ResponseWriter)
	w.gzw = gzw

	pending := w.pending
	w.pending = nil
	_, err := w.gzw.Write(pending)
	return err
}

func (w *gzipResponseWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
}

func (w *gzipResponseWriter) Write(p []byte) (int, error) {
	if !w.decided {
		if !w.eligible {
			w.eligible = w.compressible()
			if !w.eligible {
				w.decided = true
				return w.ResponseWriter.Write(p)
			}
		}
		w.pending = append(w.pending, p...)
		if len(w.pending) < w.min {
			return len(p), nil
		}
		if err := w.start(); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	if w.gzw != nil {
		return w.gzw.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Close flushes a body that stayed below the threshold or finishes the gzip stream.
func (w *gzipResponseWriter) Close() error {
	if !w.decided && len(w.pending) > 0 {
		w.decided = true
		pending := w.pending
		w.pending = nil
		if _, err := w.ResponseWriter.Write(pending); err != nil {
			return err
		}
	}
	if w.gzw == nil {
		return nil
	}
	err := w.gzw.Close()
	w.gzw.Reset(io.Discard)
	w.pool.Put(w.gzw)
	w.gzw = nil
	return err
}

// GzipResponse compresses successful JSON, HTML and plain text responses for clients that accept gzip.
// Responses that already carry a Content-Encoding pass through untouched.
func GzipResponse(opts ...GzipOption) gin.HandlerFunc {
	cfg := gzipConfig{level: gzip.DefaultCompression}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.level < gzip.HuffmanOnly || cfg.level > gzip.BestCompression {
		cfg.level = gzip.DefaultCompression
	}
	pool := &sync.Pool{New: func() any {
		gzw, _ := gzip.NewWriterLevel(io.Discard, cfg.level)
		return gzw
	}}

	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("Accept-Encoding")), "gzip") {
			c.Next()
			return
		}
		for _, p := range cfg.skip {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}
		grw := &gzipResponseWriter{ResponseWriter: c.Writer, pool: pool, min: cfg.minLength}
		c.Writer = grw
		c.Next()
		if err := grw.Close(); err != nil {
			_ = c.Error(err)
		}
	}
}

package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vshulcz/dslbridge/internal/adapters/http/ginserver/middlewares"
)

func NewRouter(h *Handler, logger *zap.Logger, mws ...gin.HandlerFunc) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()

	r.Use(gin.Recovery(), middlewares.ZapLogger(logger))
	for _, mw := range mws {
		r.Use(mw)
	}

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/", h.Index)
	r.GET("/ping", h.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/api/v1/snapshot", h.SnapshotJSON)
	if h.d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.d.Metrics))
	}

	return r
}

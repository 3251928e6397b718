package ginserver

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/dslbridge/internal/adapters/collector/runtime"
	"github.com/vshulcz/dslbridge/internal/domain"
)

type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// Liveness reports how long ago the device session last made progress.
type Liveness interface {
	Age() time.Duration
}

type ProcessStats interface {
	Snapshot() runtime.Stats
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the read-only views the status server exposes. Only Store is required.
type Deps struct {
	Store    SnapshotSource
	Liveness Liveness
	Process  ProcessStats
	DB       Pinger
	Metrics  http.Handler
	Deadline time.Duration
}

// Handler exposes the bridge state over HTTP.
type Handler struct {
	d Deps
}

func NewHandler(d Deps) *Handler {
	return &Handler{d: d}
}

type healthResponse struct {
	Process  *runtime.Stats `json:"process,omitempty"`
	Status   string         `json:"status"`
	Age      float64        `json:"last_progress_age_seconds"`
	Deadline float64        `json:"deadline_seconds"`
}

// Ping handles `GET /ping`. With a database configured it reports the database health.
func (h *Handler) Ping(c *gin.Context) {
	if h.d.DB != nil {
		if err := h.d.DB.Ping(c.Request.Context()); err != nil {
			c.String(http.StatusInternalServerError, "db ping error: %v", err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

// Healthz handles `GET /healthz`: 503 once the session has been silent for longer than the deadline.
func (h *Handler) Healthz(c *gin.Context) {
	resp := healthResponse{Status: "ok", Deadline: h.d.Deadline.Seconds()}
	code := http.StatusOK
	if h.d.Liveness != nil {
		age := h.d.Liveness.Age()
		resp.Age = age.Seconds()
		if h.d.Deadline > 0 && age > h.d.Deadline {
			resp.Status = "stale"
			code = http.StatusServiceUnavailable
		}
	}
	if h.d.Process != nil {
		st := h.d.Process.Snapshot()
		resp.Process = &st
	}
	c.JSON(code, resp)
}

// SnapshotJSON handles `GET /api/v1/snapshot` and returns every known metric value.
func (h *Handler) SnapshotJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.d.Store.Snapshot())
}

// Index renders the current snapshot as a small HTML table.
func (h *Handler) Index(c *gin.Context) {
	snap := h.d.Store.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>dslbridge</title>")
	sb.WriteString("<style>body{font-family:system-ui,Arial,sans-serif}table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:6px 10px}</style>")
	sb.WriteString("</head><body>")
	sb.WriteString("<h1>DSL line</h1>")

	sb.WriteString("<table><tr><th>Key</th><th>Value</th></tr>")
	for _, k := range keys {
		sb.WriteString("<tr><td>")
		sb.WriteString(html.EscapeString(k))
		sb.WriteString("</td><td>")
		sb.WriteString(html.EscapeString(formatValue(snap[k])))
		sb.WriteString("</td></tr>")
	}
	sb.WriteString("</table>")

	sb.WriteString("</body></html>")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sb.String()))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"construction-monitor/internal/reports"
	"construction-monitor/internal/shared/config"
	"construction-monitor/internal/shared/metrics"
	"construction-monitor/internal/shared/server/middleware"
	"construction-monitor/internal/shared/server/respond"
	"construction-monitor/internal/shared/storage/object"
	localstore "construction-monitor/internal/shared/storage/object/local"
)

const deepHealthTimeout = 5 * time.Second

// Check probes one dependency for the deep health endpoint.
type Check func(ctx context.Context) error

// RouterDeps carries the handlers and probes the router exposes.
type RouterDeps struct {
	Config         config.Config
	ReportsHandler *reports.Handler
	// Files serves signed local-store URLs. Nil when PDFs live in S3.
	Files  *localstore.Store
	Checks map[string]Check
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", healthHandler(deps.Checks))
	r.GET("/metrics", metrics.Handler())
	if deps.Files != nil {
		r.GET("/files/*key", filesHandler(deps.Files))
	}

	api := r.Group("/api")
	if deps.ReportsHandler != nil {
		deps.ReportsHandler.RegisterRoutes(api)
	}
	return r
}

func healthHandler(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("deep") == "" || len(checks) == 0 {
			respond.OK(c, gin.H{"ok": true})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), deepHealthTimeout)
		defer cancel()

		ok := true
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				ok = false
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": results})
	}
}

func filesHandler(files *localstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if err := files.Verify(key, c.Query("expires"), c.Query("signature")); err != nil {
			respond.Error(c, http.StatusForbidden, "forbidden", "Link de download inválido ou expirado", nil)
			return
		}

		rc, err := files.Open(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "Arquivo não encontrado", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao ler arquivo", nil)
			return
		}
		defer rc.Close()

		meta, _ := files.Meta(key)
		contentType := meta.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if meta.ContentDisposition != "" {
			c.Header("Content-Disposition", meta.ContentDisposition)
		}
		c.Header("Content-Type", contentType)
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, rc)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":3000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

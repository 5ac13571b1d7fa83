package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"defect-detective-web/internal/detective"
	"defect-detective-web/internal/shared/config"
	"defect-detective-web/internal/shared/metrics"
	"defect-detective-web/internal/shared/server/middleware"
	"defect-detective-web/internal/shared/server/respond"
	"defect-detective-web/internal/web"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	client, err := detective.NewClient(cfg.BackendURL, time.Duration(cfg.AnalyzeTimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("detection client: %w", err)
	}

	ui := web.NewHandler(client, cfg.HistoryLimit)
	ui.RegisterRoutes(r)

	r.GET("/healthz", func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	return r, nil
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

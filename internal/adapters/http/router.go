package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/metrics"
	transport "github.com/dkeye/Chat/internal/transport/http"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.SignalWSController, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ChatSessions", store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil && cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapH(metrics.Handler(gatherer)))
	}

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	h := &transport.Handlers{Router: ctl.Orch.Router, Registry: ctl.Orch.Registry}
	ice := cfg.WebRTC()

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})
	api.GET("/online", h.HandleOnline)
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, ice)
	})
	h.RegisterInternal(api.Group("/internal", transport.RequireInternalKey(cfg.InternalKey)))

	return r
}

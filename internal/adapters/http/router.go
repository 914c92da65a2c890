package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dkeye/meethub/internal/adapters/signal"
	"github.com/dkeye/meethub/internal/app/orch"
	"github.com/dkeye/meethub/internal/config"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// SetupRouter wires the websocket endpoint and the read-only inspection API.
// gatherer may be nil when metrics are disabled.
func SetupRouter(ctx context.Context, cfg *config.Config, hub *orch.Hub, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))

	ctrl := signal.NewSignalWSController(hub, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		SendBuffer:     cfg.SendBuffer,
		WriteWait:      cfg.WriteWait,
		RatePerSecond:  cfg.RateLimit.PerSecond,
		RateBurst:      cfg.RateLimit.Burst,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	ws := func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	}
	r.GET("/ws", ws)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": hub.Rooms.Len()})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/ws", ws)

	rooms := api.Group("/rooms", authMiddleware(hub))
	rooms.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.RoomsOf(identity(c).UserID))
	})
	rooms.GET("/:meetingId/participants", func(c *gin.Context) {
		m := domain.MeetingID(c.Param("meetingId"))
		if hub.Rooms.Size(m) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if !hub.IsMember(m, identity(c).UserID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this meeting"})
			return
		}
		c.JSON(http.StatusOK, hub.Roster(m))
	})

	log.Info().Str("module", "adapters.http").Bool("metrics", gatherer != nil).Msg("router setup")
	return r
}

const identityKey = "identity"

// authMiddleware accepts the same token as the websocket, from an
// "Authorization: Bearer" header or the token query parameter.
func authMiddleware(hub *orch.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		id, err := hub.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unauthorized")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) *domain.Identity {
	return c.MustGet(identityKey).(*domain.Identity)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization")
	return cors.New(cc)
}

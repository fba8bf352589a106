package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "support-relay-backend/docs"
	"support-relay-backend/internal/common/config"
	"support-relay-backend/internal/common/middleware"
	"support-relay-backend/internal/domain/chat"
	convhttp "support-relay-backend/internal/features/conversation/delivery/http"
	convservice "support-relay-backend/internal/features/conversation/service"
	identityhttp "support-relay-backend/internal/features/identity/delivery/http"
	identity "support-relay-backend/internal/features/identity/service"
	relayhttp "support-relay-backend/internal/features/relay/delivery/http"
	relay "support-relay-backend/internal/features/relay/service"
	telegramhttp "support-relay-backend/internal/features/telegram/delivery/http"
	telegram "support-relay-backend/internal/features/telegram/service"
	"support-relay-backend/internal/realtime"
)

const serviceName = "support-relay-backend"

// Pinger is a dependency probed by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps is everything the router serves.
type Deps struct {
	Config        *config.Config
	Store         chat.Store
	Identity      *identity.Service
	Conversations *convservice.Service
	Relay         *relay.Service
	Rooms         *realtime.Rooms
	// Bot is nil when Telegram is disabled or runs in polling mode.
	Bot telegram.UpdateHandler
	// Extra readiness probes keyed by name, e.g. "redis".
	Probes map[string]Pinger
}

// NewRouter builds the gin engine with middleware and every route wired.
func NewRouter(d Deps) *gin.Engine {
	if !d.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(cors.New(corsConfig(d.Config.Server.Origins)))

	registerProbes(router, d)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	ws := realtime.NewHandler(d.Rooms, d.Identity, d.Config.Realtime.SendBuffer, checkOrigin(d.Config.Server.Origins))
	router.GET("/ws", ws.Handle)

	api := router.Group("/api")
	identityhttp.NewAuthHandler(d.Identity).RegisterRoutes(api)
	convhttp.NewConversationHandler(d.Conversations, d.Identity).RegisterRoutes(api)
	relayhttp.NewMessageHandler(d.Relay, d.Identity).RegisterRoutes(api)
	if d.Bot != nil {
		telegramhttp.NewWebhookHandler(d.Bot, d.Config.Telegram.WebhookSecret).RegisterRoutes(api)
	}

	return router
}

func registerProbes(router *gin.Engine, d Deps) {
	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	}
	router.GET("/health", health)
	router.GET("/api/health", health)

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "database unavailable",
				"details": err.Error(),
			})
			return
		}
		for name, p := range d.Probes {
			if err := p.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   name + " unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept", middleware.InitDataHeader}
	return cfg
}

// checkOrigin applies the CORS allow-list to websocket upgrades.
func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

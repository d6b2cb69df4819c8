package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evetabi/prediction/internal/api/handler"
	"github.com/evetabi/prediction/internal/api/middleware"
	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/ws"
)

// RouterDeps bundles every dependency needed to build the public router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Bets  handler.BetStore
	Users handler.UserLookup
	Seeds handler.SeedCalendar
	Hub   *ws.Hub
	Cfg   *config.Config
}

// SetupRouter creates and configures the public Gin engine: read-only bet
// history, the provably-fair transparency endpoints, and the WebSocket feed.
// There is no login surface — a user's identity is their deposit address,
// and placing a bet means sending Bitcoin, not calling this API.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	betH := handler.NewBetHandler(deps.Bets, deps.Users)
	fairnessH := handler.NewFairnessHandler(deps.Seeds)

	// ── Rate limiter ─────────────────────────────────────────────────────────
	readRL := middleware.RateLimitMiddleware(30) // 30 req/s per IP

	api := r.Group("/api")
	api.Use(readRL)
	{
		bets := api.Group("/bets")
		{
			bets.GET("/:id", betH.GetByID)
			bets.GET("/address/:address", betH.GetByAddress)
		}

		fairness := api.Group("/fairness")
		{
			fairness.GET("/seeds", fairnessH.GetCalendar)
			fairness.GET("/verify", fairnessH.VerifyRoll)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			// Production: allow only evetabi.com (and www.)
			allowed := map[string]bool{
				"https://evetabi.com":     true,
				"https://www.evetabi.com": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

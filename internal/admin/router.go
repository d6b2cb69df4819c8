package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/evetabi/prediction/internal/config"
)

// Deps bundles every dependency the admin router needs.
type Deps struct {
	Wallets    WalletStore
	Utxos      UtxoSource
	Withdrawer Withdrawer
	Seeds      SeedRegistry
	Stats      StatsSource
	Cfg        *config.Config
}

// SetupRouter creates the admin Gin engine (cmd/backoffice's binary). Every
// route requires both an IP-allowlist match and the admin API key, per
// spec.md §4.10.
func SetupRouter(deps Deps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Admin.IPWhitelist))
	r.Use(apiKeyMiddleware(deps.Cfg.Admin.APIKey))

	walletH := NewWalletHandler(deps.Wallets, deps.Utxos, deps.Withdrawer, deps.Cfg.Admin.ColdStorageAddress)
	seedH := NewSeedHandler(deps.Seeds)
	statsH := NewStatsHandler(deps.Stats)

	admin := r.Group("/admin")
	{
		w := admin.Group("/wallets")
		{
			w.GET("", walletH.List)
			w.POST("", walletH.Create)
			w.GET("/:id", walletH.Detail)
			w.PUT("/:id", walletH.Update)
			w.DELETE("/:id", walletH.Delete)
			w.POST("/:id/withdraw", walletH.Withdraw)
		}

		s := admin.Group("/seeds")
		{
			s.GET("", seedH.List)
			s.POST("", seedH.Create)
			s.DELETE("/:id", seedH.Delete)
		}

		admin.GET("/stats", statsH.Summary)
	}

	return r
}

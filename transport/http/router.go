package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/flowauth/internal/ratelimit"
	"github.com/layer-3/flowauth/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// RouterConfig holds the optional pieces of the router
type RouterConfig struct {
	Limiter  *ratelimit.KeyedLimiter // nil disables rate limiting
	Gatherer prometheus.Gatherer     // nil disables /metrics

	// TrustedProxies may set X-Forwarded-For. With none, the client IP used
	// for rate limiting is always the peer address.
	TrustedProxies []string
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, daoService *service.DAOService, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error().Err(err).Strs("trusted_proxies", cfg.TrustedProxies).Msg("invalid trusted proxies, trusting none")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), RequestLogger())

	authHandlers := NewAuthHandlers(authService)
	daoHandlers := NewDAOHandlers(daoService)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	{
		public := v1.Group("")
		public.Use(RateLimit(cfg.Limiter))
		public.POST("/generateNonce", authHandlers.GenerateNonce)
		public.POST("/generateAuthToken", authHandlers.GenerateAuthToken)

		protected := v1.Group("")
		protected.Use(AuthMiddleware(authService))
		protected.POST("/logout", authHandlers.Logout)
		protected.GET("/me", authHandlers.Me)
		protected.POST("/daos", daoHandlers.Create)
	}

	return router
}

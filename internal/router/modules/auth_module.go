package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/minha-cantina/internal/container"
	handlers "github.com/oksasatya/minha-cantina/internal/interface/http"
	"github.com/oksasatya/minha-cantina/internal/interface/middleware"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
)

// AuthModule wires registration, login and session routes.
// Public: POST /auth/register, /auth/login, /auth/refresh (rate limited per IP and route)
// Protected: POST /auth/logout, GET /auth/me
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt}
}

func (m *AuthModule) Name() string { return "auth" }

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	cfg := container.GetConfig()
	var private middleware.AllowFunc
	if cfg.RateLimitBypassPrivate {
		private = middleware.AllowPrivateIP()
	}
	allow := middleware.AnyAllow(private, middleware.AllowCIDRs(cfg.RateLimitAllowList()))
	limiter := middleware.RateLimit(container.GetRedis(), cfg.AuthRateLimit, cfg.AuthRateWindow, middleware.KeyByIPAndPath(), allow)

	auth := rg.Group("/auth")
	auth.POST("/register", limiter, m.Handler.Register)
	auth.POST("/login", limiter, m.Handler.Login)
	auth.POST("/refresh", limiter, m.Handler.Refresh)

	protected := auth.Group("")
	protected.Use(middleware.Auth(container.GetRedis(), m.JWT))
	{
		protected.POST("/logout", m.Handler.Logout)
		protected.GET("/me", m.Handler.Me)
	}
}

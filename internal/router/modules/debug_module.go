package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/minha-cantina/internal/container"
	"github.com/oksasatya/minha-cantina/internal/interface/middleware"
)

// debugRateLimit caps expvar scrapes per client and minute.
const debugRateLimit = 120

// DebugModule serves expvar at /api/debug/vars. Private networks and the
// configured allow-list are never throttled.
type DebugModule struct{}

func NewDebugModule() *DebugModule { return &DebugModule{} }

func (m *DebugModule) Name() string { return "debug" }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	cfg := container.GetConfig()
	allow := middleware.AnyAllow(middleware.AllowPrivateIP(), middleware.AllowCIDRs(cfg.RateLimitAllowList()))
	rl := middleware.RateLimit(container.GetRedis(), debugRateLimit, time.Minute, middleware.KeyByIPAndPath(), allow)
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
}

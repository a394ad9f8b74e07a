package modules

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/minha-cantina/internal/container"
	"github.com/oksasatya/minha-cantina/pkg/response"
)

// HealthModule reports liveness and which optional backends are wired.
type HealthModule struct{}

func NewHealthModule() *HealthModule { return &HealthModule{} }

type healthView struct {
	Storage string          `json:"storage"`
	Redis   string          `json:"redis"`
	Backend map[string]bool `json:"backends"`
}

func (m *HealthModule) Name() string { return "health" }

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", m.health)
}

func (m *HealthModule) health(c *gin.Context) {
	cfg := container.GetConfig()
	view := healthView{
		Storage: "postgres",
		Redis:   "disabled",
		Backend: map[string]bool{
			"search":  container.GetES() != nil,
			"images":  container.GetGCS() != nil && cfg.GCSBucket != "",
			"mailing": container.GetRabbitPub() != nil,
		},
	}
	if cfg.UseMemoryStore() {
		view.Storage = "memory"
	}
	if rdb := container.GetRedis(); rdb != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		view.Redis = "up"
		if err := rdb.Ping(ctx).Err(); err != nil {
			view.Redis = "down"
		}
	}
	response.Success(c, http.StatusOK, view, "ok", nil)
}

package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/minha-cantina/internal/interface/http"
)

type CategoryModule struct {
	Handler *handlers.CategoryHandler
}

func NewCategoryModule(h *handlers.CategoryHandler) *CategoryModule {
	return &CategoryModule{Handler: h}
}

func (m *CategoryModule) Name() string { return "categories" }

func (m *CategoryModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/categories")
	g.POST("", m.Handler.Create)
	g.GET("", m.Handler.List)
	g.GET("/:id", m.Handler.Get)
	g.PATCH("/:id", m.Handler.Rename)
}

type ProductModule struct {
	Handler *handlers.ProductHandler
}

func NewProductModule(h *handlers.ProductHandler) *ProductModule {
	return &ProductModule{Handler: h}
}

func (m *ProductModule) Name() string { return "products" }

func (m *ProductModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/products")
	g.POST("", m.Handler.Create)
	g.GET("", m.Handler.List)
	g.GET("/search", m.Handler.Search)
	g.GET("/:id", m.Handler.Get)
	g.PATCH("/:id/name", m.Handler.Rename)
	g.PATCH("/:id/price", m.Handler.Reprice)
	g.PATCH("/:id/category", m.Handler.Recategorize)
	g.PATCH("/:id/description", m.Handler.Describe)
	g.PUT("/:id/image", m.Handler.UploadImage)
	g.DELETE("/:id", m.Handler.Delete)
}

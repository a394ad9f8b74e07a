package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/internal/application"
	"github.com/oksasatya/minha-cantina/pkg/response"
)

type CategoryHandler struct {
	Svc    *application.CatalogService
	Logger *logrus.Logger
}

func NewCategoryHandler(svc *application.CatalogService, logger *logrus.Logger) *CategoryHandler {
	return &CategoryHandler{Svc: svc, Logger: logger}
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	cat, err := h.Svc.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toCategoryView(cat), "categoria criada", nil)
}

func (h *CategoryHandler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	cat, err := h.Svc.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toCategoryView(cat), "ok", nil)
}

func (h *CategoryHandler) List(c *gin.Context) {
	list, err := h.Svc.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	out := make([]categoryView, 0, len(list))
	for _, cat := range list {
		out = append(out, toCategoryView(cat))
	}
	response.List(c, out, "ok")
}

func (h *CategoryHandler) Rename(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	cat, err := h.Svc.RenameCategory(c.Request.Context(), id, req.Name)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toCategoryView(cat), "categoria atualizada", nil)
}

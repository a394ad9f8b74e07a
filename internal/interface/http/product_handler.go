package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/internal/application"
	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/pkg/response"
)

// maxImageSize caps product image uploads.
const maxImageSize = 5 << 20

type ProductHandler struct {
	Svc    *application.CatalogService
	Logger *logrus.Logger
}

func NewProductHandler(svc *application.CatalogService, logger *logrus.Logger) *ProductHandler {
	return &ProductHandler{Svc: svc, Logger: logger}
}

// Price accepts a JSON number or a numeric string.
type createProductRequest struct {
	Name        string           `json:"name"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	CategoryID  int64            `json:"category_id"`
	Description *string          `json:"description"`
}

type renameProductRequest struct {
	Name string `json:"name"`
}

type repriceProductRequest struct {
	Price *decimal.Decimal `json:"price" binding:"required"`
}

type recategorizeProductRequest struct {
	CategoryID int64 `json:"category_id"`
}

// Description null or absent clears it.
type describeProductRequest struct {
	Description *string `json:"description"`
}

type listProductsQuery struct {
	CategoryID int64 `form:"category_id" binding:"omitempty,gt=0"`
}

type searchProductsQuery struct {
	Q    string `form:"q" binding:"required"`
	Size int    `form:"size" binding:"pagesize"`
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	p, err := h.Svc.CreateProduct(c.Request.Context(), application.CreateProductInput{
		Name:        req.Name,
		Price:       *req.Price,
		CategoryID:  req.CategoryID,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toProductView(p), "produto criado", nil)
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	p, err := h.Svc.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toProductView(p), "ok", nil)
}

func (h *ProductHandler) List(c *gin.Context) {
	var q listProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	list, err := h.Svc.ListProducts(c.Request.Context(), q.CategoryID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	out := make([]productView, 0, len(list))
	for _, p := range list {
		out = append(out, toProductView(p))
	}
	response.List(c, out, "ok")
}

func (h *ProductHandler) Search(c *gin.Context) {
	var q searchProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	docs, err := h.Svc.SearchProducts(c.Request.Context(), q.Q, q.Size)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.List(c, docs, "ok")
}

func (h *ProductHandler) Rename(c *gin.Context) {
	var req renameProductRequest
	h.mutate(c, &req, func(id int64) (*entity.Product, error) {
		return h.Svc.RenameProduct(c.Request.Context(), id, req.Name)
	})
}

func (h *ProductHandler) Reprice(c *gin.Context) {
	var req repriceProductRequest
	h.mutate(c, &req, func(id int64) (*entity.Product, error) {
		return h.Svc.RepriceProduct(c.Request.Context(), id, *req.Price)
	})
}

func (h *ProductHandler) Recategorize(c *gin.Context) {
	var req recategorizeProductRequest
	h.mutate(c, &req, func(id int64) (*entity.Product, error) {
		return h.Svc.RecategorizeProduct(c.Request.Context(), id, req.CategoryID)
	})
}

func (h *ProductHandler) Describe(c *gin.Context) {
	var req describeProductRequest
	h.mutate(c, &req, func(id int64) (*entity.Product, error) {
		return h.Svc.DescribeProduct(c.Request.Context(), id, req.Description)
	})
}

// mutate binds the path id and JSON body into req, then runs apply.
func (h *ProductHandler) mutate(c *gin.Context, req any, apply func(id int64) (*entity.Product, error)) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	if err := c.ShouldBindJSON(req); err != nil {
		respondBindError(c, err)
		return
	}
	p, err := apply(id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toProductView(p), "produto atualizado", nil)
}

func (h *ProductHandler) UploadImage(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageSize)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error[any](c, http.StatusRequestEntityTooLarge, "a imagem excede o limite de 5 MB", map[string]string{"image": "muito grande"})
			return
		}
		response.Error[any](c, http.StatusBadRequest, "arquivo de imagem obrigatório", map[string]string{"image": "é obrigatório"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	defer func() { _ = f.Close() }()

	p, err := h.Svc.UploadProductImage(c.Request.Context(), id, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toProductView(p), "imagem enviada", nil)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	if err := h.Svc.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": true}, "produto removido", nil)
}

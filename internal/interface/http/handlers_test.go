package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/minha-cantina/internal/application"
	"github.com/oksasatya/minha-cantina/internal/infrastructure/memory"
	"github.com/oksasatya/minha-cantina/internal/interface/middleware"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
	"github.com/oksasatya/minha-cantina/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	gw     *memory.Gateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := memory.NewGateway()
	jwt := helpers.NewJWTManager("access", "refresh", time.Minute, time.Hour)
	catalog := application.NewCatalogService(gw, nil, nil, nil, "", nil, "")
	users := application.NewUserService(gw, jwt, nil, nil, helpers.CredentialPlain, nil)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	api := r.Group("/api")

	ah := NewAuthHandler(users, nil, "localhost", false)
	api.POST("/auth/register", ah.Register)
	api.POST("/auth/login", ah.Login)
	api.POST("/auth/refresh", ah.Refresh)
	api.POST("/auth/logout", middleware.Auth(nil, jwt), ah.Logout)
	api.GET("/auth/me", middleware.Auth(nil, jwt), ah.Me)

	ch := NewCategoryHandler(catalog, nil)
	api.POST("/categories", ch.Create)
	api.GET("/categories", ch.List)
	api.GET("/categories/:id", ch.Get)
	api.PATCH("/categories/:id", ch.Rename)

	ph := NewProductHandler(catalog, nil)
	api.POST("/products", ph.Create)
	api.GET("/products", ph.List)
	api.GET("/products/search", ph.Search)
	api.GET("/products/:id", ph.Get)
	api.PATCH("/products/:id/name", ph.Rename)
	api.PATCH("/products/:id/price", ph.Reprice)
	api.PATCH("/products/:id/category", ph.Recategorize)
	api.PATCH("/products/:id/description", ph.Describe)
	api.PUT("/products/:id/image", ph.UploadImage)
	api.DELETE("/products/:id", ph.Delete)

	return &testServer{engine: r, gw: gw}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (s *testServer) createCategory(t *testing.T, name string) int64 {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/categories", fmt.Sprintf(`{"name":%q}`, name))
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	return decode[categoryView](t, env.Data).ID
}

func TestCategoryBlankNameIsValidationError(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/categories", `{"name":"  "}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "nome da categoria")
	body := decode[errorBody](t, env.Error)
	assert.Equal(t, "validation", body.Kind)
	assert.Equal(t, "category name", body.Field)
}

func TestCategoryDuplicateIsConflict(t *testing.T) {
	s := newTestServer(t)
	s.createCategory(t, "Bebidas")

	w, env := s.do(t, http.MethodPost, "/api/categories", `{"name":"Bebidas"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "essa categoria já existe", env.Message)
	assert.Equal(t, "duplicate", decode[errorBody](t, env.Error).Kind)
}

func TestCategoryLookup(t *testing.T) {
	s := newTestServer(t)
	id := s.createCategory(t, "Salgados")
	s.createCategory(t, "Assados")

	w, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Salgados", decode[categoryView](t, env.Data).Name)

	w, env = s.do(t, http.MethodGet, "/api/categories/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "categoria não encontrada", env.Message)

	w, _ = s.do(t, http.MethodGet, "/api/categories/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]categoryView](t, env.Data)
	require.Len(t, list, 2)
	assert.Equal(t, "Assados", list[0].Name)

	w, env = s.do(t, http.MethodPatch, fmt.Sprintf("/api/categories/%d", id), `{"name":"Salgados Fritos"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Salgados Fritos", decode[categoryView](t, env.Data).Name)
}

func TestProductLifecycle(t *testing.T) {
	s := newTestServer(t)
	salgados := s.createCategory(t, "Salgados")
	bebidas := s.createCategory(t, "Bebidas")

	w, env := s.do(t, http.MethodPost, "/api/products", fmt.Sprintf(`{"name":"Coxinha","price":"6.5","category_id":%d,"description":"frango"}`, salgados))
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	p := decode[productView](t, env.Data)
	assert.Equal(t, "6.50", p.Price)
	assert.Equal(t, "Salgados", p.CategoryName)
	require.NotNil(t, p.Description)
	assert.Equal(t, "frango", *p.Description)
	path := fmt.Sprintf("/api/products/%d", p.ID)

	w, env = s.do(t, http.MethodPatch, path+"/price", `{"price":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "price", decode[errorBody](t, env.Error).Field)

	w, _ = s.do(t, http.MethodPatch, path+"/price", `{"price":7.25}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodPatch, path+"/name", `{"name":"Coxinha de Frango"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodPatch, path+"/category", fmt.Sprintf(`{"category_id":%d}`, bebidas))
	require.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(t, http.MethodPatch, path+"/description", `{"description":null}`)
	require.Equal(t, http.StatusOK, w.Code)

	p = decode[productView](t, env.Data)
	assert.Equal(t, "Coxinha de Frango", p.Name)
	assert.Equal(t, "7.25", p.Price)
	assert.Equal(t, "Bebidas", p.CategoryName)
	assert.Nil(t, p.Description)

	w, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/products?category_id=%d", bebidas), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]productView](t, env.Data), 1)

	w, _ = s.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "produto não encontrado", env.Message)
}

func TestProductCreateFailures(t *testing.T) {
	s := newTestServer(t)
	catID := s.createCategory(t, "Salgados")

	w, env := s.do(t, http.MethodPost, "/api/products", `{"name":"Coxinha","category_id":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "price is required")
	assert.Contains(t, string(env.Error), "price")

	w, env = s.do(t, http.MethodPost, "/api/products", `{"name":"Coxinha","price":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "category", decode[errorBody](t, env.Error).Field)

	w, _ = s.do(t, http.MethodPost, "/api/products", `{"name":"Coxinha","price":1,"category_id":404}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, price := range []string{`"5.505"`, `10000000000`} {
		w, env = s.do(t, http.MethodPost, "/api/products", fmt.Sprintf(`{"name":"Coxinha","price":%s,"category_id":%d}`, price, catID))
		assert.Equal(t, http.StatusBadRequest, w.Code, price)
		assert.Equal(t, "price", decode[errorBody](t, env.Error).Field)
	}

	body := fmt.Sprintf(`{"name":"Coxinha","price":1,"category_id":%d}`, catID)
	w, _ = s.do(t, http.MethodPost, "/api/products", body)
	require.Equal(t, http.StatusCreated, w.Code)
	w, env = s.do(t, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "esse produto já existe", env.Message)
}

func TestUnexpectedFailureIsGeneric(t *testing.T) {
	s := newTestServer(t)
	s.gw.FailNext = errors.New("pq: connection refused on 10.0.0.5")

	w, env := s.do(t, http.MethodPost, "/api/categories", `{"name":"Bebidas"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "ocorreu um erro inesperado", env.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestSearchWithoutIndex(t *testing.T) {
	s := newTestServer(t)
	catID := s.createCategory(t, "Salgados")
	for _, name := range []string{"Pastel", "Pão de Queijo"} {
		w, _ := s.do(t, http.MethodPost, "/api/products", fmt.Sprintf(`{"name":%q,"price":3,"category_id":%d}`, name, catID))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, env := s.do(t, http.MethodGet, "/api/products/search?q=queijo", "")
	require.Equal(t, http.StatusOK, w.Code)
	docs := decode[[]application.ProductDocument](t, env.Data)
	require.Len(t, docs, 1)
	assert.Equal(t, "Pão de Queijo", docs[0].Name)

	w, _ = s.do(t, http.MethodGet, "/api/products/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/products/search?q=x&size=500", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadImageWithoutStorage(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "coxinha.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/products/1/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUploadImageTooLarge(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "coxinha.png")
	require.NoError(t, err)
	_, _ = fw.Write(bytes.Repeat([]byte{0xff}, maxImageSize+1))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/products/1/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "5 MB")
}

func TestUploadImageMissingFile(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/products/1/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ana","username":"ana","password":"segredo"}`)
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	assert.NotContains(t, string(env.Data), "segredo")

	w, env = s.do(t, http.MethodPost, "/api/auth/register", `{"name":"Outra","username":"ana","password":"x"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "usuário já existe", env.Message)

	w, env = s.do(t, http.MethodPost, "/api/auth/register", `{"name":"","username":"bia","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user name", decode[errorBody](t, env.Error).Field)

	w, wrong := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ana","password":"errado"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, unknown := s.do(t, http.MethodPost, "/api/auth/login", `{"username":"zoe","password":"segredo"}`)
	assert.Equal(t, wrong.Message, unknown.Message)
	assert.Equal(t, "usuário e/ou senha estão incorretos", wrong.Message)

	w, _ = s.do(t, http.MethodPost, "/api/auth/login", `{"username":"ana","password":"segredo"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var access *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == helpers.AccessCookie {
			access = c
		}
	}
	require.NotNil(t, access)

	w, env = s.do(t, http.MethodGet, "/api/auth/me", "", access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana", decode[userView](t, env.Data).Handle)

	w, _ = s.do(t, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/logout", "", access)
	assert.Equal(t, http.StatusOK, w.Code)
}

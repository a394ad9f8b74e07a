package application

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
	"github.com/oksasatya/minha-cantina/internal/infrastructure/memory"
)

func newCatalog(t *testing.T) (*CatalogService, *memory.Gateway) {
	t.Helper()
	gw := memory.NewGateway()
	return NewCatalogService(gw, nil, nil, nil, "", nil, ""), gw
}

func mustCategory(t *testing.T, s *CatalogService, name string) int64 {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), name)
	require.NoError(t, err)
	return c.ID()
}

func TestCreateCategory(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()

	c, err := s.CreateCategory(ctx, "Salgados")
	require.NoError(t, err)
	assert.NotZero(t, c.ID())

	got, err := s.GetCategory(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, "Salgados", got.Name())
}

func TestCreateCategoryBlankName(t *testing.T) {
	s, _ := newCatalog(t)

	_, err := s.CreateCategory(context.Background(), "   ")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, e.Kind)
	assert.Equal(t, "category name", e.Field)
	assert.Contains(t, e.Message, "nome da categoria")
}

func TestCreateCategoryDuplicate(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	mustCategory(t, s, "Bebidas")

	_, err := s.CreateCategory(ctx, "Bebidas")
	require.Error(t, err)
	assert.Equal(t, apperr.Duplicate, apperr.KindOf(err))
	assert.Equal(t, "essa categoria já existe", err.Error())

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDuplicateCaughtAtCommit(t *testing.T) {
	s, gw := newCatalog(t)
	// The pre-check passes but the store rejects the commit.
	gw.FailNext = &memory.ConstraintError{Constraint: "categories_name_key", Value: "Bebidas"}

	_, err := s.CreateCategory(context.Background(), "Bebidas")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.Duplicate, Entity: apperr.EntityCategory}))
}

func TestUnexpectedCommitFailureIsGeneric(t *testing.T) {
	s, gw := newCatalog(t)
	cause := errors.New("connection reset by peer")
	gw.FailNext = cause

	_, err := s.CreateCategory(context.Background(), "Assados")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Unexpected, e.Kind)
	assert.Equal(t, apperr.GenericMessage, e.Error())
	assert.NotContains(t, e.Error(), "connection reset")
	assert.ErrorIs(t, err, cause)
}

func TestGetCategoryNotFound(t *testing.T) {
	s, _ := newCatalog(t)

	_, err := s.GetCategory(context.Background(), 99)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, "categoria não encontrada", err.Error())
}

func TestRenameCategory(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	id := mustCategory(t, s, "Salgados")
	mustCategory(t, s, "Bebidas")

	_, err := s.RenameCategory(ctx, id, "Bebidas")
	assert.Equal(t, apperr.Duplicate, apperr.KindOf(err))

	_, err = s.RenameCategory(ctx, id, "")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "new category name", e.Field)

	c, err := s.RenameCategory(ctx, id, "Salgados")
	require.NoError(t, err, "keeping its own name is not a duplicate")
	assert.Equal(t, "Salgados", c.Name())

	_, err = s.RenameCategory(ctx, id, "Salgados Fritos")
	require.NoError(t, err)
	got, err := s.GetCategory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Salgados Fritos", got.Name())
}

func TestCreateProduct(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	catID := mustCategory(t, s, "Salgados")
	desc := "frango com catupiry"

	p, err := s.CreateProduct(ctx, CreateProductInput{Name: "Coxinha", Price: decimal.RequireFromString("6.50"), CategoryID: catID, Description: &desc})
	require.NoError(t, err)
	assert.NotZero(t, p.ID())

	got, err := s.GetProduct(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, "Coxinha", got.Name())
	assert.True(t, got.Price().Equal(decimal.RequireFromString("6.5")))
	assert.Equal(t, "Salgados", got.Category().Name())
	d, ok := got.Description()
	assert.True(t, ok)
	assert.Equal(t, desc, d)
}

func TestCreateProductFailures(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	catID := mustCategory(t, s, "Salgados")
	_, err := s.CreateProduct(ctx, CreateProductInput{Name: "Coxinha", Price: decimal.NewFromInt(6), CategoryID: catID})
	require.NoError(t, err)

	cases := []struct {
		name  string
		in    CreateProductInput
		kind  apperr.Kind
		field string
	}{
		{"blank name", CreateProductInput{Name: " ", Price: decimal.NewFromInt(1), CategoryID: catID}, apperr.Validation, "product name"},
		{"no category", CreateProductInput{Name: "Pastel", Price: decimal.NewFromInt(1)}, apperr.Validation, "category"},
		{"negative price", CreateProductInput{Name: "Pastel", Price: decimal.NewFromInt(-1), CategoryID: catID}, apperr.Validation, "price"},
		{"unknown category", CreateProductInput{Name: "Pastel", Price: decimal.NewFromInt(1), CategoryID: 404}, apperr.NotFound, ""},
		{"duplicate name", CreateProductInput{Name: "Coxinha", Price: decimal.NewFromInt(1), CategoryID: catID}, apperr.Duplicate, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateProduct(ctx, tc.in)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, e.Kind)
			assert.Equal(t, tc.field, e.Field)
		})
	}

	list, err := s.ListProducts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProductMutations(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	salgados := mustCategory(t, s, "Salgados")
	bebidas := mustCategory(t, s, "Bebidas")
	p, err := s.CreateProduct(ctx, CreateProductInput{Name: "Suco", Price: decimal.NewFromInt(5), CategoryID: salgados})
	require.NoError(t, err)
	id := p.ID()

	_, err = s.RenameProduct(ctx, id, "Suco de Laranja")
	require.NoError(t, err)

	_, err = s.RepriceProduct(ctx, id, decimal.RequireFromString("-0.01"))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	_, err = s.RepriceProduct(ctx, id, decimal.RequireFromString("7.25"))
	require.NoError(t, err)

	_, err = s.RecategorizeProduct(ctx, id, 0)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	_, err = s.RecategorizeProduct(ctx, id, 999)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	_, err = s.RecategorizeProduct(ctx, id, bebidas)
	require.NoError(t, err)

	text := "500ml"
	_, err = s.DescribeProduct(ctx, id, &text)
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Suco de Laranja", got.Name())
	assert.True(t, got.Price().Equal(decimal.RequireFromString("7.25")))
	assert.Equal(t, "Bebidas", got.Category().Name())
	d, _ := got.Description()
	assert.Equal(t, "500ml", d)

	byCategory, err := s.ListProducts(ctx, bebidas)
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)
	byCategory, err = s.ListProducts(ctx, salgados)
	require.NoError(t, err)
	assert.Empty(t, byCategory)

	_, err = s.DescribeProduct(ctx, id, nil)
	require.NoError(t, err)
	got, err = s.GetProduct(ctx, id)
	require.NoError(t, err)
	_, ok := got.Description()
	assert.False(t, ok)
}

func TestFailedMutationLeavesStoreUntouched(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	catID := mustCategory(t, s, "Salgados")
	a, err := s.CreateProduct(ctx, CreateProductInput{Name: "Coxinha", Price: decimal.NewFromInt(6), CategoryID: catID})
	require.NoError(t, err)
	_, err = s.CreateProduct(ctx, CreateProductInput{Name: "Kibe", Price: decimal.NewFromInt(6), CategoryID: catID})
	require.NoError(t, err)

	_, err = s.RenameProduct(ctx, a.ID(), "Kibe")
	assert.Equal(t, apperr.Duplicate, apperr.KindOf(err))

	got, err := s.GetProduct(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "Coxinha", got.Name())
}

func TestDeleteProduct(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	catID := mustCategory(t, s, "Assados")
	p, err := s.CreateProduct(ctx, CreateProductInput{Name: "Esfiha", Price: decimal.NewFromInt(4), CategoryID: catID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProduct(ctx, p.ID()))

	_, err = s.GetProduct(ctx, p.ID())
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	err = s.DeleteProduct(ctx, p.ID())
	assert.Equal(t, "produto não encontrado", err.Error())
}

func TestSearchProductsWithoutIndex(t *testing.T) {
	s, _ := newCatalog(t)
	ctx := context.Background()
	catID := mustCategory(t, s, "Salgados")
	for _, name := range []string{"Coxinha", "Pastel de Queijo", "Pão de Queijo"} {
		_, err := s.CreateProduct(ctx, CreateProductInput{Name: name, Price: decimal.NewFromInt(5), CategoryID: catID})
		require.NoError(t, err)
	}

	docs, err := s.SearchProducts(ctx, "queijo", 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Salgados", docs[0].CategoryName)
	assert.Equal(t, "5.00", docs[0].Price)

	docs, err = s.SearchProducts(ctx, "queijo", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUploadProductImageWithoutStorage(t *testing.T) {
	s, _ := newCatalog(t)

	_, err := s.UploadProductImage(context.Background(), 1, bytes.NewReader([]byte("png")), "a.png", "image/png")
	assert.ErrorIs(t, err, ErrImageStorageDisabled)
}

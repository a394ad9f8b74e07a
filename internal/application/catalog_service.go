package application

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	repo "github.com/oksasatya/minha-cantina/internal/domain/repository"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
)

var ErrImageStorageDisabled = errors.New("armazenamento de imagens não configurado")

const categoriesCacheTTL = 10 * time.Minute

// categoriesGenKey is bumped by every category write. Cached lists live under
// a key carrying the generation they were read at, so a list read before a
// write can never be served after it.
var categoriesGenKey = helpers.RedisKey("catalog", "categories", "gen")

func categoriesCacheKey(gen int64) string {
	return helpers.RedisKey("catalog", "categories", strconv.FormatInt(gen, 10))
}

type CatalogService struct {
	db              store
	Redis           *redis.Client
	Logger          *logrus.Logger
	ES              *elasticsearch.Client
	ESProductsIndex string
	GCS             *storage.Client
	GCSBucket       string
}

func NewCatalogService(gw repo.Gateway, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esProductsIndex string, gcs *storage.Client, gcsBucket string) *CatalogService {
	return &CatalogService{
		db:              newStore(gw, logger),
		Redis:           rdb,
		Logger:          logger,
		ES:              es,
		ESProductsIndex: esProductsIndex,
		GCS:             gcs,
		GCSBucket:       gcsBucket,
	}
}

type CreateProductInput struct {
	Name        string
	Price       decimal.Decimal
	CategoryID  int64
	Description *string
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*entity.Category, error) {
	c, err := entity.NewCategory(name)
	if err != nil {
		return nil, err
	}
	found, err := s.db.gw.Categories().FindByName(ctx, name)
	if err := s.db.taken(found, err, 0, apperr.EntityCategory); err != nil {
		return nil, err
	}
	if err := s.db.commit(ctx, apperr.EntityCategory, func(uow repo.UnitOfWork) { uow.Add(c) }); err != nil {
		return nil, err
	}
	s.invalidateCategories(ctx)
	return c, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*entity.Category, error) {
	c, err := s.db.gw.Categories().FindByID(ctx, id)
	if err != nil {
		return nil, s.db.lookup(err, apperr.EntityCategory)
	}
	return c, nil
}

type cachedCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListCategories serves from Redis when available.
func (s *CatalogService) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	key, cacheable := s.categoriesKey(ctx)
	if cacheable {
		var cached []cachedCategory
		hit, err := helpers.RedisGetJSON(ctx, s.Redis, key, &cached)
		if err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("redis get failed")
		}
		if hit {
			if out, err := restoreCategories(cached); err == nil {
				return out, nil
			}
		}
	}

	list, err := s.db.gw.Categories().List(ctx)
	if err != nil {
		return nil, s.db.lookup(err, apperr.EntityCategory)
	}

	if cacheable {
		cached := make([]cachedCategory, 0, len(list))
		for _, c := range list {
			cached = append(cached, cachedCategory{ID: c.ID(), Name: c.Name()})
		}
		if err := helpers.RedisSetJSON(ctx, s.Redis, key, cached, categoriesCacheTTL); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("redis set failed")
		}
	}
	return list, nil
}

// categoriesKey resolves the cache key for the current generation. It must be
// read before the store so the list is filed under the generation it belongs to.
func (s *CatalogService) categoriesKey(ctx context.Context) (string, bool) {
	if s.Redis == nil {
		return "", false
	}
	gen, err := s.Redis.Get(ctx, categoriesGenKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		gen = 0
	case err != nil:
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("key", categoriesGenKey).Warn("redis get failed")
		}
		return "", false
	}
	return categoriesCacheKey(gen), true
}

func restoreCategories(cached []cachedCategory) ([]*entity.Category, error) {
	out := make([]*entity.Category, 0, len(cached))
	for _, cc := range cached {
		c, err := entity.RestoreCategory(cc.ID, cc.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CatalogService) invalidateCategories(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, categoriesGenKey).Err(); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("key", categoriesGenKey).Warn("redis incr failed")
	}
}

// RenameCategory also refreshes the search documents of the category's products.
func (s *CatalogService) RenameCategory(ctx context.Context, id int64, newName string) (*entity.Category, error) {
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Rename(newName); err != nil {
		return nil, err
	}
	found, err := s.db.gw.Categories().FindByName(ctx, newName)
	if err := s.db.taken(found, err, c.ID(), apperr.EntityCategory); err != nil {
		return nil, err
	}
	if err := s.db.commit(ctx, apperr.EntityCategory, func(uow repo.UnitOfWork) { uow.Update(c) }); err != nil {
		return nil, err
	}
	s.invalidateCategories(ctx)

	products, err := s.db.gw.Products().ListByCategory(ctx, c.ID())
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("category_id", c.ID()).Warn("reindex after category rename skipped")
		}
		return c, nil
	}
	for _, p := range products {
		_ = s.indexProduct(ctx, p)
	}
	return c, nil
}

// CreateProduct with CategoryID 0 reaches the entity without a category and
// fails its invariant; an unknown id is NotFound.
func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (*entity.Product, error) {
	var category *entity.Category
	if in.CategoryID != 0 {
		c, err := s.GetCategory(ctx, in.CategoryID)
		if err != nil {
			return nil, err
		}
		category = c
	}

	var opts []entity.ProductOption
	if in.Description != nil {
		opts = append(opts, entity.WithDescription(*in.Description))
	}
	p, err := entity.NewProduct(in.Name, in.Price, category, opts...)
	if err != nil {
		return nil, err
	}
	found, err := s.db.gw.Products().FindByName(ctx, in.Name)
	if err := s.db.taken(found, err, 0, apperr.EntityProduct); err != nil {
		return nil, err
	}
	if err := s.db.commit(ctx, apperr.EntityProduct, func(uow repo.UnitOfWork) { uow.Add(p) }); err != nil {
		return nil, err
	}
	_ = s.indexProduct(ctx, p)
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := s.db.gw.Products().FindByID(ctx, id)
	if err != nil {
		return nil, s.db.lookup(err, apperr.EntityProduct)
	}
	return p, nil
}

// ListProducts lists every product, or only one category's when categoryID is set.
func (s *CatalogService) ListProducts(ctx context.Context, categoryID int64) ([]*entity.Product, error) {
	var (
		list []*entity.Product
		err  error
	)
	if categoryID != 0 {
		if _, err := s.GetCategory(ctx, categoryID); err != nil {
			return nil, err
		}
		list, err = s.db.gw.Products().ListByCategory(ctx, categoryID)
	} else {
		list, err = s.db.gw.Products().List(ctx)
	}
	if err != nil {
		return nil, s.db.lookup(err, apperr.EntityProduct)
	}
	return list, nil
}

func (s *CatalogService) RenameProduct(ctx context.Context, id int64, newName string) (*entity.Product, error) {
	return s.mutateProduct(ctx, id, func(p *entity.Product) error {
		if err := p.Rename(newName); err != nil {
			return err
		}
		found, err := s.db.gw.Products().FindByName(ctx, newName)
		return s.db.taken(found, err, p.ID(), apperr.EntityProduct)
	})
}

func (s *CatalogService) RepriceProduct(ctx context.Context, id int64, newPrice decimal.Decimal) (*entity.Product, error) {
	return s.mutateProduct(ctx, id, func(p *entity.Product) error {
		return p.Reprice(newPrice)
	})
}

func (s *CatalogService) RecategorizeProduct(ctx context.Context, id, categoryID int64) (*entity.Product, error) {
	return s.mutateProduct(ctx, id, func(p *entity.Product) error {
		var category *entity.Category
		if categoryID != 0 {
			c, err := s.GetCategory(ctx, categoryID)
			if err != nil {
				return err
			}
			category = c
		}
		return p.Recategorize(category)
	})
}

// DescribeProduct sets the free-text description; nil clears it.
func (s *CatalogService) DescribeProduct(ctx context.Context, id int64, description *string) (*entity.Product, error) {
	return s.mutateProduct(ctx, id, func(p *entity.Product) error {
		p.Describe(description)
		return nil
	})
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.commit(ctx, apperr.EntityProduct, func(uow repo.UnitOfWork) { uow.Remove(p) }); err != nil {
		return err
	}
	if s.GCS != nil {
		s.dropImage(ctx, p.ImageURL())
	}
	_ = s.unindexProduct(ctx, id)
	return nil
}

// UploadProductImage stores the image in GCS and records its public URL on the product.
func (s *CatalogService) UploadProductImage(ctx context.Context, id int64, r io.Reader, filename, contentType string) (*entity.Product, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return nil, ErrImageStorageDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.NewValidation("image", "o arquivo enviado não é uma imagem")
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("products", strconv.FormatInt(id, 10), uuid.NewString()+ext))
	url, err := helpers.UploadImage(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("product_id", id).Error("gcs upload failed")
		}
		return nil, apperr.NewUnexpected(apperr.EntityProduct, err)
	}
	previous := p.ImageURL()
	p.SetImageURL(url)
	if err := s.db.commit(ctx, apperr.EntityProduct, func(uow repo.UnitOfWork) { uow.Update(p) }); err != nil {
		s.dropImage(ctx, url)
		return nil, err
	}
	s.dropImage(ctx, previous)
	_ = s.indexProduct(ctx, p)
	return p, nil
}

// dropImage deletes an image object this service uploaded; other URLs are left alone.
func (s *CatalogService) dropImage(ctx context.Context, url string) {
	path, ok := helpers.ObjectPath(s.GCSBucket, url)
	if !ok {
		return
	}
	if err := helpers.DeleteObject(ctx, s.GCS, s.GCSBucket, path); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("object", path).Warn("gcs delete failed")
	}
}

// mutateProduct loads, applies change, commits and reindexes. A failing change
// leaves the stored product untouched.
func (s *CatalogService) mutateProduct(ctx context.Context, id int64, change func(p *entity.Product) error) (*entity.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := change(p); err != nil {
		return nil, err
	}
	if err := s.db.commit(ctx, apperr.EntityProduct, func(uow repo.UnitOfWork) { uow.Update(p) }); err != nil {
		return nil, err
	}
	_ = s.indexProduct(ctx, p)
	return p, nil
}

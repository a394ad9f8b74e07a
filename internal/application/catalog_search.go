package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
)

// ProductDocument is the search-index shape of a product.
type ProductDocument struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
}

func NewProductDocument(p *entity.Product) ProductDocument {
	desc, _ := p.Description()
	return ProductDocument{
		ID:           p.ID(),
		Name:         p.Name(),
		Price:        p.Price().StringFixed(2),
		Description:  desc,
		ImageURL:     p.ImageURL(),
		CategoryID:   p.Category().ID(),
		CategoryName: p.Category().Name(),
	}
}

// reindexBatch caps the documents sent per bulk request.
const reindexBatch = 500

const productsMapping = `{
  "mappings": {
    "properties": {
      "id":            {"type": "long"},
      "name":          {"type": "text", "analyzer": "portuguese"},
      "description":   {"type": "text", "analyzer": "portuguese"},
      "category_name": {"type": "text", "analyzer": "portuguese"},
      "category_id":   {"type": "long"},
      "price":         {"type": "scaled_float", "scaling_factor": 100},
      "image_url":     {"type": "keyword", "index": false}
    }
  }
}`

func (s *CatalogService) searchEnabled() bool {
	return s.ES != nil && s.ESProductsIndex != ""
}

// EnsureIndex creates the products index with text mappings tuned for
// Portuguese. created is false when the index already existed.
func (s *CatalogService) EnsureIndex(ctx context.Context) (created bool, err error) {
	if !s.searchEnabled() {
		return false, nil
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := esapi.IndicesExistsRequest{Index: []string{s.ESProductsIndex}}.Do(c, s.ES)
	if err != nil {
		return false, err
	}
	_ = exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return false, nil
	}

	res, err := esapi.IndicesCreateRequest{Index: s.ESProductsIndex, Body: strings.NewReader(productsMapping)}.Do(c, s.ES)
	if err != nil {
		return false, err
	}
	defer func() { _ = res.Body.Close() }()
	if err := helpers.ESError(res); err != nil {
		return false, err
	}
	return true, nil
}

// ReindexProducts writes every stored product to the search index. It
// repairs documents whose per-write index call failed and fills an index
// that was created after the products were.
func (s *CatalogService) ReindexProducts(ctx context.Context) (int, error) {
	if !s.searchEnabled() {
		return 0, nil
	}
	list, err := s.db.gw.Products().List(ctx)
	if err != nil {
		return 0, s.db.lookup(err, apperr.EntityProduct)
	}
	indexed := 0
	for start := 0; start < len(list); start += reindexBatch {
		n, err := s.bulkIndex(ctx, list[start:min(start+reindexBatch, len(list))])
		indexed += n
		if err != nil {
			return indexed, err
		}
	}
	return indexed, nil
}

type bulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func (s *CatalogService) bulkIndex(ctx context.Context, batch []*entity.Product) (int, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, p := range batch {
		meta := map[string]any{"index": map[string]string{"_id": strconv.FormatInt(p.ID(), 10)}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(NewProductDocument(p)); err != nil {
			return 0, err
		}
	}

	c, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	res, err := esapi.BulkRequest{Index: s.ESProductsIndex, Body: &body, Refresh: "true"}.Do(c, s.ES)
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Body.Close() }()
	if err := helpers.ESError(res); err != nil {
		return 0, err
	}

	var parsed struct {
		Errors bool                  `json:"errors"`
		Items  []map[string]bulkItem `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return len(batch), nil
	}
	var (
		failed int
		first  bulkItem
	)
	for _, item := range parsed.Items {
		for _, r := range item {
			if r.Error == nil {
				continue
			}
			if failed == 0 {
				first = r
			}
			failed++
		}
	}
	if failed == 0 {
		return len(batch), nil
	}
	return len(batch) - failed, fmt.Errorf("bulk index: %d of %d failed, first %s: %s: %s",
		failed, len(batch), first.ID, first.Error.Type, first.Error.Reason)
}

func (s *CatalogService) indexProduct(ctx context.Context, p *entity.Product) error {
	if !s.searchEnabled() {
		return nil
	}
	b, _ := json.Marshal(NewProductDocument(p))
	req := esapi.IndexRequest{
		Index:      s.ESProductsIndex,
		DocumentID: strconv.FormatInt(p.ID(), 10),
		Body:       bytes.NewReader(b),
		Refresh:    "false",
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("product_id", p.ID()).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if err := helpers.ESError(res); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("product_id", p.ID()).Warn("es index response error")
		}
		return err
	}
	return nil
}

func (s *CatalogService) unindexProduct(ctx context.Context, id int64) error {
	if !s.searchEnabled() {
		return nil
	}
	req := esapi.DeleteRequest{Index: s.ESProductsIndex, DocumentID: strconv.FormatInt(id, 10)}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("product_id", id).Warn("es delete failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	// 404 just means the document was never indexed.
	if res.StatusCode == 404 {
		return nil
	}
	if err := helpers.ESError(res); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("product_id", id).Warn("es delete response error")
		}
		return err
	}
	return nil
}

// SearchProducts runs a multi_match query on name, description and category.
// Without Elasticsearch it falls back to a case-insensitive name/description scan of the store.
func (s *CatalogService) SearchProducts(ctx context.Context, q string, size int) ([]ProductDocument, error) {
	if size <= 0 || size > 50 {
		size = 10
	}
	if !s.searchEnabled() {
		return s.scanProducts(ctx, q, size)
	}

	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"name^3", "category_name^2", "description"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESProductsIndex), s.ES.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, s.db.report(apperr.NewUnexpected(apperr.EntityProduct, err))
	}
	defer func() { _ = res.Body.Close() }()
	if err := helpers.ESError(res); err != nil {
		return nil, s.db.report(apperr.NewUnexpected(apperr.EntityProduct, err))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source ProductDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, s.db.report(apperr.NewUnexpected(apperr.EntityProduct, err))
	}

	out := make([]ProductDocument, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *CatalogService) scanProducts(ctx context.Context, q string, size int) ([]ProductDocument, error) {
	list, err := s.db.gw.Products().List(ctx)
	if err != nil {
		return nil, s.db.lookup(err, apperr.EntityProduct)
	}
	needle := strings.ToLower(strings.TrimSpace(q))
	out := make([]ProductDocument, 0)
	for _, p := range list {
		if len(out) == size {
			break
		}
		doc := NewProductDocument(p)
		hay := strings.ToLower(doc.Name + " " + doc.Description + " " + doc.CategoryName)
		if strings.Contains(hay, needle) {
			out = append(out, doc)
		}
	}
	return out, nil
}

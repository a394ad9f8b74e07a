package application

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	"github.com/oksasatya/minha-cantina/internal/infrastructure/memory"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
)

// kvHook answers GET, SET and INCR from a map so no server is dialled.
type kvHook struct {
	mu   sync.Mutex
	data map[string]string
}

func newKVClient(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	rdb.AddHook(&kvHook{data: map[string]string{}})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func (h *kvHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *kvHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *kvHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		args := cmd.Args()
		key, _ := args[1].(string)
		switch c := cmd.(type) {
		case *redis.StringCmd:
			v, ok := h.data[key]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			switch v := args[2].(type) {
			case []byte:
				h.data[key] = string(v)
			case string:
				h.data[key] = v
			}
			c.SetVal("OK")
		case *redis.IntCmd:
			n, _ := strconv.ParseInt(h.data[key], 10, 64)
			n++
			h.data[key] = strconv.FormatInt(n, 10)
			c.SetVal(n)
		default:
			return next(ctx, cmd)
		}
		return nil
	}
}

func TestCategoryListIsCached(t *testing.T) {
	gw := memory.NewGateway()
	s := NewCatalogService(gw, newKVClient(t), nil, nil, "", nil, "")
	ctx := context.Background()
	mustCategory(t, s, "Salgados")

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Written behind the service's back, so only a cache miss would show it.
	c, err := entity.NewCategory("Assados")
	require.NoError(t, err)
	uow := gw.Begin()
	uow.Add(c)
	require.NoError(t, uow.Commit(ctx))

	list, err = s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	mustCategory(t, s, "Bebidas")
	list, err = s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestCategoryCacheDropsListReadBeforeWrite(t *testing.T) {
	s := NewCatalogService(memory.NewGateway(), newKVClient(t), nil, nil, "", nil, "")
	ctx := context.Background()
	id := mustCategory(t, s, "Salgados")

	// A reader resolves its key and loads the old rows, then a write commits
	// before the reader stores what it loaded.
	staleKey, ok := s.categoriesKey(ctx)
	require.True(t, ok)
	mustCategory(t, s, "Bebidas")
	stale := []cachedCategory{{ID: id, Name: "Salgados"}}
	require.NoError(t, helpers.RedisSetJSON(ctx, s.Redis, staleKey, stale, time.Minute))

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

package main

import (
	"context"
	"os"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/config"
	"github.com/oksasatya/minha-cantina/internal/application"
	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
	repo "github.com/oksasatya/minha-cantina/internal/domain/repository"
	"github.com/oksasatya/minha-cantina/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/minha-cantina/internal/infrastructure/postgres"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
)

type demoProduct struct {
	name        string
	price       string
	category    string
	description string
}

var demoCategories = []string{"Salgados", "Assados", "Bebidas"}

var demoProducts = []demoProduct{
	{"Coxinha", "6.50", "Salgados", "frango com catupiry"},
	{"Kibe", "6.00", "Salgados", ""},
	{"Esfiha de Carne", "5.50", "Assados", "massa fina"},
	{"Pão de Queijo", "4.00", "Assados", ""},
	{"Suco de Laranja", "7.00", "Bebidas", "500ml"},
	{"Refrigerante Lata", "5.00", "Bebidas", ""},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	var gw repo.Gateway
	if cfg.UseMemoryStore() {
		gw = memory.NewGateway()
	} else {
		logger.WithField("dir", cfg.MigrationsDir).Info("running migrations...")
		if _, err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir); err != nil {
			logger.WithError(err).Fatal("failed to migrate db")
		}
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
			AppName:     cfg.AppName + "-seed",
			MaxConns:    2,
			MaxConnLife: cfg.DBMaxConnLife,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to open db")
		}
		defer pool.Close()
		db := pginfra.OpenDB(pool)
		defer func() { _ = db.Close() }()
		gw = pginfra.NewGateway(db)
	}

	var es *elasticsearch.Client
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		client, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			logger.WithError(err).Fatal("failed to create elasticsearch client")
		}
		es = client
	}

	scheme, err := helpers.ParseCredentialScheme(cfg.CredentialScheme)
	if err != nil {
		logger.WithError(err).Fatal("invalid CREDENTIAL_SCHEME")
	}

	catalog := application.NewCatalogService(gw, nil, logger, es, cfg.ESProductsIndex, nil, "")
	if es != nil {
		if _, err := catalog.EnsureIndex(ctx); err != nil {
			logger.WithError(err).Fatal("failed to ensure products index")
		}
	}
	users := application.NewUserService(gw, helpers.DefaultJWT(), nil, logger, scheme, nil)

	ids := make(map[string]int64, len(demoCategories))
	for _, name := range demoCategories {
		c, err := catalog.CreateCategory(ctx, name)
		if apperr.KindOf(err) == apperr.Duplicate {
			existing, ferr := gw.Categories().FindByName(ctx, name)
			if ferr != nil {
				logger.WithError(ferr).Fatal("failed to load category")
			}
			ids[name] = existing.ID()
			continue
		}
		if err != nil {
			logger.WithError(err).WithField("category", name).Fatal("failed to seed category")
		}
		ids[name] = c.ID()
		logger.WithFields(logrus.Fields{"id": c.ID(), "name": name}).Info("seeded category")
	}

	for _, p := range demoProducts {
		in := application.CreateProductInput{
			Name:       p.name,
			Price:      decimal.RequireFromString(p.price),
			CategoryID: ids[p.category],
		}
		if p.description != "" {
			d := p.description
			in.Description = &d
		}
		created, err := catalog.CreateProduct(ctx, in)
		switch {
		case apperr.KindOf(err) == apperr.Duplicate:
			continue
		case err != nil:
			logger.WithError(err).WithField("product", p.name).Fatal("failed to seed product")
		}
		logger.WithFields(logrus.Fields{"id": created.ID(), "name": p.name}).Info("seeded product")
	}

	// Products skipped as duplicates may never have reached the index.
	if es != nil {
		n, err := catalog.ReindexProducts(ctx)
		if err != nil {
			logger.WithError(err).WithField("indexed", n).Fatal("failed to index products")
		}
		logger.WithFields(logrus.Fields{"index": cfg.ESProductsIndex, "indexed": n}).Info("indexed products")
	}

	handle := getenvDefault("SEED_USER_HANDLE", "demo")
	credential := getenvDefault("SEED_USER_PASSWORD", "password123")
	u, err := users.Register(ctx, application.RegisterInput{Name: "Usuário Demo", Handle: handle, Credential: credential})
	switch {
	case apperr.KindOf(err) == apperr.Duplicate:
		logger.WithField("username", handle).Info("demo user already present")
	case err != nil:
		logger.WithError(err).Fatal("failed to seed user")
	default:
		logger.WithFields(logrus.Fields{"id": u.ID(), "username": handle}).Info("seeded user")
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package router

import (
	"github.com/oksasatya/minha-cantina/internal/application"
	"github.com/oksasatya/minha-cantina/internal/container"
	handlers "github.com/oksasatya/minha-cantina/internal/interface/http"
	"github.com/oksasatya/minha-cantina/internal/router/modules"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
	mailtpl "github.com/oksasatya/minha-cantina/pkg/mailer/templates"
	"github.com/oksasatya/minha-cantina/pkg/validation"
)

type CatalogModuleDeps struct {
	Service    *application.CatalogService
	Categories *handlers.CategoryHandler
	Products   *handlers.ProductHandler
}

type AuthModuleDeps struct {
	Service *application.UserService
	Handler *handlers.AuthHandler
}

func buildCatalogDeps() CatalogModuleDeps {
	cfg := container.GetConfig()
	service := application.NewCatalogService(
		container.GetGateway(),
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESProductsIndex,
		container.GetGCS(),
		cfg.GCSBucket,
	)
	return CatalogModuleDeps{
		Service:    service,
		Categories: handlers.NewCategoryHandler(service, container.GetLogger()),
		Products:   handlers.NewProductHandler(service, container.GetLogger()),
	}
}

func buildAuthDeps() AuthModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	scheme, err := helpers.ParseCredentialScheme(cfg.CredentialScheme)
	if err != nil {
		if logger != nil {
			logger.WithError(err).Warn("falling back to plain credential scheme")
		}
		scheme = helpers.CredentialPlain
	}

	service := application.NewUserService(
		container.GetGateway(),
		container.GetJWT(),
		container.GetRedis(),
		logger,
		scheme,
		signupNotice(),
	)

	handler := handlers.NewAuthHandler(
		service,
		logger,
		cfg.CookieDomain,
		cfg.CookieSecure,
	)

	return AuthModuleDeps{Service: service, Handler: handler}
}

// signupNotice is nil unless mail is enabled, a staff address is set and RabbitMQ is connected.
func signupNotice() *application.SignupNotice {
	cfg := container.GetConfig()
	pub := container.GetRabbitPub()
	if pub == nil || !cfg.MailSendEnabled || cfg.MailNotifyTo == "" {
		return nil
	}
	return &application.SignupNotice{
		Jobs: pub,
		To:   cfg.MailNotifyTo,
		Brand: mailtpl.Brand{
			AppName:        cfg.AppName,
			CompanyName:    cfg.CompanyName,
			CompanyAddress: cfg.CompanyAddress,
			LogoURL:        cfg.LogoURL,
			SupportURL:     cfg.SupportURL,
		},
	}
}

// InitModules builds the services from the container and queues every module.
// Call it once at startup, before RegisterAll.
func InitModules(r *Registry) {
	validation.Init()
	cfg := container.GetConfig()

	authDeps := buildAuthDeps()
	catalogDeps := buildCatalogDeps()

	r.Logger = container.GetLogger()
	r.Add(modules.NewHealthModule())
	r.Add(modules.NewAuthModule(authDeps.Handler, container.GetJWT()))
	r.Add(modules.NewCategoryModule(catalogDeps.Categories))
	r.Add(modules.NewProductModule(catalogDeps.Products))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}

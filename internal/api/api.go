// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"context"
	"net/http"

	"github.com/atelier-run/atelier/internal/config"
	"github.com/atelier-run/atelier/internal/infrastructure"
	"github.com/atelier-run/atelier/pkg/middleware"
	"github.com/atelier-run/atelier/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The context is used to initialize the OIDC verifier when auth is enabled.
func NewModule(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime)

	auth, err := middleware.Auth(ctx, &cfg.API.Auth, runtime.Logger)
	if err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(auth)

	return m, nil
}

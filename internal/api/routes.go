package api

import (
	"net/http"

	"github.com/atelier-run/atelier/internal/config"
	"github.com/atelier-run/atelier/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	maxUpload := cfg.API.MaxUploadSizeBytes()

	routes.Register(
		mux,
		domain.Workflows.Handler(domain.Copier).Routes(),
		domain.Files.Handler(maxUpload).Routes(),
		domain.Credentials.Handler().Routes(),
		domain.Knowledge.Handler().Routes(),
		newRunHandler(domain.Assembler, domain.Dispatcher, runtime.Logger, maxUpload).routes(),
	)
}

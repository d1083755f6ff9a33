package api

import (
	"github.com/atelier-run/atelier/internal/assembly"
	"github.com/atelier-run/atelier/internal/config"
	"github.com/atelier-run/atelier/internal/credentials"
	"github.com/atelier-run/atelier/internal/files"
	"github.com/atelier-run/atelier/internal/knowledge"
	"github.com/atelier-run/atelier/internal/sandbox"
	"github.com/atelier-run/atelier/internal/workflows"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Workflows   workflows.System
	Files       files.System
	Credentials credentials.System
	Knowledge   knowledge.System
	Assembler   assembly.System
	Dispatcher  *sandbox.Dispatcher
	Copier      *workflows.Copier
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	workflowSystem := workflows.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	fileSystem := files.New(
		runtime.Database.Connection(),
		runtime.Storage,
		workflowSystem,
		runtime.Logger,
		runtime.Pagination,
	)

	credentialSystem := credentials.New(
		runtime.Database.Connection(),
		runtime.Vault,
		workflowSystem,
		runtime.Logger,
		runtime.Pagination,
	)

	knowledgeSystem := knowledge.New(
		runtime.Database.Connection(),
		cfg.Knowledge,
		runtime.Logger,
		runtime.Pagination,
	)

	assembler := assembly.New(
		workflowSystem,
		fileSystem,
		credentialSystem,
		knowledgeSystem,
		cfg.Assembly,
		runtime.Logger,
	)

	dispatcher := sandbox.NewDispatcher(
		sandbox.NewClient(&cfg.Sandbox),
		cfg.Sandbox,
		runtime.Logger,
	)

	copier := workflows.NewCopier(
		workflowSystem,
		fileSystem,
		credentialSystem,
		runtime.Logger,
	)

	return &Domain{
		Workflows:   workflowSystem,
		Files:       fileSystem,
		Credentials: credentialSystem,
		Knowledge:   knowledgeSystem,
		Assembler:   assembler,
		Dispatcher:  dispatcher,
		Copier:      copier,
	}
}

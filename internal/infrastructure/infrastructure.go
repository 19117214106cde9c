// Package infrastructure provides core service initialization for application startup.
// It assembles the dependencies (logging, database, storage, model backend,
// prompts) that the domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/lectern/internal/config"
	"github.com/JaimeStill/lectern/internal/courses"
	"github.com/JaimeStill/lectern/internal/documents"
	"github.com/JaimeStill/lectern/internal/generator"
	"github.com/JaimeStill/lectern/internal/prompts"
	"github.com/JaimeStill/lectern/pkg/database"
	"github.com/JaimeStill/lectern/pkg/lifecycle"
	"github.com/JaimeStill/lectern/pkg/storage"
	"github.com/JaimeStill/lectern/workflow"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Generator workflow.Generator
	Prompts   prompts.System
	Policy    workflow.Policy

	exportPrefix string
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New(ctx)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	gen, err := generator.New(&cfg.Generator, cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("generator init failed: %w", err)
	}

	ps, err := loadPrompts(cfg.Prompts)
	if err != nil {
		return nil, fmt.Errorf("prompts init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:    lc,
		Logger:       logger,
		Database:     db,
		Storage:      store,
		Generator:    gen,
		Prompts:      ps,
		Policy:       cfg.Workflow,
		exportPrefix: cfg.Storage.ExportPrefix,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}

// Documents builds the document system.
func (i *Infrastructure) Documents() documents.System {
	return documents.New(i.Database.Connection(), i.Storage, i.Logger)
}

// Courses builds the course set system over docs.
func (i *Infrastructure) Courses(docs documents.System) courses.System {
	return courses.New(
		i.Database.Connection(),
		i.Generator,
		i.Policy,
		i.Prompts,
		i.Storage,
		i.exportPrefix,
		docs,
		i.Logger,
	)
}

func loadPrompts(cfg config.PromptsConfig) (prompts.System, error) {
	if cfg.Overrides == "" {
		return prompts.New(nil), nil
	}
	overrides, err := prompts.LoadOverrides(cfg.Overrides)
	if err != nil {
		return nil, err
	}
	return prompts.New(overrides), nil
}

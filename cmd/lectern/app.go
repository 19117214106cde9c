package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/lectern/internal/config"
	"github.com/JaimeStill/lectern/internal/courses"
	"github.com/JaimeStill/lectern/internal/documents"
	"github.com/JaimeStill/lectern/internal/infrastructure"
	"github.com/JaimeStill/lectern/workflow"
)

// App wires the infrastructure to the document and course systems for one
// command invocation.
type App struct {
	infra   *infrastructure.Infrastructure
	docs    documents.System
	courses courses.System
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	infra, err := infrastructure.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	docs := infra.Documents()

	infra.Logger.Info(
		"lectern initialized",
		"version", cfg.Version,
		"env", cfg.Env(),
		"generator", cfg.Generator.Backend,
		"storage", cfg.Storage.Backend,
	)

	return &App{
		infra:   infra,
		docs:    docs,
		courses: infra.Courses(docs),
	}, nil
}

func (a *App) Start() error {
	if err := a.infra.Start(); err != nil {
		return err
	}
	if err := a.infra.Lifecycle.WaitForStartup(); err != nil {
		return err
	}
	a.infra.Logger.Info("all subsystems ready")
	return nil
}

func (a *App) Shutdown(timeout time.Duration) error {
	a.infra.Logger.Info("initiating shutdown")
	return a.infra.Lifecycle.Shutdown(timeout)
}

func (a *App) Register(ctx context.Context, path, externalID, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	modified := info.ModTime().UTC()

	if externalID == "" {
		externalID = path
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	doc, outcome, err := a.docs.Register(ctx, documents.RegisterCommand{
		ExternalID:   externalID,
		Title:        title,
		Content:      string(data),
		LastModified: &modified,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s %s (%s)\n", outcome, doc.ID, doc.ExternalID)
	return nil
}

func (a *App) GenerateOne(ctx context.Context, raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", raw, err)
	}

	cs, err := a.courses.Generate(ctx, id, a.progress(id))
	if err != nil {
		return err
	}

	report(cs)
	return nil
}

// GeneratePending processes up to limit pending documents with at most
// concurrency runs in flight. A failing document does not stop the batch.
func (a *App) GeneratePending(ctx context.Context, limit, concurrency int) error {
	docs, err := a.docs.ListPending(ctx, limit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		a.infra.Logger.Info("no pending documents")
		return nil
	}

	a.infra.Logger.Info("processing pending documents", "count", len(docs), "concurrency", concurrency)

	sets := make([]*courses.CourseSet, len(docs))
	errs := make([]error, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, d := range docs {
		g.Go(func() error {
			sets[i], errs[i] = a.courses.Generate(gctx, d.ID, a.progress(d.ID))
			return nil
		})
	}
	g.Wait()

	failed := 0
	for i, d := range docs {
		if errs[i] != nil {
			failed++
			a.infra.Logger.Error("document generation failed", "document_id", d.ID, "error", errs[i])
			continue
		}
		report(sets[i])
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return nil
}

func (a *App) Export(ctx context.Context, raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid course set id %q: %w", raw, err)
	}

	cs, err := a.courses.Export(ctx, id)
	if err != nil {
		return err
	}

	report(cs)
	return nil
}

func (a *App) progress(documentID uuid.UUID) workflow.ProgressSink {
	logger := a.infra.Logger.With("document_id", documentID)
	return workflow.SinkFunc(func(e workflow.Event) {
		logger.Info("progress", "stage", e.Stage, "message", e.Message)
	})
}

func report(cs *courses.CourseSet) {
	key := "-"
	if cs.ExportKey != nil {
		key = *cs.ExportKey
	}
	fmt.Printf("%s document=%s status=%s courses=%d/%d retries=%d export=%s\n",
		cs.ID, cs.DocumentID, cs.Status, len(cs.Courses), cs.TopicCount, cs.RetryCount, key)
	if cs.Error != "" {
		fmt.Printf("  error: %s\n", cs.Error)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaimeStill/lectern/internal/config"
)

func main() {
	var (
		documentID  = flag.String("document", "", "Generate courses for one document ID")
		pending     = flag.Bool("pending", false, "Generate courses for pending documents")
		limit       = flag.Int("limit", 10, "Maximum pending documents to process")
		concurrency = flag.Int("concurrency", 2, "Documents processed at once with -pending")
		register    = flag.String("register", "", "Register a plain text file as a document")
		externalID  = flag.String("external-id", "", "External ID for -register (defaults to the file path)")
		title       = flag.String("title", "", "Title for -register")
		export      = flag.String("export", "", "Re-export an existing course set ID")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		log.Fatal("init failed:", err)
	}

	if err := app.Start(); err != nil {
		log.Fatal("start failed:", err)
	}

	var runErr error
	switch {
	case *register != "":
		runErr = app.Register(ctx, *register, *externalID, *title)
	case *documentID != "":
		runErr = app.GenerateOne(ctx, *documentID)
	case *pending:
		runErr = app.GeneratePending(ctx, *limit, *concurrency)
	case *export != "":
		runErr = app.Export(ctx, *export)
	default:
		fmt.Println("usage: lectern [-register <file> [-external-id ID] [-title T]|-document <id>|-pending [-limit N] [-concurrency N]|-export <course-set-id>]")
		flag.PrintDefaults()
	}

	if err := app.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		app.infra.Logger.Error("shutdown failed", "error", err)
	}

	if runErr != nil {
		log.Fatal(runErr)
	}
}

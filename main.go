package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kweli-data/minutiae.registry/internal/api"
	"github.com/kweli-data/minutiae.registry/internal/config"
	"github.com/kweli-data/minutiae.registry/internal/enroll"
	"github.com/kweli-data/minutiae.registry/internal/extract"
	"github.com/kweli-data/minutiae.registry/internal/matcher"
	"github.com/kweli-data/minutiae.registry/internal/pipeline"
	"github.com/kweli-data/minutiae.registry/internal/store"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "templates.db", "Path to the template database")
	configPath    = flag.String("config", config.DefaultConfigPath, "Path to the tuning config file")
	migrationsDir = flag.String("migrations", "migrations", "Path to the schema migrations directory")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		log.Printf("no tuning config at %s, using defaults", *configPath)
		cfg = config.EmptyTuningConfig()
	}

	st, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open template database: %v", err)
	}
	defer st.Close()

	if err := st.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	pipe := pipeline.New(pipeline.Params{
		Eps:             cfg.GetFusionEps(),
		MinSamples:      cfg.GetFusionMinSamples(),
		GridStep:        cfg.GetGridStep(),
		AngleStep:       cfg.GetAngleStep(),
		StabilizeRadius: cfg.GetStabilizeRadius(),
		TemplateSize:    cfg.GetTemplateSize(),
	})

	extractor := &extract.Mindtct{
		Bin:     cfg.GetExtractorBin(),
		Timeout: cfg.GetExtractorTimeout(),
	}
	scorer := &matcher.Bozorth3{
		Bin:     cfg.GetMatcherBin(),
		Timeout: cfg.GetMatcherTimeout(),
	}
	engine := matcher.NewEngineWithThreshold(scorer, cfg.GetMatchThreshold())

	svc := enroll.NewService(extractor, pipe, st, engine, cfg.GetGalleryWorkers(), cfg.GetGalleryLimit())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(svc, cfg).ServeMux()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

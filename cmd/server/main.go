package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/matchframe/mf-clips/internal/api"
	"github.com/matchframe/mf-clips/internal/clips"
	"github.com/matchframe/mf-clips/internal/config"
	"github.com/matchframe/mf-clips/internal/data"
	"github.com/matchframe/mf-clips/internal/engine"
	"github.com/matchframe/mf-clips/internal/ingest"
	"github.com/matchframe/mf-clips/internal/metrics"
	"github.com/matchframe/mf-clips/internal/middleware"
	"github.com/matchframe/mf-clips/internal/progress"
	"github.com/matchframe/mf-clips/internal/publish"
	"github.com/matchframe/mf-clips/internal/storage"
)

const serviceName = "mf-clips"

func main() {
	cfgPath := flag.String("config", "config/default.yaml", "Config file path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// 2. DB
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}
	models := data.NewModels(db)

	// 3. Redis (progress, cancel flags, in-flight guards)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	progressStore := progress.NewStore(rdb)

	// 4. NATS (optional; clip notices are dropped without it)
	var pub clips.Publisher = publish.NopPublisher{}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(serviceName))
		if err != nil {
			log.Printf("Warning: NATS connect failed: %v. Clip notices disabled.", err)
		} else {
			defer nc.Close()
			pub = publish.NewNATSPublisher(nc, cfg.NATS.MaxRetries)
			log.Println("Connected to NATS")
		}
	}

	// 5. Media components
	signer := storage.NewSigner(cfg.Media.SigningKey, cfg.TokenTTL())
	store, err := storage.NewLocalStore(cfg.Media.StorageRoot, cfg.Server.BaseURL, signer)
	if err != nil {
		log.Fatalf("Storage init error: %v", err)
	}

	eng := engine.New(filepath.Join(cfg.Media.ScratchDir, "clipgen"))
	pipeline := clips.NewMediaPipeline(eng, cfg.Media.StagingDir)

	collector := metrics.NewCollector()

	clipService := clips.NewService(models.Events, models.Videos, models.Thumbnails,
		store, pipeline, progressStore, pub, collector)

	// 6. Ingest watcher registers staged video files as they land
	watcher := ingest.NewWatcher(cfg.Media.StagingDir, models.Videos, eng)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Ingest watcher stopped: %v", err)
		}
	}()

	// 7. Routes
	clipHandler := api.NewClipHandler(clipService, models.Events, models.Videos,
		models.Thumbnails, progressStore)
	wsHandler := api.NewProgressWsHandler(progressStore)
	mediaHandler := api.NewMediaHandler(store)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigin))
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics(collector))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", collector.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		clipHandler.Register(r)
		wsHandler.Register(r)
	})
	mediaHandler.Register(r)

	// 8. Serve
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("%s listening on :%s", serviceName, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	// In-flight batches see the context cancel through their next stage
	// check; the progress store keeps their partial state for the UI.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// clipgen runs one clip batch for a match from the command line. Ops use
// it to cut clips for matches ingested before the service was deployed,
// without going through the HTTP API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/matchframe/mf-clips/internal/clips"
	"github.com/matchframe/mf-clips/internal/config"
	"github.com/matchframe/mf-clips/internal/data"
	"github.com/matchframe/mf-clips/internal/engine"
	"github.com/matchframe/mf-clips/internal/metrics"
	"github.com/matchframe/mf-clips/internal/progress"
	"github.com/matchframe/mf-clips/internal/publish"
	"github.com/matchframe/mf-clips/internal/storage"
)

func main() {
	matchFlag := flag.String("match", "", "Match UUID (required)")
	videoURL := flag.String("video-url", "", "Force all events onto this source video")
	limit := flag.Int("limit", clips.DefaultBatchLimit, "Max events to process")
	subtitles := flag.Bool("subtitles", false, "Burn event captions into the clips")
	cfgPath := flag.String("config", "config/default.yaml", "Config file path")
	flag.Parse()

	matchID, err := uuid.Parse(*matchFlag)
	if err != nil {
		log.Printf("ClipGen: -match must be a valid UUID: %v", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}
	models := data.NewModels(db)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	signer := storage.NewSigner(cfg.Media.SigningKey, cfg.TokenTTL())
	store, err := storage.NewLocalStore(cfg.Media.StorageRoot, cfg.Server.BaseURL, signer)
	if err != nil {
		log.Fatalf("Storage init error: %v", err)
	}

	eng := engine.New(filepath.Join(cfg.Media.ScratchDir, "clipgen"))
	pipeline := clips.NewMediaPipeline(eng, cfg.Media.StagingDir)

	svc := clips.NewService(models.Events, models.Videos, models.Thumbnails,
		store, pipeline, progress.NewStore(rdb), publish.NopPublisher{},
		metrics.NewCollector())

	opts := clips.Options{Limit: *limit, AddSubtitles: *subtitles}
	summary, err := svc.ProcessAll(ctx, matchID, *videoURL, opts)
	if err != nil {
		log.Fatalf("ClipGen: batch failed: %v", err)
	}

	log.Printf("ClipGen: done. total=%d completed=%d failed=%d skipped=%d cancelled=%v",
		summary.Total, summary.Completed, summary.Failed, summary.Skipped, summary.Cancelled)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

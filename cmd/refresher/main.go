// Command refresher triggers one engagement sweep through the pipeline API.
// It is meant to be run from cron or a scheduled job.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vidvest/internal/client"
	"vidvest/internal/config"
	"vidvest/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	code := run()
	logger.Sync()
	os.Exit(code)
}

// run returns 0 on a clean sweep, 1 when the sweep could not run and 2 when
// some videos failed to refresh.
func run() int {
	log := logger.Named("refresher")

	cfg, err := config.Load()
	if err != nil {
		log.Errorf("configuration error: %v", err)
		return 1
	}
	if cfg.PipelineAPIKey == "" {
		log.Error("PIPELINE_API_KEY is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.NewPipelineClient(cfg.PipelineAPIURL, cfg.PipelineAPIKey, &http.Client{Timeout: cfg.PipelineTimeout})
	result, err := c.RefreshStats(ctx)
	if err != nil {
		log.Errorw("refresh run failed", "error", err)
		return 1
	}

	log.Infow("refresh run completed",
		"videos_scanned", result.VideosScanned,
		"videos_refreshed", result.VideosRefreshed,
		"failures", len(result.Failures),
		"duration", result.Duration.String(),
	)
	for _, f := range result.Failures {
		log.Warnw("video refresh failed", "video_id", f.VideoID, "code", f.Code, "error", f.Error)
	}

	if len(result.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d videos failed to refresh\n", len(result.Failures), result.VideosScanned)
		return 2
	}
	return 0
}

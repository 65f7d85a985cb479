package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodtunes/internal/catalog"
	"moodtunes/internal/mood"
	"moodtunes/internal/platform/config"
	"moodtunes/internal/platform/logger"
	"moodtunes/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	classifierURL := config.GetEnv("CLASSIFIER_URL", "http://127.0.0.1:8000")
	interval := config.GetEnvDuration("CAPTURE_INTERVAL", mood.DefaultCaptureInterval)
	inferenceTimeout := config.GetEnvDuration("INFERENCE_TIMEOUT", 15*time.Second)
	catalogTimeout := config.GetEnvDuration("CATALOG_TIMEOUT", 30*time.Second)
	playlistLimit := config.GetEnvInt("PLAYLIST_LIMIT", mood.DefaultPlaylistLimit)

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	var cat mood.Catalog
	var catClient *catalog.Client
	if cfg, err := catalog.LoadConfig(); err != nil {
		log.Warn("spotify credentials missing, playlist resolution degrades to fallback",
			slog.String("error", err.Error()))
	} else {
		catClient, err = catalog.New(context.Background(), cfg, log)
		if err != nil {
			log.Warn("spotify client unavailable, playlist resolution degrades to fallback",
				slog.String("error", err.Error()))
		} else {
			cat = catClient
		}
	}

	source := mood.NewPushSource()
	classifier := mood.NewHTTPClassifier(classifierURL, inferenceTimeout)
	fallback := mood.NewFallbackSource(time.Now().UnixNano())
	resolver := mood.NewResolver(cat, fallback, catalogTimeout, playlistLimit, log, met)
	issuer := mood.NewIssuer()
	store := mood.NewInMemoryResultStore()
	ctrl := mood.NewController(source, classifier, resolver, issuer, store, interval, log, met)

	h := mood.NewHandler(ctrl, classifier, resolver, source, store, cat, log, met)
	catHandler := catalog.NewHandler(catClient, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))

	r.Get("/metrics", met.Handler(nil).ServeHTTP)
	r.Get("/health", h.Health)
	r.Post("/detect-mood", h.DetectMood)
	r.Post("/mood-and-playlist", h.MoodAndPlaylist)
	r.Post("/upload-image", h.UploadImage)
	r.Get("/playlist/{mood}", h.PlaylistByMood)
	r.Get("/moods", h.Moods)
	r.Get("/artifact.png", h.Artifact)
	r.Route("/loop", func(r chi.Router) {
		r.Get("/", h.Loop)
		r.Post("/start", h.StartLoop)
		r.Post("/stop", h.StopLoop)
		r.Post("/pause", h.PauseLoop)
		r.Post("/resume", h.ResumeLoop)
	})
	r.Post("/dialog/open", h.OpenDialog)
	r.Post("/dialog/close", h.CloseDialog)
	r.Get("/ws/video-mood", h.VideoMoodSocket)
	catHandler.Mount(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"capture_interval", interval.String(),
		"classifier_url", classifierURL,
		"catalog_available", cat != nil,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctrl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

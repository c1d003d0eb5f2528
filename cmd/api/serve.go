package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storyforest/api/internal/app"
	"storyforest/api/internal/export"
	"storyforest/api/internal/notify"
	"storyforest/api/internal/ratelimit"
	"storyforest/api/internal/search"
	"storyforest/api/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return err
	}

	dataStore := store.NewPostgresStore(db)
	deps := app.Deps{Logger: log}
	var workers sync.WaitGroup

	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Info("notifications queued in redis")
		queue, err := notify.NewRedisQueue(cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer queue.Close()
		relay := &notify.Relay{Queue: queue, Sink: dataStore, Logger: log}
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := relay.Run(ctx); err != nil {
				log.Error("notification relay failed", "error", err)
			}
		}()
		deps.Publisher = queue
	} else {
		log.Info("notifications delivered in-process")
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meili.Close()
		deps.Search = search.NewService(meili, log)
	}

	var archive export.Archiver
	if strings.TrimSpace(cfg.MinIOEndpoint) != "" {
		minioArchive, err := export.NewMinIOArchive(ctx, export.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Warn("export archive unavailable", "error", err)
		} else {
			archive = minioArchive
		}
	}
	deps.Exporter = export.NewService(archive, log)

	service := app.New(cfg, dataStore, deps)

	limiter := ratelimit.New(float64(cfg.MutationRPS), cfg.MutationBurst)
	defer limiter.Stop()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, limiter)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storyforest api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	stop()
	service.Wait()
	workers.Wait()
	log.Info("storyforest api stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/PratikDhanave/cohort-sync-service/internal/cohortsync"
	"github.com/PratikDhanave/cohort-sync-service/internal/config"
	"github.com/PratikDhanave/cohort-sync-service/internal/httpserver"
	"github.com/PratikDhanave/cohort-sync-service/internal/jobs"
	"github.com/PratikDhanave/cohort-sync-service/internal/posthog"
	"github.com/PratikDhanave/cohort-sync-service/internal/store"
)

// pluginName scopes the hook's rows in plugin_storage.
const pluginName = "automatic-cohorts"

// main boots the service: config → storage → schema → hook → jobs → HTTP server.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load runtime config from environment.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Validate the hook settings before touching any dependency.
	settings, err := cohortsync.Setup(cohortsync.PluginConfig{
		PropertiesToTrack: cfg.Cohorts.PropertiesToTrack,
		PosthogHost:       cfg.Cohorts.PosthogHost,
		PosthogAPIKey:     cfg.Cohorts.PosthogAPIKey,
		NamingConvention:  cfg.Cohorts.NamingConvention,
	})
	if err != nil {
		log.Fatal(err)
	}

	dsn := cfg.DBURL
	if cfg.StorageDriver == config.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	db, err := store.Open(ctx, cfg.StorageDriver, dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Ensure required tables/indexes exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}

	storage := store.NewPluginStorage(db, pluginName)
	client := posthog.NewClient(settings.Host(), settings.Headers())

	queue := jobs.NewQueue(0)
	hook := cohortsync.New(settings, storage, client, queue)
	queue.Register(cohortsync.RetryJobName, hook.HandleRetryJob)
	queue.Start(ctx)
	defer queue.Stop()

	log.Printf("tracking %v on %s", settings.TrackedProperties(), settings.Host())

	router := httpserver.NewRouter(httpserver.Deps{
		APIKeys: cfg.APIKeys,
		Store:   db,
		Hook:    hook,
		Storage: storage,
		Jobs:    queue,
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("server started on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oklog/run"

	"feedgarden/app/cfg"
	"feedgarden/app/database"
	"feedgarden/app/feed"
	"feedgarden/app/fetch"
	"feedgarden/app/proxy"
	"feedgarden/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting feedgarden", "version", appCfg.Version)

	if dir := filepath.Dir(appCfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			slog.Error("Failed to create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	schemaVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", schemaVersion, "dirty", dirty)

	sources := database.NewSourceRepo(db)
	posts := database.NewPostRepo(db)
	tags := database.NewTagRepo(db)
	proxies := database.NewProxyRepo(db)

	pool := proxy.NewPool()
	fetcher := fetch.NewFetcher(pool, appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second, appCfg.ProxyAttempts)
	parser := feed.NewParser()
	ingester := feed.NewIngester(posts)

	scheduler := tasks.NewScheduler(sources, tags, proxies, pool, fetcher, parser, ingester)

	var g run.Group
	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	schedulerDone := make(chan struct{})
	g.Add(func() error {
		slog.Info("Starting scheduler",
			"workers", appCfg.WorkerCount,
			"interval", appCfg.SchedulerInterval,
			"subscriptions", appCfg.Subscriptions)
		scheduler.Start()
		<-schedulerDone
		return nil
	}, func(error) {
		scheduler.Stop()
		close(schedulerDone)
	})

	err = g.Run()
	var sig run.SignalError
	switch {
	case errors.As(err, &sig):
		slog.Info("Received signal, shutting down", "signal", sig.Signal)
	case err != nil:
		slog.Error("Run group exited", "error", err)
	}

	slog.Info("Shutdown complete")
}

func setupLogger(debug bool) {
	lvl := slog.LevelInfo
	if debug {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

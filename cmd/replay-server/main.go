package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"Mansoor88-6/session-replay/internal/config"
	"Mansoor88-6/session-replay/internal/database"
	"Mansoor88-6/session-replay/internal/handler"
	"Mansoor88-6/session-replay/internal/logger"
	"Mansoor88-6/session-replay/internal/metrics"
	"Mansoor88-6/session-replay/internal/notify"
	"Mansoor88-6/session-replay/internal/repository"
	"Mansoor88-6/session-replay/internal/router"
	"Mansoor88-6/session-replay/internal/service"
	"Mansoor88-6/session-replay/internal/telemetry"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/server.yaml", "Path to configuration file (empty reads the environment only)")
	pflag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting session replay server",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx := context.Background()

	var repo repository.SessionEventRepository
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := database.NewPostgres(ctx, cfg.Storage.DSN, cfg.Storage.MaxConns, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer pool.Close()
		repo = repository.NewPostgresRepository(pool)
	case "memory":
		log.Warn("Using in-memory storage; events are lost on restart")
		repo = repository.NewMemoryRepository()
	default:
		db, err := database.New(cfg.Storage.Path, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close database", zap.Error(err))
			}
		}()
		repo = repository.NewSQLiteRepository(db.DB)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("Failed to flush traces", zap.Error(err))
			}
		}()
	}

	m := metrics.New()
	httpClient := &http.Client{Timeout: cfg.HTTP.NotificationTimeout}

	jiraClient := notify.NewJiraClient(cfg.Jira, cfg.Viewer.BaseURL, httpClient, log.Logger)
	slackClient := notify.NewSlackClient(cfg.Slack, httpClient, log.Logger)

	// unconfigured collaborators stay nil interfaces so the dispatcher skips them
	var tickets notify.TicketCreator
	var jiraHandler *handler.JiraHandler
	if jiraClient.Configured() {
		tickets = jiraClient
		jiraHandler = handler.NewJiraHandler(jiraClient, log.Logger)
	} else {
		log.Info("Jira not configured, ticket creation disabled")
	}

	var chat notify.ChatNotifier
	if slackClient.Configured() {
		chat = slackClient
	} else {
		log.Info("Slack not configured, chat notifications disabled")
	}

	var archiver notify.Archiver
	if cfg.Archive.Enabled {
		s3Archiver, err := notify.NewS3Archiver(ctx, cfg.Archive, m, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize archive", zap.Error(err))
		}
		archiver = s3Archiver
	}

	dispatcher := notify.NewDispatcher(tickets, chat, archiver, cfg.HTTP.NotificationTimeout, m, log.Logger)
	eventService := service.NewSessionEventService(repo, dispatcher, m, log.Logger)
	eventHandler := handler.NewSessionEventHandler(eventService, m, cfg.HTTP.MaxBodySize, log.Logger)

	r := router.New(eventHandler, jiraHandler, router.Options{
		Metrics:     m,
		Tracing:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Session replay server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown error", zap.Error(err))
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn("Pending notifications abandoned", zap.Error(err))
	}

	log.Info("Session replay server stopped", zap.String("metrics", m.String()))
}

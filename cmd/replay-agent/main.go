package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"Mansoor88-6/session-replay/internal/buffer"
	"Mansoor88-6/session-replay/internal/capture"
	"Mansoor88-6/session-replay/internal/client"
	"Mansoor88-6/session-replay/internal/config"
	"Mansoor88-6/session-replay/internal/device"
	"Mansoor88-6/session-replay/internal/logger"
	"Mansoor88-6/session-replay/internal/packer"
	"Mansoor88-6/session-replay/internal/server"
	"Mansoor88-6/session-replay/internal/service"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// intakeBodyLimit caps one POST to the local intake
const intakeBodyLimit = 8 << 20

func main() {
	configPath := pflag.StringP("config", "c", "config/agent.yaml", "Path to configuration file (empty reads the environment only)")
	pflag.Parse()

	cfg, err := config.LoadAgentConfig(*configPath)
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

	identity := device.NewResolver().Resolve(cfg.Device.ID, cfg.Device.UserAgent, version)
	log.Info("Starting session replay agent",
		zap.String("env", cfg.Env),
		zap.String("version", version),
		zap.String("agent_id", identity.AgentID),
		zap.String("server_url", cfg.Upload.ServerURL),
	)

	pk, err := packer.New(cfg.Upload.Packer)
	if err != nil {
		log.Fatal("Invalid packer", zap.Error(err))
	}

	apiClient := client.NewAPIClient(client.Options{
		ServerURL:     cfg.Upload.ServerURL,
		APIKey:        cfg.Upload.APIKey,
		UserAgent:     identity.UserAgent,
		MaxRetryCount: cfg.Upload.MaxRetryCount,
		RetryDelay:    cfg.Upload.RetryDelay,
		Timeout:       cfg.Upload.Timeout,
		Packer:        pk,
	}, log.Logger)

	buf := buffer.New(cfg.Recording.RetentionWindow, cfg.Recording.EvictionInterval, log.Logger)
	source := capture.NewHTTPSource(intakeBodyLimit, log.Logger)

	recording := service.NewRecordingService(source, buf, apiClient, service.RecordingOptions{
		SessionID:      cfg.Recording.SessionID,
		ProjectKey:     cfg.Upload.ProjectKey,
		UploadInterval: cfg.Recording.UploadInterval,
		OnUploadSuccess: func(sessionID string, count int) {
			log.Debug("Events delivered", zap.String("session_id", sessionID), zap.Int("count", count))
		},
		OnError: func(err error) {
			log.Error("Recording error", zap.Error(err))
		},
	}, log.Logger)

	if cfg.Server.Enabled {
		addr := net.JoinHostPort("localhost", strconv.Itoa(cfg.Server.Port))
		agentServer := server.NewAgentServer(addr, recording, source, cfg.Upload.ProjectKey, identity.AgentID, log.Logger)
		recording.AttachResource(agentServer)

		go func() {
			if err := agentServer.ListenAndServe(); err != nil {
				log.Error("Agent API error", zap.Error(err))
			}
		}()
	} else {
		log.Info("Agent API disabled in configuration")
	}

	if cfg.Recording.AutoStart {
		recording.Start()
	}

	log.Info("Session replay agent started",
		zap.String("session_id", recording.SessionID()),
		zap.Bool("recording", recording.State().IsRecording),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	recording.Stop()

	// flush what is still buffered before tearing down
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Upload.Timeout*time.Duration(cfg.Upload.MaxRetryCount)+5*time.Second)
	if resp := recording.UploadNow(ctx, cfg.Upload.ProjectKey); resp != nil {
		log.Info("Final upload completed", zap.String("session_id", resp.SessionID))
	}
	cancel()

	done := make(chan struct{})
	go func() {
		recording.Destroy()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Session replay agent stopped")
	case <-time.After(5 * time.Second):
		log.Warn("Shutdown timeout reached, forcing exit")
		os.Exit(1)
	}
}

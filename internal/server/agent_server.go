package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"Mansoor88-6/session-replay/internal/models"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Controller is the part of the recording service the local API drives
type Controller interface {
	Start()
	Stop()
	State() models.SessionState
	UploadNow(ctx context.Context, projectKey string) *models.UploadResponse
}

type UploadRequest struct {
	ProjectKey string `json:"projectKey"`
}

type UploadResult struct {
	Uploaded  bool   `json:"uploaded"`
	SessionID string `json:"sessionId"`
	Saved     int    `json:"saved"`
}

// AgentServer is the agent's localhost API: the capture intake used by the
// in-page script plus recording controls.
type AgentServer struct {
	controller Controller
	intake     http.Handler
	projectKey string
	agentID    string
	logger     *zap.Logger

	server *http.Server
}

func NewAgentServer(addr string, controller Controller, intake http.Handler, projectKey, agentID string, logger *zap.Logger) *AgentServer {
	s := &AgentServer{
		controller: controller,
		intake:     intake,
		projectKey: projectKey,
		agentID:    agentID,
		logger:     logger,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler routes the local API behind a permissive CORS policy
func (s *AgentServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/events", s.intake)
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("POST /api/v1/recording/start", s.handleStart)
	mux.HandleFunc("POST /api/v1/recording/stop", s.handleStop)
	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         3600,
	}).Handler(mux)
}

// ListenAndServe blocks until Close is called
func (s *AgentServer) ListenAndServe() error {
	s.logger.Info("Agent API listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("agent API failed: %w", err)
	}
	return nil
}

// Close shuts the server down, giving in-flight requests two seconds
func (s *AgentServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.server.Close()
		return fmt.Errorf("failed to shut down agent API: %w", err)
	}
	return nil
}

func (s *AgentServer) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *AgentServer) handleStart(w http.ResponseWriter, r *http.Request) {
	s.controller.Start()
	writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *AgentServer) handleStop(w http.ResponseWriter, r *http.Request) {
	s.controller.Stop()
	writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *AgentServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	req := UploadRequest{ProjectKey: s.projectKey}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("Failed to decode upload request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	state := s.controller.State()
	if state.EventCount == 0 {
		writeJSON(w, http.StatusOK, UploadResult{SessionID: state.SessionID})
		return
	}

	resp := s.controller.UploadNow(r.Context(), req.ProjectKey)
	if resp == nil {
		http.Error(w, "Upload failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, UploadResult{
		Uploaded:  true,
		SessionID: resp.SessionID,
		Saved:     resp.SavedCount(state.EventCount),
	})
}

func (s *AgentServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"agentId":   s.agentID,
		"timestamp": time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package handler

import (
	"context"
	"net/http"

	"Mansoor88-6/session-replay/internal/models"

	"go.uber.org/zap"
)

type ProjectLister interface {
	ListProjects(ctx context.Context) ([]models.JiraProject, error)
}

type JiraHandler struct {
	projects ProjectLister
	logger   *zap.Logger
}

func NewJiraHandler(projects ProjectLister, logger *zap.Logger) *JiraHandler {
	return &JiraHandler{projects: projects, logger: logger}
}

// GetProjectList feeds the project picker of the recorder UI
func (h *JiraHandler) GetProjectList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("Failed to list jira projects", zap.Error(err))
		http.Error(w, "Failed to list jira projects", http.StatusBadGateway)
		return
	}

	list := make([]models.JiraProject, 0, len(projects))
	for _, p := range projects {
		list = append(list, models.JiraProject{Key: p.Key, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, models.ProjectListResponse{ProjectList: list})
}

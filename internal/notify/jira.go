package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Mansoor88-6/session-replay/internal/config"
	"Mansoor88-6/session-replay/internal/models"

	"go.uber.org/zap"
)

// JiraClient talks to the Jira Cloud REST API v3
type JiraClient struct {
	cfg        config.JiraConfig
	viewerURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewJiraClient(cfg config.JiraConfig, viewerBaseURL string, httpClient *http.Client, logger *zap.Logger) *JiraClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &JiraClient{
		cfg:        cfg,
		viewerURL:  viewerBaseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Configured reports whether URL, email and token are all set
func (c *JiraClient) Configured() bool {
	return c.cfg.APIURL != "" && c.cfg.Email != "" && c.cfg.APIToken != ""
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Version int       `json:"version,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

type issueRequest struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Project     keyRef  `json:"project"`
	Summary     string  `json:"summary"`
	Description adfNode `json:"description"`
	IssueType   nameRef `json:"issuetype"`
}

type keyRef struct {
	Key string `json:"key"`
}

type nameRef struct {
	Name string `json:"name"`
}

type issueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// CreateTicket opens a Task for the stored event and returns its browse
// URL. Missing configuration or an empty project key return ("", nil).
func (c *JiraClient) CreateTicket(ctx context.Context, eventID int64, projectKey, userAgent string) (string, error) {
	if !c.Configured() {
		c.logger.Warn("Jira is not configured, skipping ticket (JIRA_API_URL, JIRA_EMAIL, JIRA_API_TOKEN)")
		return "", nil
	}
	if projectKey == "" {
		c.logger.Debug("No Jira project key, skipping ticket", zap.Int64("event_id", eventID))
		return "", nil
	}

	paragraphs := []string{fmt.Sprintf("Stored event ID: %d", eventID)}
	if link := c.ViewerLink(eventID); link != "" {
		paragraphs = append(paragraphs, "Replay: "+link)
	}
	if userAgent != "" {
		paragraphs = append(paragraphs,
			"Environment: "+ParseUserAgent(userAgent).String(),
			"User agent: "+userAgent,
		)
	}

	doc := adfNode{Type: "doc", Version: 1}
	for _, p := range paragraphs {
		doc.Content = append(doc.Content, adfNode{
			Type:    "paragraph",
			Content: []adfNode{{Type: "text", Text: p}},
		})
	}

	body := issueRequest{Fields: issueFields{
		Project:     keyRef{Key: projectKey},
		Summary:     fmt.Sprintf("Session replay issue - Event: %d", eventID),
		Description: doc,
		IssueType:   nameRef{Name: "Task"},
	}}

	var issue issueResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", body, &issue); err != nil {
		return "", fmt.Errorf("failed to create jira ticket: %w", err)
	}

	c.logger.Info("Jira ticket created",
		zap.String("issue_key", issue.Key),
		zap.Int64("event_id", eventID),
	)
	return c.cfg.APIURL + "/browse/" + issue.Key, nil
}

// ListProjects returns the projects visible to the configured account.
// It returns nil without calling Jira when configuration is missing.
func (c *JiraClient) ListProjects(ctx context.Context) ([]models.JiraProject, error) {
	if !c.Configured() {
		c.logger.Warn("Jira is not configured, returning no projects")
		return nil, nil
	}

	var projects []models.JiraProject
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/project", nil, &projects); err != nil {
		return nil, fmt.Errorf("failed to list jira projects: %w", err)
	}
	return projects, nil
}

// ViewerLink builds the replay viewer URL for an event
func (c *JiraClient) ViewerLink(eventID int64) string {
	if c.viewerURL == "" {
		return ""
	}
	u, err := url.Parse(c.viewerURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("eventId", fmt.Sprint(eventID))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *JiraClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("jira returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

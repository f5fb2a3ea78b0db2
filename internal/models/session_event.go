package models

// SessionEvent is a persisted, server-side event row
type SessionEvent struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId"`
	EventData string `json:"eventData"`
	Timestamp int64  `json:"timestamp"` // server ingest time, epoch ms
}

// SaveMultipleRequest is the body of the batch collector endpoint
type SaveMultipleRequest struct {
	SessionID      string   `json:"sessionId"`
	Packed         []string `json:"packed"`
	JiraProjectKey string   `json:"jiraProjectKey"`
	UserAgent      string   `json:"userAgent"`
}

type SaveResponse struct {
	SessionID string `json:"sessionId"`
	Saved     int    `json:"saved"`
}

type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// JiraProject is one entry of the project list endpoint
type JiraProject struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type ProjectListResponse struct {
	ProjectList []JiraProject `json:"projectList"`
}

package models

// EventRecord is one captured recorder event. Payload is opaque and
// Timestamp is epoch milliseconds.
type EventRecord struct {
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
	// Seq is assigned by the buffer on append and, together with
	// Timestamp, identifies the record for purge after delivery.
	Seq uint64 `json:"-"`
}

// SessionState is a read-only view of the recording buffer
type SessionState struct {
	SessionID       string `json:"sessionId"`
	IsRecording     bool   `json:"isRecording"`
	EventCount      int    `json:"eventCount"`
	OldestEventTime *int64 `json:"oldestEventTime"`
	NewestEventTime *int64 `json:"newestEventTime"`
	DurationMs      int64  `json:"durationMs"`
}

// UploadPayload is the body POSTed to the collector
type UploadPayload struct {
	Packed         string `json:"packed"` // JSON-encoded array of packed events
	SessionID      string `json:"sessionId"`
	JiraProjectKey string `json:"jiraProjectKey"`
	UserAgent      string `json:"userAgent"`
}

// UploadResponse is returned by the collector on success
type UploadResponse struct {
	SessionID string `json:"sessionId"`
	Saved     *int   `json:"saved,omitempty"`
}

// SavedCount returns Saved, or fallback when the collector did not report it.
func (r *UploadResponse) SavedCount(fallback int) int {
	if r == nil || r.Saved == nil {
		return fallback
	}
	return *r.Saved
}

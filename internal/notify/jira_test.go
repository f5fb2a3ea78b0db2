package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"Mansoor88-6/session-replay/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateTicket(t *testing.T) {
	var got issueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/issue", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "qa@example.com", user)
		assert.Equal(t, "secret", pass)

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"10001","key":"QA-7","self":"x"}`))
	}))
	defer srv.Close()

	c := NewJiraClient(config.JiraConfig{
		APIURL:   srv.URL + "/",
		Email:    "qa@example.com",
		APIToken: "secret",
	}, "https://viewer.example.com/replay", srv.Client(), zap.NewNop())

	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	url, err := c.CreateTicket(context.Background(), 42, "QA", ua)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/browse/QA-7", url)

	assert.Equal(t, "QA", got.Fields.Project.Key)
	assert.Equal(t, "Session replay issue - Event: 42", got.Fields.Summary)
	assert.Equal(t, "Task", got.Fields.IssueType.Name)
	assert.Equal(t, "doc", got.Fields.Description.Type)

	var texts []string
	for _, p := range got.Fields.Description.Content {
		for _, n := range p.Content {
			texts = append(texts, n.Text)
		}
	}
	assert.Contains(t, texts, "Replay: https://viewer.example.com/replay?eventId=42")
	assert.Contains(t, texts, "User agent: "+ua)
}

func TestCreateTicketSkipsWithoutConfig(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	unconfigured := NewJiraClient(config.JiraConfig{APIURL: srv.URL}, "", srv.Client(), zap.NewNop())
	url, err := unconfigured.CreateTicket(context.Background(), 1, "QA", "")
	require.NoError(t, err)
	assert.Empty(t, url)

	noKey := NewJiraClient(config.JiraConfig{APIURL: srv.URL, Email: "a", APIToken: "b"}, "", srv.Client(), zap.NewNop())
	url, err = noKey.CreateTicket(context.Background(), 1, "", "")
	require.NoError(t, err)
	assert.Empty(t, url)

	assert.False(t, called)
}

func TestCreateTicketError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":{"project":"invalid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewJiraClient(config.JiraConfig{APIURL: srv.URL, Email: "a", APIToken: "b"}, "", srv.Client(), zap.NewNop())
	_, err := c.CreateTicket(context.Background(), 1, "NOPE", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestListProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/project", r.URL.Path)
		w.Write([]byte(`[{"id":"1","key":"QA","name":"Quality","self":"x"},{"id":"2","key":"OPS","name":"Ops"}]`))
	}))
	defer srv.Close()

	c := NewJiraClient(config.JiraConfig{APIURL: srv.URL, Email: "a", APIToken: "b"}, "", srv.Client(), zap.NewNop())
	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "QA", projects[0].Key)
	assert.Equal(t, "Ops", projects[1].Name)
}

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Mansoor88-6/session-replay/internal/metrics"
	"Mansoor88-6/session-replay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTickets struct {
	url   string
	err   error
	calls []string
	mu    sync.Mutex
}

func (f *fakeTickets) CreateTicket(ctx context.Context, eventID int64, projectKey, userAgent string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, projectKey)
	return f.url, f.err
}

type fakeChat struct {
	mu       sync.Mutex
	messages []string
	eventIDs []int64
	err      error
}

func (f *fakeChat) SendNotification(ctx context.Context, message string, eventID int64, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	f.eventIDs = append(f.eventIDs, eventID)
	return f.err
}

type fakeArchiver struct {
	mu      sync.Mutex
	batches int
	err     error
	block   chan struct{}
}

func (f *fakeArchiver) Archive(ctx context.Context, events []*models.SessionEvent) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	return f.err
}

func notification() Notification {
	return Notification{
		SessionID:  "s1",
		ProjectKey: "QA",
		UserAgent:  "ua",
		Events:     []*models.SessionEvent{{ID: 11, SessionID: "s1"}, {ID: 12, SessionID: "s1"}},
	}
}

func waitDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatchTicketThenChat(t *testing.T) {
	tickets := &fakeTickets{url: "https://jira/browse/QA-1"}
	chat := &fakeChat{}
	archiver := &fakeArchiver{}
	m := metrics.New()
	d := NewDispatcher(tickets, chat, archiver, time.Second, m, zap.NewNop())

	d.Dispatch(notification())
	waitDispatcher(t, d)

	assert.Equal(t, []string{"QA"}, tickets.calls)
	require.Len(t, chat.messages, 1)
	assert.Contains(t, chat.messages[0], "Jira: https://jira/browse/QA-1")
	assert.Contains(t, chat.messages[0], "Events saved: 2")
	assert.Equal(t, []int64{11}, chat.eventIDs)
	assert.Equal(t, 1, archiver.batches)
	assert.Equal(t, int64(2), m.NotificationsSentTotal)
}

func TestDispatchChatRunsWhenTicketFails(t *testing.T) {
	tickets := &fakeTickets{err: errors.New("jira down")}
	chat := &fakeChat{}
	m := metrics.New()
	d := NewDispatcher(tickets, chat, nil, time.Second, m, zap.NewNop())

	d.Dispatch(notification())
	waitDispatcher(t, d)

	require.Len(t, chat.messages, 1)
	assert.NotContains(t, chat.messages[0], "Jira:")
	assert.Equal(t, int64(1), m.NotificationsFailedTotal)
	assert.Equal(t, int64(1), m.NotificationsSentTotal)
}

func TestDispatchFailuresAreSwallowed(t *testing.T) {
	chat := &fakeChat{err: errors.New("slack down")}
	archiver := &fakeArchiver{err: errors.New("s3 down")}
	m := metrics.New()
	d := NewDispatcher(nil, chat, archiver, time.Second, m, zap.NewNop())

	d.Dispatch(notification())
	waitDispatcher(t, d)

	assert.Equal(t, 1, archiver.batches)
	assert.Equal(t, int64(1), m.NotificationsFailedTotal)
}

func TestDispatchArchiveIsIndependent(t *testing.T) {
	chat := &fakeChat{}
	archiver := &fakeArchiver{block: make(chan struct{})}
	d := NewDispatcher(nil, chat, archiver, time.Second, metrics.New(), zap.NewNop())

	d.Dispatch(notification())

	require.Eventually(t, func() bool {
		chat.mu.Lock()
		defer chat.mu.Unlock()
		return len(chat.messages) == 1
	}, time.Second, 5*time.Millisecond, "chat must not wait for the archive")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(archiver.block)
	waitDispatcher(t, d)
	assert.Equal(t, 1, archiver.batches)
}

func TestDispatchWithoutEventsIsNoop(t *testing.T) {
	chat := &fakeChat{}
	d := NewDispatcher(nil, chat, nil, time.Second, metrics.New(), zap.NewNop())
	d.Dispatch(Notification{SessionID: "s1"})
	waitDispatcher(t, d)
	assert.Empty(t, chat.messages)
}

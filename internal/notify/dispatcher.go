package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Mansoor88-6/session-replay/internal/metrics"
	"Mansoor88-6/session-replay/internal/models"

	"go.uber.org/zap"
)

type TicketCreator interface {
	CreateTicket(ctx context.Context, eventID int64, projectKey, userAgent string) (string, error)
}

type ChatNotifier interface {
	SendNotification(ctx context.Context, message string, eventID int64, channelID string) error
}

type Archiver interface {
	Archive(ctx context.Context, events []*models.SessionEvent) error
}

// Notification describes one successful ingest
type Notification struct {
	SessionID  string
	ProjectKey string
	UserAgent  string
	Events     []*models.SessionEvent
}

// Dispatcher fans an ingest out to the ticket, chat and archive
// collaborators in the background. Any of them may be nil.
type Dispatcher struct {
	tickets  TicketCreator
	chat     ChatNotifier
	archiver Archiver
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	wg sync.WaitGroup
}

func NewDispatcher(
	tickets TicketCreator,
	chat ChatNotifier,
	archiver Archiver,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		tickets:  tickets,
		chat:     chat,
		archiver: archiver,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

// Dispatch returns immediately. Failures are logged and counted, never
// returned.
func (d *Dispatcher) Dispatch(n Notification) {
	if len(n.Events) == 0 {
		return
	}

	if d.tickets != nil || d.chat != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.notify(n)
		}()
	}

	if d.archiver != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.archive(n)
		}()
	}
}

// notify creates the ticket, then posts to chat whether or not the
// ticket step succeeded.
func (d *Dispatcher) notify(n Notification) {
	eventID := n.Events[0].ID
	logger := d.logger.With(
		zap.String("session_id", n.SessionID),
		zap.Int64("event_id", eventID),
	)

	var ticketURL string
	if d.tickets != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		url, err := d.tickets.CreateTicket(ctx, eventID, n.ProjectKey, n.UserAgent)
		cancel()
		if err != nil {
			d.metrics.Inc(&d.metrics.NotificationsFailedTotal)
			logger.Error("Failed to create ticket", zap.Error(err))
		} else if url != "" {
			d.metrics.Inc(&d.metrics.NotificationsSentTotal)
			ticketURL = url
		}
	}

	if d.chat == nil {
		return
	}

	message := fmt.Sprintf("Session: %s\nEvents saved: %d", n.SessionID, len(n.Events))
	if ticketURL != "" {
		message += "\nJira: " + ticketURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.chat.SendNotification(ctx, message, eventID, ""); err != nil {
		d.metrics.Inc(&d.metrics.NotificationsFailedTotal)
		logger.Error("Failed to send chat notification", zap.Error(err))
		return
	}
	d.metrics.Inc(&d.metrics.NotificationsSentTotal)
}

func (d *Dispatcher) archive(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.archiver.Archive(ctx, n.Events); err != nil {
		d.logger.Error("Failed to archive batch",
			zap.String("session_id", n.SessionID),
			zap.Int("event_count", len(n.Events)),
			zap.Error(err),
		)
	}
}

// Wait blocks until in-flight notifications finish or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"Mansoor88-6/session-replay/internal/buffer"
	"Mansoor88-6/session-replay/internal/capture"
	"Mansoor88-6/session-replay/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordingState is the coordinator lifecycle state
type RecordingState string

const (
	StateIdle      RecordingState = "idle"
	StateRecording RecordingState = "recording"
	StateDestroyed RecordingState = "destroyed"
)

// Uploader delivers a batch of records to the collector
type Uploader interface {
	Send(ctx context.Context, records []models.EventRecord, sessionID, projectKey string) (*models.UploadResponse, error)
}

// CaptureStartError reports that the capture source refused to start
type CaptureStartError struct {
	Err error
}

func (e *CaptureStartError) Error() string {
	return fmt.Sprintf("failed to start capture: %v", e.Err)
}

func (e *CaptureStartError) Unwrap() error {
	return e.Err
}

// RecordingOptions configures a RecordingService. Callbacks are optional.
type RecordingOptions struct {
	SessionID  string
	ProjectKey string
	// UploadInterval triggers periodic uploads while recording; 0 disables
	UploadInterval time.Duration
	UploadTimeout  time.Duration

	OnRecordingStart func()
	OnRecordingStop  func()
	OnUploadSuccess  func(sessionID string, count int)
	OnUploadError    func(err error)
	OnError          func(err error)
}

// RecordingService owns one recording session: the capture source, the
// sliding-window buffer and the delivery triggers.
type RecordingService struct {
	source   capture.Source
	buffer   *buffer.Buffer
	uploader Uploader
	opts     RecordingOptions
	logger   *zap.Logger

	sessionID string
	state     RecordingState
	resources []io.Closer
	mu        sync.RWMutex

	// opMu serialises Start, Stop and Destroy
	opMu sync.Mutex

	// uploadMu keeps a single delivery in flight
	uploadMu sync.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewRecordingService creates an idle recording service
func NewRecordingService(
	source capture.Source,
	buf *buffer.Buffer,
	uploader Uploader,
	opts RecordingOptions,
	logger *zap.Logger,
) *RecordingService {
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = NewSessionID(time.Now())
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 2 * time.Minute
	}
	return &RecordingService{
		source:    source,
		buffer:    buf,
		uploader:  uploader,
		opts:      opts,
		logger:    logger.With(zap.String("session_id", sessionID)),
		sessionID: sessionID,
		state:     StateIdle,
	}
}

// NewSessionID returns "session_<epoch ms>_<9 random chars>"
func NewSessionID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), random)
}

// SessionID returns the session identifier used for every upload
func (rs *RecordingService) SessionID() string {
	return rs.sessionID
}

// Start begins recording. It is a no-op when already recording or
// destroyed. Capture failures go to OnError and leave the service idle.
func (rs *RecordingService) Start() {
	rs.opMu.Lock()
	switch rs.Lifecycle() {
	case StateRecording:
		rs.opMu.Unlock()
		rs.logger.Warn("Recording already in progress")
		return
	case StateDestroyed:
		rs.opMu.Unlock()
		rs.logger.Warn("Start called on destroyed recording service")
		return
	}

	rs.buffer.Reset()
	// the source may emit synchronously from Start
	rs.setState(StateRecording)

	if err := rs.source.Start(rs.onEvent); err != nil {
		rs.setState(StateIdle)
		// drop anything emitted before the failure
		rs.buffer.Reset()
		rs.opMu.Unlock()
		rs.logger.Error("Failed to start recording", zap.Error(err))
		rs.reportError(&CaptureStartError{Err: err})
		return
	}

	rs.buffer.StartEviction()
	rs.stopChan = make(chan struct{})
	if rs.opts.UploadInterval > 0 {
		rs.wg.Add(1)
		go rs.uploadLoop(rs.stopChan)
	}
	rs.opMu.Unlock()

	rs.logger.Info("Recording started",
		zap.Duration("upload_interval", rs.opts.UploadInterval),
	)
	if rs.opts.OnRecordingStart != nil {
		rs.opts.OnRecordingStart()
	}
}

// Stop halts capture and the timers. Buffered events are kept so they can
// still be uploaded.
func (rs *RecordingService) Stop() {
	rs.opMu.Lock()
	if rs.Lifecycle() != StateRecording {
		rs.opMu.Unlock()
		return
	}
	rs.setState(StateIdle)
	rs.halt()
	rs.opMu.Unlock()

	rs.logger.Info("Recording stopped", zap.Int("buffered_events", rs.buffer.Len()))
	if rs.opts.OnRecordingStop != nil {
		rs.opts.OnRecordingStop()
	}
}

// halt stops capture and cancels both timers. An upload already in
// flight is left to finish. Callers hold opMu.
func (rs *RecordingService) halt() {
	if err := rs.source.Stop(); err != nil {
		rs.logger.Warn("Failed to stop capture source", zap.Error(err))
	}
	rs.buffer.StopEviction()
	if rs.stopChan != nil {
		close(rs.stopChan)
		rs.stopChan = nil
	}
}

func (rs *RecordingService) setState(state RecordingState) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.state = state
}

// State computes the current session state from the buffer
func (rs *RecordingService) State() models.SessionState {
	rs.mu.RLock()
	recording := rs.state == StateRecording
	rs.mu.RUnlock()

	count, oldest, newest := rs.buffer.Bounds()
	var duration int64
	if count >= 2 {
		duration = *newest - *oldest
	}

	return models.SessionState{
		SessionID:       rs.sessionID,
		IsRecording:     recording,
		EventCount:      count,
		OldestEventTime: oldest,
		NewestEventTime: newest,
		DurationMs:      duration,
	}
}

// Lifecycle returns idle, recording or destroyed
func (rs *RecordingService) Lifecycle() RecordingState {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.state
}

// UploadNow delivers the current buffer contents. It returns nil when the
// buffer is empty, when the service is destroyed or when delivery fails;
// failures are reported through OnUploadError and leave the buffer intact.
func (rs *RecordingService) UploadNow(ctx context.Context, projectKey string) *models.UploadResponse {
	rs.uploadMu.Lock()
	defer rs.uploadMu.Unlock()

	if rs.Lifecycle() == StateDestroyed {
		return nil
	}

	records := rs.buffer.Snapshot()
	if len(records) == 0 {
		rs.logger.Debug("No events to upload")
		return nil
	}

	resp, err := rs.uploader.Send(ctx, records, rs.sessionID, projectKey)
	if err != nil {
		rs.logger.Error("Upload failed, keeping buffered events",
			zap.Error(err),
			zap.Int("event_count", len(records)),
		)
		if rs.opts.OnUploadError != nil {
			rs.opts.OnUploadError(err)
		}
		return nil
	}
	if resp == nil {
		return nil
	}

	rs.mu.RLock()
	destroyed := rs.state == StateDestroyed
	if !destroyed {
		rs.buffer.RemoveByIdentity(records)
	}
	rs.mu.RUnlock()
	if destroyed {
		return nil
	}

	saved := resp.SavedCount(len(records))
	rs.logger.Info("Upload succeeded",
		zap.Int("event_count", len(records)),
		zap.Int("saved", saved),
	)
	if rs.opts.OnUploadSuccess != nil {
		rs.opts.OnUploadSuccess(resp.SessionID, saved)
	}
	return resp
}

// AttachResource registers a resource that Destroy closes
func (rs *RecordingService) AttachResource(c io.Closer) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.resources = append(rs.resources, c)
}

// Destroy stops recording, clears the buffer and closes attached
// resources. Only the first call has any effect.
func (rs *RecordingService) Destroy() {
	rs.opMu.Lock()
	defer rs.opMu.Unlock()

	previous := rs.Lifecycle()
	if previous == StateDestroyed {
		return
	}

	rs.mu.Lock()
	rs.state = StateDestroyed
	rs.buffer.Reset()
	resources := rs.resources
	rs.resources = nil
	rs.mu.Unlock()

	if previous == StateRecording {
		rs.halt()
	}

	var errs []error
	for _, r := range resources {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		rs.logger.Warn("Failed to release resources", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		rs.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		rs.logger.Warn("Upload loop did not stop within timeout")
	}

	rs.logger.Info("Recording service destroyed")
}

// onEvent is the capture callback. Events arriving while not recording
// are dropped.
func (rs *RecordingService) onEvent(rec models.EventRecord) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if rs.state != StateRecording {
		return
	}
	rs.buffer.Append(rec)
}

func (rs *RecordingService) uploadLoop(stopChan <-chan struct{}) {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.opts.UploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), rs.opts.UploadTimeout)
			rs.UploadNow(ctx, rs.opts.ProjectKey)
			cancel()
		case <-stopChan:
			return
		}
	}
}

func (rs *RecordingService) reportError(err error) {
	if rs.opts.OnError != nil {
		rs.opts.OnError(err)
	}
}

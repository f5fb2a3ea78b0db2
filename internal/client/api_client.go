package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"Mansoor88-6/session-replay/internal/models"
	"Mansoor88-6/session-replay/internal/packer"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetryCount = 3
	DefaultRetryDelay    = time.Second
)

// Options configures the delivery client
type Options struct {
	ServerURL     string
	APIKey        string
	UserAgent     string
	MaxRetryCount int
	RetryDelay    time.Duration
	Timeout       time.Duration
	Packer        packer.Packer
}

// APIClient delivers buffered events to the collector
type APIClient struct {
	serverURL     string
	apiKey        string
	userAgent     string
	maxRetryCount int
	retryDelay    time.Duration
	packer        packer.Packer
	httpClient    *http.Client
	timer         backoff.Timer // nil uses the library's real timer
	logger        *zap.Logger
}

// NewAPIClient creates a new API client
func NewAPIClient(opts Options, logger *zap.Logger) *APIClient {
	if opts.MaxRetryCount < 1 {
		opts.MaxRetryCount = DefaultMaxRetryCount
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Packer == nil {
		opts.Packer = &packer.GzipPacker{}
	}
	return &APIClient{
		serverURL:     opts.ServerURL,
		apiKey:        opts.APIKey,
		userAgent:     opts.UserAgent,
		maxRetryCount: opts.MaxRetryCount,
		retryDelay:    opts.RetryDelay,
		packer:        opts.Packer,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

// Send packs records and POSTs them to the collector, retrying with
// exponential backoff. It returns (nil, nil) when records is empty.
// When every attempt fails the error is a *DeliveryError.
func (c *APIClient) Send(ctx context.Context, records []models.EventRecord, sessionID, projectKey string) (*models.UploadResponse, error) {
	if len(records) == 0 {
		return nil, nil
	}

	body, err := c.buildPayload(records, sessionID, projectKey)
	if err != nil {
		return nil, err
	}

	var (
		result   *models.UploadResponse
		attempts int
	)
	operation := func() error {
		attempts++
		resp, err := c.post(ctx, body, len(records))
		if err != nil {
			return err
		}
		result = resp
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("Upload attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", c.maxRetryCount),
			zap.Duration("retry_in", next),
		)
	}

	if err := backoff.RetryNotifyWithTimer(operation, c.newBackOff(ctx), notify, c.timer); err != nil {
		c.logger.Error("Upload failed",
			zap.Error(err),
			zap.String("session_id", sessionID),
			zap.Int("event_count", len(records)),
			zap.Int("attempts", attempts),
		)
		return nil, &DeliveryError{Attempts: attempts, Err: err}
	}

	if result.SessionID == "" {
		result.SessionID = sessionID
	}
	return result, nil
}

// newBackOff yields retryDelay, 2*retryDelay, 4*retryDelay ... and stops
// after maxRetryCount-1 retries.
func (c *APIClient) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = c.retryDelay << uint(c.maxRetryCount)
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.maxRetryCount-1)), ctx)
}

func (c *APIClient) buildPayload(records []models.EventRecord, sessionID, projectKey string) ([]byte, error) {
	packed := make([]string, 0, len(records))
	for _, rec := range records {
		p, err := c.packer.Pack(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to pack event: %w", err)
		}
		packed = append(packed, p)
	}

	packedJSON, err := json.Marshal(packed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal packed events: %w", err)
	}

	payload := models.UploadPayload{
		Packed:         string(packedJSON),
		SessionID:      sessionID,
		JiraProjectKey: projectKey,
		UserAgent:      c.userAgent,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return body, nil
}

func (c *APIClient) post(ctx context.Context, body []byte, eventCount int) (*models.UploadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result models.UploadResponse
		if len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, &result); err != nil {
				return nil, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		c.logger.Info("Batch sent successfully",
			zap.Int("event_count", eventCount),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", duration),
		)
		return &result, nil
	}

	return nil, statusError(resp.StatusCode, respBody)
}

// HealthCheck checks if the collector host is reachable
func (c *APIClient) HealthCheck(ctx context.Context, healthURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

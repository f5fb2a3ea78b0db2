package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"Mansoor88-6/session-replay/internal/config"

	"go.uber.org/zap"
)

// SlackClient posts messages through chat.postMessage
type SlackClient struct {
	cfg        config.SlackConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewSlackClient(cfg config.SlackConfig, httpClient *http.Client, logger *zap.Logger) *SlackClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackClient{cfg: cfg, httpClient: httpClient, logger: logger}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
}

type slackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []slackBlock `json:"blocks"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Configured reports whether the chat link and bot token are set
func (c *SlackClient) Configured() bool {
	return c.cfg.ChatLink != "" && c.cfg.BotToken != ""
}

// SendNotification posts message to channelID, or to the configured
// default channel when channelID is empty. Missing configuration is a
// no-op.
func (c *SlackClient) SendNotification(ctx context.Context, message string, eventID int64, channelID string) error {
	if !c.Configured() {
		c.logger.Warn("Slack is not configured, skipping notification (SLACK_CHAT_LINK, SLACK_BOT_TOKEN)")
		return nil
	}
	if channelID == "" {
		channelID = c.cfg.ChannelID
	}
	if channelID == "" {
		c.logger.Warn("No Slack channel configured, skipping notification (SLACK_CHANNEL_ID)")
		return nil
	}

	msg := slackMessage{
		Channel: channelID,
		Text:    message,
		Blocks: []slackBlock{{
			Type: "section",
			Text: slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Session replay saved*\nEvent ID: %d\n%s", eventID, message),
			},
		}},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChatLink, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack returned status %d: %s", resp.StatusCode, string(body))
	}

	var result slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode slack response: %w", err)
	}
	if !result.OK {
		if result.Error == "" {
			result.Error = "unknown error"
		}
		return fmt.Errorf("slack api error: %s", result.Error)
	}

	c.logger.Info("Slack notification sent",
		zap.Int64("event_id", eventID),
		zap.String("channel", channelID),
	)
	return nil
}

// Package notify posts CI reports to Slack through an incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client posts messages to a Slack incoming webhook.
type Client struct {
	WebhookURL string
	HTTPClient *http.Client
}

// NewClient builds a client for the given webhook URL. An empty URL falls
// back to the SLACK_WEBHOOK or SLACK_WEBHOOK_URL environment variables.
func NewClient(webhookURL string) (*Client, error) {
	if webhookURL == "" {
		webhookURL = os.Getenv("SLACK_WEBHOOK")
	}
	if webhookURL == "" {
		webhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}
	if webhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL not provided; set SLACK_WEBHOOK or SLACK_WEBHOOK_URL")
	}
	return &Client{
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Message is a Slack webhook payload. Blocks are optional Block Kit
// content; Text doubles as the notification fallback.
type Message struct {
	Text      string           `json:"text"`
	Blocks    []map[string]any `json:"blocks,omitempty"`
	Channel   string           `json:"channel,omitempty"`
	Username  string           `json:"username,omitempty"`
	IconEmoji string           `json:"icon_emoji,omitempty"`
}

// Send posts a message to the webhook.
func (c *Client) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack webhook returned HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// ReportMeta carries the CI context attached to a report.
type ReportMeta struct {
	ProjectName string
	Branch      string
	CommitSHA   string
}

const maxListedNodes = 20

// CIReport builds the report message for a set of modified resources.
func CIReport(modified []string, meta ReportMeta) Message {
	header := "*dbt CI Report*"
	if meta.ProjectName != "" {
		header = fmt.Sprintf("*dbt CI Report - %s*", meta.ProjectName)
	}

	var text, body string
	if len(modified) == 0 {
		text = "No modified models detected"
		body = header + "\n\nNo modified models detected"
	} else {
		text = fmt.Sprintf("%d modified model(s) detected", len(modified))
		body = fmt.Sprintf("%s\n\n*%d modified model(s) detected*\n", header, len(modified))
		for i, name := range modified {
			if i == maxListedNodes {
				body += fmt.Sprintf("... and %d more\n", len(modified)-maxListedNodes)
				break
			}
			body += fmt.Sprintf("• `%s`\n", name)
		}
	}

	blocks := []map[string]any{
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": body},
		},
	}
	if meta.Branch != "" || meta.CommitSHA != "" {
		blocks = append(blocks, map[string]any{
			"type": "context",
			"elements": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("branch: %s | commit: %s", meta.Branch, meta.CommitSHA)},
			},
		})
	}

	return Message{Text: text, Blocks: blocks}
}

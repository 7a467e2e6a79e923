// Package notify fans categorized email records out to the configured
// webhook sinks. Delivery is fire-and-forget: each sink is attempted once,
// a missing URL silently disables that sink, and a failure on one sink
// never affects the other.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/inbox-aggregator/internal/metrics"
	"github.com/nhle/inbox-aggregator/internal/model"
)

// Dispatcher delivers notifications to a Slack-style webhook and a generic
// webhook sink.
type Dispatcher struct {
	slackURL    string
	webhookURL  string
	frontendURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// New creates a dispatcher. Either URL may be empty; the corresponding
// sink is then skipped without logging an error.
func New(slackURL, webhookURL, frontendURL string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		slackURL:    slackURL,
		webhookURL:  webhookURL,
		frontendURL: frontendURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Dispatch sends the record's summary to every configured sink. Sink
// failures are logged and absorbed; Dispatch never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, rec model.EmailRecord) {
	if d.slackURL != "" {
		err := d.post(ctx, d.slackURL, slackPayload(rec, d.frontendURL))
		metrics.RecordNotification("slack", err == nil)
		if err != nil {
			d.logger.Error("slack notification failed",
				zap.String("id", rec.ID), zap.Error(err))
		} else {
			d.logger.Info("slack notification sent", zap.String("id", rec.ID))
		}
	}

	if d.webhookURL != "" {
		err := d.post(ctx, d.webhookURL, webhookPayload(rec))
		metrics.RecordNotification("webhook", err == nil)
		if err != nil {
			d.logger.Error("webhook notification failed",
				zap.String("id", rec.ID), zap.Error(err))
		} else {
			d.logger.Info("webhook notification sent", zap.String("id", rec.ID))
		}
	}
}

// post delivers one JSON payload. Exactly one attempt, no retry.
func (d *Dispatcher) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return nil
}

// slackPayload builds the blocks/sections message shape Slack expects.
func slackPayload(rec model.EmailRecord, frontendURL string) map[string]any {
	previewText := rec.Text
	if len(previewText) > 200 {
		previewText = previewText[:200] + "..."
	}

	return map[string]any{
		"text": "New Interested Email Detected!",
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": "New Interested Email",
				},
			},
			{
				"type": "section",
				"fields": []map[string]any{
					{"type": "mrkdwn", "text": "*From:* " + rec.From},
					{"type": "mrkdwn", "text": "*Subject:* " + rec.Subject},
					{"type": "mrkdwn", "text": "*Account:* " + rec.Account},
					{"type": "mrkdwn", "text": "*Date:* " + rec.Date.Format(time.RFC1123)},
				},
			},
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": "*Preview:* " + previewText,
				},
			},
			{
				"type": "actions",
				"elements": []map[string]any{
					{
						"type": "button",
						"text": map[string]any{
							"type": "plain_text",
							"text": "View Email",
						},
						"url":   fmt.Sprintf("%s/emails/%s", frontendURL, rec.ID),
						"style": "primary",
					},
				},
			},
		},
	}
}

// webhookEvent is the flat envelope posted to the generic sink.
type webhookEvent struct {
	Event     string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Email     webhookEmail `json:"email"`
}

type webhookEmail struct {
	ID       string         `json:"id"`
	From     string         `json:"from"`
	Subject  string         `json:"subject"`
	Account  string         `json:"account"`
	Date     time.Time      `json:"date"`
	Category model.Category `json:"category"`
	Preview  string         `json:"preview"`
}

func webhookPayload(rec model.EmailRecord) webhookEvent {
	previewText := rec.Text
	if len(previewText) > 500 {
		previewText = previewText[:500]
	}

	return webhookEvent{
		Event:     "interested_email",
		Timestamp: time.Now().UTC(),
		Email: webhookEmail{
			ID:       rec.ID,
			From:     rec.From,
			Subject:  rec.Subject,
			Account:  rec.Account,
			Date:     rec.Date,
			Category: rec.Category,
			Preview:  previewText,
		},
	}
}

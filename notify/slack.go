package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go-sniper/models"
)

// Slack posts scan outcomes to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	httpClient *http.Client

	retries   int
	baseDelay time.Duration
}

// NewSlack returns a notifier for the settings, or nil when Slack
// notifications are disabled. A nil *Slack is a valid no-op notifier.
func NewSlack(s models.Settings) *Slack {
	if !s.SlackNotifications || s.SlackWebhookURL == "" {
		return nil
	}
	return &Slack{
		webhookURL: s.SlackWebhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retries:    3,
		baseDelay:  time.Second,
	}
}

// NotifyScan sends a single message describing the finished result.
func (s *Slack) NotifyScan(ctx context.Context, r models.ScanResult) error {
	if s == nil {
		return nil
	}

	body, err := json.Marshal(buildPayload(r))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// NotifyScanWithRetry retries NotifyScan with exponential backoff.
func (s *Slack) NotifyScanWithRetry(ctx context.Context, r models.ScanResult) error {
	if s == nil {
		return nil
	}

	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err = s.NotifyScan(ctx, r); err == nil {
			logrus.Debugf("Sent Slack notification for result %s", r.ID)
			return nil
		}
		if attempt == s.retries {
			break
		}

		delay := s.baseDelay * time.Duration(1<<attempt)
		logrus.Warnf("Slack notification failed (attempt %d/%d), retrying in %v: %v", attempt+1, s.retries+1, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("slack notification after %d attempts: %w", s.retries+1, err)
}

func buildPayload(r models.ScanResult) payload {
	color := colorGood
	title := fmt.Sprintf("Scan of %s completed", r.Target)
	if r.Status == models.StatusFailed {
		color = colorDanger
		title = fmt.Sprintf("Scan of %s failed", r.Target)
	}

	counts := r.SeverityCounts()
	duration := "-"
	if r.Duration != nil {
		duration = (time.Duration(*r.Duration) * time.Second).String()
	}

	return payload{
		Text: title,
		Attachments: []attachment{{
			Color: color,
			Title: title,
			Fields: []field{
				{Title: "Workspace", Value: r.Workspace, Short: true},
				{Title: "Mode", Value: string(r.Mode), Short: true},
				{Title: "Duration", Value: duration, Short: true},
				{Title: "Open ports", Value: strconv.Itoa(len(r.Ports)), Short: true},
				{Title: "Vulnerabilities", Value: fmt.Sprintf("%d critical, %d high, %d medium, %d low, %d info",
					counts.Critical, counts.High, counts.Medium, counts.Low, counts.Info)},
			},
			Footer: "sniper/" + r.ID,
		}},
	}
}

package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/arnavshah/site-capacity-api/pkg/models"
	"github.com/slack-go/slack"
)

// Notifier tells approvers about sites running over budget
type Notifier interface {
	SitesAlerting(ctx context.Context, periodID string, rollups []models.SiteRollup) error
}

// Nop discards every alert
type Nop struct{}

func (Nop) SitesAlerting(context.Context, string, []models.SiteRollup) error { return nil }

// Slack posts alerts to an incoming webhook
type Slack struct {
	WebhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlack creates a notifier posting to webhookURL
func NewSlack(webhookURL string) *Slack {
	return &Slack{WebhookURL: webhookURL, post: slack.PostWebhookContext}
}

// SitesAlerting posts one message listing every critical or exceeded site
func (s *Slack) SitesAlerting(ctx context.Context, periodID string, rollups []models.SiteRollup) error {
	msg := BuildMessage(periodID, rollups)
	if msg == nil {
		return nil
	}
	if err := s.post(ctx, s.WebhookURL, msg); err != nil {
		return fmt.Errorf("failed to post slack alert: %w", err)
	}
	return nil
}

// BuildMessage renders the alert for the alerting rollups, or nil when none alert
func BuildMessage(periodID string, rollups []models.SiteRollup) *slack.WebhookMessage {
	var lines []string
	var fields []slack.AttachmentField
	for _, r := range rollups {
		if !r.Band.Alerting() {
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s: %.1fh / %.1fh (%.0f%%, %s)", r.SiteName, r.ConsumedHours, r.BudgetedHours, r.UtilizationRatio*100, r.Band))
		fields = append(fields, slack.AttachmentField{
			Title: r.SiteName,
			Value: string(r.Band),
			Short: true,
		})
	}
	if len(lines) == 0 {
		return nil
	}

	color := "warning"
	for _, r := range rollups {
		if r.Band == models.BandExceeded {
			color = "danger"
			break
		}
	}
	return &slack.WebhookMessage{
		Text: fmt.Sprintf("Hours budget alert for period %s", periodID),
		Attachments: []slack.Attachment{{
			Color:  color,
			Text:   strings.Join(lines, "\n"),
			Fields: fields,
		}},
	}
}

package notify

import (
	"context"
	"fmt"

	goslack "github.com/slack-go/slack"
)

// SlackEgress posts alerts to a single Slack channel via a bot token. If
// the token is empty it is a noop, matching how the rest of this batch
// engine degrades gracefully when optional integrations aren't configured.
type SlackEgress struct {
	client  *goslack.Client
	channel string
}

// NewSlackEgress creates a SlackEgress. An empty botToken disables delivery.
func NewSlackEgress(botToken, channel string) *SlackEgress {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &SlackEgress{client: client, channel: channel}
}

func (s *SlackEgress) enabled() bool { return s.client != nil && s.channel != "" }

// Send posts alert as a formatted message with severity-colored attachment.
func (s *SlackEgress) Send(ctx context.Context, alert Alert) error {
	if !s.enabled() {
		return nil
	}

	attachment := goslack.Attachment{
		Color:     colorForSeverity(alert.Severity),
		Title:     alert.Title,
		Text:      alert.Message,
		Footer:    alert.Source,
		Timestamp: fmt.Sprintf("%d", alert.OccurredAt.Unix()),
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		goslack.MsgOptionAttachments(attachment),
		goslack.MsgOptionText(fmt.Sprintf("[%s] %s", alert.Severity, alert.Title), false),
	)
	if err != nil {
		return fmt.Errorf("posting alert to slack: %w", err)
	}
	return nil
}

func colorForSeverity(sev Severity) string {
	switch sev {
	case "critical":
		return "#d00000"
	case "high":
		return "#e85d04"
	case "medium":
		return "#ffba08"
	default:
		return "#6c757d"
	}
}

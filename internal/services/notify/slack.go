package notify

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/slack-go/slack"

	"seojobs/internal/task/jobs"
)

// SlackConfig selects an incoming webhook, or a bot token plus channel.
type SlackConfig struct {
	WebhookURL string
	Token      string
	Channel    string
	// APIURL overrides the Web API base URL (tests).
	APIURL string
}

// Configured reports whether either delivery mode is usable.
func (c SlackConfig) Configured() bool {
	return strings.TrimSpace(c.WebhookURL) != "" || (c.Token != "" && c.Channel != "")
}

type SlackAlerter struct {
	webhook string
	channel string
	api     *slack.Client
}

func NewSlackAlerter(cfg SlackConfig) (*SlackAlerter, error) {
	if !cfg.Configured() {
		return nil, errors.WithHint(errors.New("slack not configured"),
			"set services.slack.webhook_url, or services.slack.token and services.slack.channel")
	}
	s := &SlackAlerter{webhook: strings.TrimSpace(cfg.WebhookURL), channel: cfg.Channel}
	if cfg.Token != "" && cfg.Channel != "" {
		var opts []slack.Option
		if cfg.APIURL != "" {
			opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
		}
		s.api = slack.New(cfg.Token, opts...)
	}
	return s, nil
}

func (s *SlackAlerter) RankAlert(ctx context.Context, a jobs.RankAlert) error {
	text := FormatAlert(a)
	if s.api != nil {
		if _, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false)); err != nil {
			return errors.Wrap(err, "slack post message")
		}
		return nil
	}
	if err := slack.PostWebhookContext(ctx, s.webhook, &slack.WebhookMessage{Text: text}); err != nil {
		return errors.Wrap(err, "slack webhook")
	}
	return nil
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
)

const maxRetries = 3

// retryBase is the first backoff when a rate limit carries no Retry-After.
var retryBase = time.Second

// Slack posts events to an incoming webhook.
type Slack struct {
	url  string
	post func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error
}

// NewSlack creates a Slack notifier for an incoming webhook URL.
func NewSlack(url string) *Slack {
	return &Slack{url: url, post: slackapi.PostWebhookContext}
}

func (s *Slack) Notify(ctx context.Context, evt Event) error {
	msg := &slackapi.WebhookMessage{
		Text:        evt.Title,
		Attachments: []slackapi.Attachment{toAttachment(evt)},
	}
	err := retrySlack(ctx, func() error { return s.post(ctx, s.url, msg) })
	if err != nil {
		return fmt.Errorf("notify: slack: %w", err)
	}
	return nil
}

func toAttachment(evt Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    evt.Title,
		Text:     evt.Body,
		Color:    evt.Color(),
		Fallback: evt.Title,
	}
	for _, f := range evt.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retrySlack retries fn while Slack answers with a rate limit, honoring
// RetryAfter when Slack sends one.
func retrySlack(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * retryBase
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

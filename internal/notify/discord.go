package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// webhookExecutor is the discordgo.Session method we use, so tests can
// swap in a fake.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts events to a Discord webhook.
type Discord struct {
	id    string
	token string
	exec  webhookExecutor
}

// NewDiscord creates a Discord notifier. Webhooks need no bot token, so the
// session is created without one.
func NewDiscord(webhookID, token string) (*Discord, error) {
	if webhookID == "" || token == "" {
		return nil, errors.New("notify: discord webhook id and token are required")
	}
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &Discord{id: webhookID, token: token, exec: s}, nil
}

func (d *Discord) Notify(ctx context.Context, evt Event) error {
	params := &discordgo.WebhookParams{
		Content: evt.Title,
		Embeds:  []*discordgo.MessageEmbed{toEmbed(evt)},
	}
	err := retryDiscord(ctx, func() error {
		_, err := d.exec.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return fmt.Errorf("notify: discord: %w", err)
	}
	return nil
}

func toEmbed(evt Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       parseHexColor(evt.Color()),
	}
	for _, f := range evt.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts "#36a64f" to its integer value.
func parseHexColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

func retryDiscord(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * retryBase
		log.Printf("notify: discord rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

package notify

import (
	"context"
	"fmt"
	"net/http"
)

// discordContentLimit is the webhook content cap in characters.
const discordContentLimit = 2000

// DiscordSender posts alerts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender that posts as "TrueMarket".
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, username: "TrueMarket", client: newHTTPClient()}
}

// Send posts the title in bold followed by the message. Content beyond the
// webhook limit is cut.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"username": d.username,
		"content":  truncate(fmt.Sprintf("**%s**\n%s", title, message), discordContentLimit),
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }

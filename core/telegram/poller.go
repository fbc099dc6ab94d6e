package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/tiffinbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultPollTimeoutSeconds = 10

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a Telebot poller based on provided options.
// Only message and edited_message updates are requested from Telegram.
func BuildPoller(opts PollerOptions) tele.Poller {
	allowed := []string{"message", "edited_message"}
	if strings.ToLower(strings.TrimSpace(opts.RunMode)) == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			AllowedUpdates: allowed,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout:        time.Duration(pollTimeoutSeconds(opts.LongPollTimeoutSeconds)) * time.Second,
		AllowedUpdates: allowed,
	}
}

func pollTimeoutSeconds(v int) int {
	if v <= 0 {
		return defaultPollTimeoutSeconds
	}
	return v
}

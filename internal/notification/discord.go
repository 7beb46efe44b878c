package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mapbiomas/brazil-cerrado/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []DiscordField `json:"fields,omitempty"`
}

type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// ErrNoWebhook is returned when the webhook URL is not configured.
var ErrNoWebhook = errors.New("discord webhook url not configured")

func SendDiscordErrorNotification(errorMessage string) error {
	return Send(properties.DiscordErrorNotificationUrl(), DiscordEmbed{
		Title:       "🚨 Composite run failed",
		Description: fmt.Sprintf("An error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func SendDiscordSuccessNotification(successMessage string, fields ...DiscordField) error {
	return Send(properties.DiscordSuccessNotificationUrl(), DiscordEmbed{
		Title:       "✅ Composite run finished",
		Description: successMessage,
		Color:       colorGreen,
		Fields:      fields,
	})
}

// Send posts a single embed to a webhook.
func Send(url string, embed DiscordEmbed) error {
	if url == "" {
		return ErrNoWebhook
	}
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := httpClient.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}

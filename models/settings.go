package models

import (
	"net/url"
	"strings"
)

// Settings defines the panel settings the end-user can redefine.
// API keys are not part of it and are never stored.
type Settings struct {
	Threads            int    `json:"threads"`
	Timeout            int    `json:"timeout"`
	EnableAutoUpdates  bool   `json:"enableAutoUpdates"`
	SlackNotifications bool   `json:"slackNotifications"`
	SlackWebhookURL    string `json:"slackWebhookUrl"`
	NmapOptions        string `json:"nmapOptions"`
	CustomWordlists    bool   `json:"customWordlists"`
}

// DefaultSettings returns the settings used until the end-user saves some.
func DefaultSettings() Settings {
	return Settings{
		Threads:           100,
		Timeout:           30,
		EnableAutoUpdates: true,
		NmapOptions:       "--script-args http.useragent='' --open",
	}
}

// Validate checks the settings ranges and the webhook URL.
func (s Settings) Validate() error {
	if s.Threads < 1 || s.Threads > 500 {
		return ErrInvalidField.OnField("threads").With("threads must be between 1 and 500")
	}
	if s.Timeout < 5 || s.Timeout > 300 {
		return ErrInvalidField.OnField("timeout").With("timeout must be between 5 and 300 seconds")
	}
	if !s.SlackNotifications {
		return nil
	}

	raw := strings.TrimSpace(s.SlackWebhookURL)
	if raw == "" {
		return ErrMissingField.OnField("slackWebhookUrl").With("a webhook URL is required when Slack notifications are enabled")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ErrInvalidField.OnField("slackWebhookUrl").With("webhook URL must be an absolute https URL")
	}
	return nil
}

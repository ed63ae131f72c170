// Package setup provides the interactive first-run configuration form.
package setup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/hitwatch/internal/model"
)

// Answers holds the raw form values before they are applied to a config.
type Answers struct {
	WebhookURL     string
	Mode           string
	PollIntervalMs string
	WorkerID       string
	Cookie         string
	TelegramToken  string
	TelegramChatID string
}

// FromConfig seeds answers from an existing configuration.
func FromConfig(cfg *model.AppConfig) *Answers {
	a := &Answers{
		WebhookURL:     cfg.WebhookURL,
		Mode:           cfg.Source.Mode,
		PollIntervalMs: strconv.Itoa(cfg.PollIntervalMs),
		WorkerID:       cfg.WorkerID,
		TelegramToken:  cfg.Telegram.Token,
	}
	if cfg.Telegram.ChatID != 0 {
		a.TelegramChatID = strconv.FormatInt(cfg.Telegram.ChatID, 10)
	}
	return a
}

// NewForm builds the setup form bound to a.
func NewForm(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Webhook URL").
				Description("Endpoint that receives one POST per new assignment").
				Placeholder("https://example.com/hook").
				Value(&a.WebhookURL).
				Validate(validateURL),
			huh.NewSelect[string]().
				Title("Source mode").
				Options(
					huh.NewOption("Queue page (HTML)", model.SourceModePage),
					huh.NewOption("Queue endpoint (JSON)", model.SourceModeNetwork),
				).
				Value(&a.Mode),
			huh.NewInput().
				Title("Poll interval (ms)").
				Value(&a.PollIntervalMs).
				Validate(validatePositive("Poll interval")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Worker ID").
				Description("Used when the queue page does not expose one").
				Value(&a.WorkerID),
			huh.NewInput().
				Title("Session cookie").
				Description("Stored in the OS keyring; leave empty to keep the current one").
				EchoMode(huh.EchoModePassword).
				Value(&a.Cookie),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Optional").
				EchoMode(huh.EchoModePassword).
				Value(&a.TelegramToken),
			huh.NewInput().
				Title("Telegram chat ID").
				Description("Optional").
				Value(&a.TelegramChatID).
				Validate(validateOptionalInt),
		),
	)
}

// Apply copies the answers into cfg. The cookie is not written to the
// config; the caller stores it in the keyring.
func (a *Answers) Apply(cfg *model.AppConfig) error {
	cfg.WebhookURL = strings.TrimSpace(a.WebhookURL)
	if a.Mode != "" {
		cfg.Source.Mode = a.Mode
	}
	ms, err := strconv.Atoi(strings.TrimSpace(a.PollIntervalMs))
	if err != nil {
		return fmt.Errorf("poll interval: %w", err)
	}
	cfg.PollIntervalMs = ms
	cfg.WorkerID = strings.TrimSpace(a.WorkerID)
	cfg.Telegram.Token = strings.TrimSpace(a.TelegramToken)
	cfg.Telegram.ChatID = 0
	if s := strings.TrimSpace(a.TelegramChatID); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram chat id: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("URL must include http(s) scheme and host")
	}
	return nil
}

func validatePositive(fieldName string) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number", fieldName)
		}
		return nil
	}
}

func validateOptionalInt(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

package setup

import (
	"testing"

	"github.com/nhle/hitwatch/internal/model"
)

func TestApply(t *testing.T) {
	cfg := model.DefaultAppConfig()
	a := FromConfig(cfg)
	a.WebhookURL = " https://example.com/hook "
	a.Mode = model.SourceModeNetwork
	a.PollIntervalMs = "5000"
	a.TelegramToken = "tok"
	a.TelegramChatID = "-100200"

	if err := a.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.WebhookURL != "https://example.com/hook" || cfg.Source.Mode != model.SourceModeNetwork {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PollIntervalMs != 5000 || cfg.Telegram.ChatID != -100200 {
		t.Errorf("interval %d chat %d", cfg.PollIntervalMs, cfg.Telegram.ChatID)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("applied config should validate: %v", err)
	}
}

func TestApply_BadInterval(t *testing.T) {
	cfg := model.DefaultAppConfig()
	a := FromConfig(cfg)
	a.PollIntervalMs = "soon"
	if err := a.Apply(cfg); err == nil {
		t.Error("expected error for non-numeric interval")
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) error
		in   string
		ok   bool
	}{
		{"url ok", validateURL, "http://localhost:8080/x", true},
		{"url empty", validateURL, "", false},
		{"url no scheme", validateURL, "example.com/hook", false},
		{"url ftp", validateURL, "ftp://example.com", false},
		{"positive", validatePositive("x"), "3000", true},
		{"zero", validatePositive("x"), "0", false},
		{"optional empty", validateOptionalInt, "", true},
		{"optional bad", validateOptionalInt, "abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(tt.in); (err == nil) != tt.ok {
				t.Errorf("%s(%q) err = %v", tt.name, tt.in, err)
			}
		})
	}
}

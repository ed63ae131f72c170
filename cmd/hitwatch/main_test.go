package main

import (
	"strings"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/hitwatch/internal/credential"
)

func TestCookieFlags(t *testing.T) {
	vault := credential.NewVault(keyring.NewArrayKeyring(nil))

	if err := storeCookie(vault, strings.NewReader("  session-id=abc\n")); err != nil {
		t.Fatalf("storeCookie: %v", err)
	}
	got, found, err := vault.Get(credential.SessionCookieKey)
	if err != nil || !found || got != "session-id=abc" {
		t.Fatalf("stored cookie = %q %v %v", got, found, err)
	}

	if err := clearCookie(vault); err != nil {
		t.Fatalf("clearCookie: %v", err)
	}
	if _, found, _ := vault.Get(credential.SessionCookieKey); found {
		t.Error("cookie should be gone after clearCookie")
	}
	if err := clearCookie(vault); err != nil {
		t.Errorf("clearing an absent cookie should succeed: %v", err)
	}
}

func TestStoreCookie_Empty(t *testing.T) {
	vault := credential.NewVault(keyring.NewArrayKeyring(nil))
	if err := storeCookie(vault, strings.NewReader("\n")); err == nil {
		t.Error("expected error for empty stdin")
	}
}

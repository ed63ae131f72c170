package credential

import (
	"testing"

	"github.com/99designs/keyring"
)

func TestVault_RoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	if _, found, err := v.Get(SessionCookieKey); err != nil || found {
		t.Fatalf("Get on empty ring = found %v, err %v", found, err)
	}

	if err := v.Set(SessionCookieKey, "session-id=abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, found, err := v.Get(SessionCookieKey)
	if err != nil || !found || got != "session-id=abc" {
		t.Fatalf("Get = %q %v %v", got, found, err)
	}

	if err := v.Delete(SessionCookieKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := v.Delete(SessionCookieKey); err != nil {
		t.Fatalf("Delete missing key: %v", err)
	}
}

func TestVault_SessionCookie(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring([]keyring.Item{
		{Key: SessionCookieKey, Data: []byte(" from-keyring \n")},
	}))

	if got, _ := v.SessionCookie("from-config"); got != "from-config" {
		t.Errorf("configured cookie should win, got %q", got)
	}
	if got, _ := v.SessionCookie("  "); got != "from-keyring" {
		t.Errorf("keyring fallback = %q", got)
	}
}

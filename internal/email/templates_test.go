package email

import (
	"strings"
	"testing"
)

func TestRender_AllLifecycleTemplates(t *testing.T) {
	t.Parallel()
	vars := Vars{Username: "ana", Link: "http://localhost/confirm?token=abc", TTL: "1h0m0s"}

	for _, purpose := range []string{"email_verification", "password_reset", "password_change", "email_change"} {
		msg, err := Render(purpose, vars)
		if err != nil {
			t.Fatalf("Render(%s): %v", purpose, err)
		}
		if msg.Subject == "" {
			t.Fatalf("%s: subject vacío", purpose)
		}
		for _, body := range []string{msg.HTMLBody, msg.TextBody} {
			if !strings.Contains(body, "ana") || !strings.Contains(body, vars.Link) {
				t.Fatalf("%s: el body no interpola las variables", purpose)
			}
		}
	}
}

func TestRender_UnknownPurpose(t *testing.T) {
	t.Parallel()
	if _, err := Render("mfa_enroll", Vars{}); err == nil {
		t.Fatalf("propósito desconocido debe fallar")
	}
}

func TestBuildLink(t *testing.T) {
	t.Parallel()
	got := BuildLink("http://localhost:8080/", "/v1/auth/verify-email", "tok+con/raros", 42)
	if !strings.HasPrefix(got, "http://localhost:8080/v1/auth/verify-email?") {
		t.Fatalf("link: %q", got)
	}
	// El token viaja URL-escapeado y el uid como query param.
	if !strings.Contains(got, "uid=42") || strings.Contains(got, "tok+con/raros") {
		t.Fatalf("query mal armada: %q", got)
	}
}

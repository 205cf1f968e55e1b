package purposetoken

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService() (*Service, *time.Time) {
	s := New(Config{
		DefaultSecret: []byte("default-secret-para-tests"),
		Secrets: map[Purpose][]byte{
			PurposePasswordReset: []byte("secreto-propio-de-reset"),
		},
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestIssueVerify_RoundTripPerPurpose(t *testing.T) {
	t.Parallel()
	s, _ := newTestService()

	for _, p := range Purposes {
		tok, err := s.Issue(p, Payload{UserID: 42, Email: "ana@example.com"})
		if err != nil {
			t.Fatalf("Issue(%s): %v", p, err)
		}
		got, err := s.Verify(tok, p)
		if err != nil {
			t.Fatalf("Verify(%s): %v", p, err)
		}
		if got.UserID != 42 || got.Email != "ana@example.com" {
			t.Fatalf("payload %s: %+v", p, got)
		}
	}
}

func TestVerify_CrossPurposeRejected(t *testing.T) {
	t.Parallel()
	s, _ := newTestService()

	// Ambos propósitos usan el secreto default: solo el claim "purpose" separa.
	tok, err := s.Issue(PurposeEmailVerification, Payload{UserID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Verify(tok, PurposeEmailChange); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("verificación cruzada (mismo secreto): esperaba ErrBadSignature, got %v", err)
	}

	// Secretos distintos: la firma ya no cierra.
	if _, err := s.Verify(tok, PurposePasswordReset); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("verificación cruzada (otro secreto): esperaba ErrBadSignature, got %v", err)
	}
}

func TestVerify_ExpiryPerPurpose(t *testing.T) {
	t.Parallel()
	s, now := newTestService()

	reset, err := s.Issue(PurposePasswordReset, Payload{UserID: 2})
	if err != nil {
		t.Fatalf("Issue reset: %v", err)
	}
	verify, err := s.Issue(PurposeEmailVerification, Payload{UserID: 2, Email: "b@example.com"})
	if err != nil {
		t.Fatalf("Issue verification: %v", err)
	}

	// A los 61 minutos el reset (1h) venció; la verificación (24h) sigue viva.
	*now = now.Add(61 * time.Minute)
	if _, err := s.Verify(reset, PurposePasswordReset); !errors.Is(err, ErrExpired) {
		t.Fatalf("reset a los 61m: esperaba ErrExpired, got %v", err)
	}
	if _, err := s.Verify(verify, PurposeEmailVerification); err != nil {
		t.Fatalf("verification a los 61m debería seguir válido: %v", err)
	}

	// Pasadas las 24h ya no.
	*now = now.Add(24 * time.Hour)
	if _, err := s.Verify(verify, PurposeEmailVerification); !errors.Is(err, ErrExpired) {
		t.Fatalf("verification vencido: esperaba ErrExpired, got %v", err)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()
	s, _ := newTestService()

	tok, err := s.Issue(PurposeEmailVerification, Payload{UserID: 3})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("formato JWT inesperado")
	}
	// Pisar la firma entera invalida el token.
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := s.Verify(tampered, PurposeEmailVerification); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("esperaba ErrBadSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	s, _ := newTestService()

	for _, tok := range []string{"", "no-es-un-jwt", "a.b"} {
		if _, err := s.Verify(tok, PurposePasswordChange); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Verify(%q): esperaba ErrMalformed, got %v", tok, err)
		}
	}
}

func TestIssueVerify_UnknownPurpose(t *testing.T) {
	t.Parallel()
	s, _ := newTestService()

	if _, err := s.Issue(Purpose("mfa_enroll"), Payload{UserID: 1}); !errors.Is(err, ErrUnknown) {
		t.Fatalf("Issue: esperaba ErrUnknown, got %v", err)
	}
	if _, err := s.Verify("x.y.z", Purpose("mfa_enroll")); !errors.Is(err, ErrUnknown) {
		t.Fatalf("Verify: esperaba ErrUnknown, got %v", err)
	}
}

func TestPurposeTTL(t *testing.T) {
	t.Parallel()
	if got := PurposeEmailVerification.TTL(); got != 24*time.Hour {
		t.Fatalf("email_verification TTL = %v", got)
	}
	for _, p := range []Purpose{PurposePasswordReset, PurposePasswordChange, PurposeEmailChange} {
		if got := p.TTL(); got != time.Hour {
			t.Fatalf("%s TTL = %v", p, got)
		}
	}
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/tokensmith/internal/store"
)

func TestTokenFields_SetOverwritesPrevious(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	if err := s.SetTokenFields(ctx, 1, "password_reset", "hash-1", exp); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.SetTokenFields(ctx, 1, "password_reset", "hash-2", exp); err != nil {
		t.Fatalf("Set 2: %v", err)
	}

	tf, ok, err := s.GetTokenFields(ctx, 1, "password_reset")
	if err != nil || !ok {
		t.Fatalf("Get ok=%v err=%v", ok, err)
	}
	if tf.Token != "hash-2" {
		t.Fatalf("Set debe pisar el record anterior, token=%q", tf.Token)
	}

	// Otro propósito del mismo usuario no se toca.
	if _, ok, _ := s.GetTokenFields(ctx, 1, "email_verification"); ok {
		t.Fatalf("propósitos distintos no comparten record")
	}
	// El hash superseded ya no consume nada.
	if ok, _ := s.ConsumeTokenFields(ctx, 1, "password_reset", "hash-1"); ok {
		t.Fatalf("un hash pisado no debe consumir")
	}
}

func TestTokenFields_ConsumeIsConditional(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	if err := s.SetTokenFields(ctx, 1, "email_change", "hash-vigente", exp); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Hash que no coincide: el record queda intacto.
	if ok, err := s.ConsumeTokenFields(ctx, 1, "email_change", "hash-viejo"); ok || err != nil {
		t.Fatalf("hash ajeno: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.GetTokenFields(ctx, 1, "email_change"); !ok {
		t.Fatalf("un consume fallido no debe borrar el record")
	}

	// Hash correcto: consume y borra en la misma operación.
	if ok, err := s.ConsumeTokenFields(ctx, 1, "email_change", "hash-vigente"); !ok || err != nil {
		t.Fatalf("consume: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.GetTokenFields(ctx, 1, "email_change"); ok {
		t.Fatalf("el record debe desaparecer tras el consume")
	}
	// Segundo consume del mismo hash: ya no hay nada.
	if ok, _ := s.ConsumeTokenFields(ctx, 1, "email_change", "hash-vigente"); ok {
		t.Fatalf("no hay segundo consume")
	}
}

func TestAPIKey_LifecycleAndTouch(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	created := time.Now().UTC()

	if err := s.SetAPIKey(ctx, 1, "primary", "k1", true, created); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	rec, ok, _ := s.GetAPIKey(ctx, 1, "primary")
	if !ok || rec.Key != "k1" || !rec.Active || rec.LastUsedAt != nil {
		t.Fatalf("rec = %+v ok=%v", rec, ok)
	}

	if err := s.TouchLastUsed(ctx, 1, "primary"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	rec, _, _ = s.GetAPIKey(ctx, 1, "primary")
	if rec.LastUsedAt == nil {
		t.Fatalf("Touch debe fijar LastUsedAt")
	}

	// Rotar pisa la key y resetea LastUsedAt.
	if err := s.SetAPIKey(ctx, 1, "primary", "k2", true, created); err != nil {
		t.Fatalf("SetAPIKey 2: %v", err)
	}
	rec, _, _ = s.GetAPIKey(ctx, 1, "primary")
	if rec.Key != "k2" || rec.LastUsedAt != nil {
		t.Fatalf("la key nueva arranca sin uso: %+v", rec)
	}

	if err := s.SetAPIKeyActive(ctx, 1, "primary", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	rec, _, _ = s.GetAPIKey(ctx, 1, "primary")
	if rec.Active {
		t.Fatalf("la key debe quedar inactiva")
	}

	if err := s.ClearAPIKey(ctx, 1, "primary"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.GetAPIKey(ctx, 1, "primary"); ok {
		t.Fatalf("el slot debe quedar vacío")
	}
	if err := s.TouchLastUsed(ctx, 1, "primary"); err != store.ErrNotFound {
		t.Fatalf("Touch sobre slot vacío: esperaba ErrNotFound, got %v", err)
	}
}

func TestUsers_LookupAndMutations(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	s.PutUser(store.User{ID: 10, Username: "ana", Email: "Ana@Example.com"})

	id, ok, _ := s.LookupUserIDByEmail(ctx, "ana@example.com")
	if !ok || id != 10 {
		t.Fatalf("lookup case-insensitive: ok=%v id=%d", ok, id)
	}
	if _, ok, _ := s.LookupUserIDByEmail(ctx, "nadie@example.com"); ok {
		t.Fatalf("email desconocido no debe resolver")
	}

	if err := s.SetEmailVerified(ctx, 10); err != nil {
		t.Fatalf("SetEmailVerified: %v", err)
	}
	u, _, _ := s.GetUserByID(ctx, 10)
	if !u.EmailVerified {
		t.Fatalf("flag verificado no quedó")
	}

	if err := s.UpdateEmail(ctx, 10, "Nueva@Example.com"); err != nil {
		t.Fatalf("UpdateEmail: %v", err)
	}
	u, _, _ = s.GetUserByID(ctx, 10)
	if u.Email != "nueva@example.com" {
		t.Fatalf("el email se normaliza a minúsculas: %q", u.Email)
	}
	if u.EmailVerified {
		t.Fatalf("cambiar el email des-verifica")
	}

	if err := s.UpdatePasswordHash(ctx, 99, "x"); err != store.ErrNotFound {
		t.Fatalf("update de usuario inexistente: esperaba ErrNotFound, got %v", err)
	}
}

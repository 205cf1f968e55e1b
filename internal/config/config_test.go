package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
auth:
  session:
    secret: "secreto-sesion"
  tokens:
    secret: "secreto-tokens"
`

func TestLoad_DefaultsApplied(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("addr default: %q", c.Server.Addr)
	}
	if c.Storage.Driver != "memory" {
		t.Fatalf("driver default: %q", c.Storage.Driver)
	}
	if c.Auth.Session.CookieName != "ts_session" {
		t.Fatalf("cookie default: %q", c.Auth.Session.CookieName)
	}
	if c.SessionTTL() != 24*time.Hour {
		t.Fatalf("session ttl default: %v", c.SessionTTL())
	}
	if c.CSRFTTL() != time.Hour {
		t.Fatalf("csrf ttl default: %v", c.CSRFTTL())
	}
}

func TestLoad_MissingSecretsRejected(t *testing.T) {
	if _, err := Load(writeConfig(t, `server: {addr: ":9090"}`)); err == nil {
		t.Fatalf("config sin secretos debe fallar")
	}
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	yaml := minimalYAML + `
storage:
  driver: postgres
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatalf("driver postgres sin DSN debe fallar")
	}
}

func TestLoad_UnknownDriverRejected(t *testing.T) {
	yaml := minimalYAML + `
storage:
  driver: cassandra
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatalf("driver desconocido debe fallar")
	}
}

func TestLoad_BadDurationRejected(t *testing.T) {
	yaml := `
auth:
  session:
    secret: "s"
    ttl: "veinticuatro horas"
  tokens:
    secret: "t"
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatalf("duración inválida debe fallar")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("SESSION_COOKIE_NAME", "sid")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("RATE_LIMIT", "9")

	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":9999" {
		t.Fatalf("SERVER_ADDR no pisó el YAML: %q", c.Server.Addr)
	}
	if c.Auth.Session.CookieName != "sid" {
		t.Fatalf("SESSION_COOKIE_NAME no pisó el default: %q", c.Auth.Session.CookieName)
	}
	if !c.Rate.Enabled || c.Rate.Limit != 9 {
		t.Fatalf("rate overrides: enabled=%v limit=%d", c.Rate.Enabled, c.Rate.Limit)
	}
}

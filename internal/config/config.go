package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Auth struct {
		Session struct {
			Secret     string `yaml:"secret"`
			CookieName string `yaml:"cookie_name"`
			TTL        string `yaml:"ttl"`
		} `yaml:"session"`
		Tokens struct {
			// Secreto default para firmar tokens de propósito; se puede
			// pisar por propósito (email_verification, password_reset, ...).
			Secret     string            `yaml:"secret"`
			PerPurpose map[string]string `yaml:"per_purpose"`
		} `yaml:"tokens"`
		CSRF struct {
			TTL           string `yaml:"ttl"`
			SweepInterval string `yaml:"sweep_interval"`
		} `yaml:"csrf"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool   `yaml:"enabled"`
		Kind    string `yaml:"kind"` // memory | redis
		Limit   int    `yaml:"limit"`
		Window  string `yaml:"window"`
		Redis   struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Email struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"email"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "ts_session"
	}
	if c.Auth.Session.TTL == "" {
		c.Auth.Session.TTL = "24h"
	}
	if c.Auth.CSRF.TTL == "" {
		c.Auth.CSRF.TTL = "1h"
	}
	if c.Auth.CSRF.SweepInterval == "" {
		c.Auth.CSRF.SweepInterval = "5m"
	}
	if c.Rate.Kind == "" {
		c.Rate.Kind = "memory"
	}
	if c.Rate.Limit == 0 {
		c.Rate.Limit = 5
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "10m"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Email.BaseURL == "" {
		c.Email.BaseURL = "http://localhost:8080"
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate chequea lo que no puede esperar al primer request.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Session.Secret) == "" {
		return errors.New("config: auth.session.secret es obligatorio")
	}
	if strings.TrimSpace(c.Auth.Tokens.Secret) == "" {
		return errors.New("config: auth.tokens.secret es obligatorio")
	}
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: storage.driver desconocido %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: storage.dsn es obligatorio con driver postgres")
	}
	// validate string durations
	for _, s := range []string{
		c.Auth.Session.TTL, c.Auth.CSRF.TTL, c.Auth.CSRF.SweepInterval, c.Rate.Window,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return err
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return err
		}
	}
	return nil
}

// ---- Helpers de duración (post-validación, no pueden fallar) ----

func (c *Config) SessionTTL() time.Duration { return mustDur(c.Auth.Session.TTL, 24*time.Hour) }
func (c *Config) CSRFTTL() time.Duration    { return mustDur(c.Auth.CSRF.TTL, time.Hour) }
func (c *Config) CSRFSweep() time.Duration  { return mustDur(c.Auth.CSRF.SweepInterval, 5*time.Minute) }
func (c *Config) RateWindow() time.Duration { return mustDur(c.Rate.Window, 10*time.Minute) }

func mustDur(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// AUTH
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Auth.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_COOKIE_NAME"); ok {
		c.Auth.Session.CookieName = v
	}
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Auth.Session.TTL = v
	}
	if v, ok := getEnvStr("TOKEN_SECRET"); ok {
		c.Auth.Tokens.Secret = v
	}
	if v, ok := getEnvStr("CSRF_TTL"); ok {
		c.Auth.CSRF.TTL = v
	}
	if v, ok := getEnvStr("CSRF_SWEEP_INTERVAL"); ok {
		c.Auth.CSRF.SweepInterval = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_KIND"); ok {
		c.Rate.Kind = v
	}
	if v, ok := getEnvInt("RATE_LIMIT"); ok {
		c.Rate.Limit = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Rate.Redis.Prefix = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v) // auto|starttls|ssl|none
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// EMAIL
	if v, ok := getEnvStr("EMAIL_BASE_URL"); ok {
		c.Email.BaseURL = v
	}
}

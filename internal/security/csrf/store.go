package csrf

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/tokensmith/internal/metrics"
	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
	tokens "github.com/dropDatabas3/tokensmith/internal/security/token"
)

// Claves de sesión especiales para el encadenado de fallback.
// Un token acuñado antes de autenticar se guarda bajo "anonymous" y se
// espeja bajo "global" para que siga valiendo cuando el cliente ya tiene
// identidad. Ambos buckets pre-auth son de un solo uso: la primera validación
// con sesión real los consume y promueve el token a esa sesión.
const (
	SessionAnonymous = "anonymous"
	SessionGlobal    = "global"
)

// DefaultTTL es la ventana de frescura de un token CSRF.
const DefaultTTL = time.Hour

type entry struct {
	token     string
	createdAt time.Time
}

// Store emite y valida tokens anti-forgery por sesión.
// Mapa compartido entre workers: todo acceso va con el mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TokenFor devuelve el token vigente de la sesión, o acuña uno nuevo si no
// hay o el que había expiró. Mint bajo "anonymous" espeja bajo "global".
func (s *Store) TokenFor(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[sessionID]; ok && now.Sub(e.createdAt) < s.ttl {
		return e.token, nil
	}

	tok, err := tokens.GenerateOpaqueToken(tokens.MinEntropyBytes)
	if err != nil {
		return "", err
	}
	e := entry{token: tok, createdAt: now}
	s.entries[sessionID] = e
	if sessionID == SessionAnonymous {
		s.entries[SessionGlobal] = e
	}
	return tok, nil
}

// Validate chequea presented contra la cadena sessionID → anonymous → global,
// en tiempo constante y dentro de la ventana de frescura.
// Un match vía los buckets pre-auth consume las entradas espejadas y copia el
// token a la sesión presentada, cerrando el bypass durable cross-session.
func (s *Store) Validate(sessionID, presented string) bool {
	if presented == "" {
		metrics.CSRFValidations.WithLabelValues("mismatch").Inc()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, key := range []string{sessionID, SessionAnonymous, SessionGlobal} {
		e, ok := s.entries[key]
		if !ok || now.Sub(e.createdAt) >= s.ttl {
			continue
		}
		if !tokens.ConstantTimeEqual(e.token, presented) {
			continue
		}
		// Match vía bucket pre-auth con sesión real: consumir ambas entradas
		// espejadas y promover el token a la sesión presentada.
		if (key == SessionAnonymous || key == SessionGlobal) &&
			sessionID != SessionAnonymous && sessionID != SessionGlobal {
			delete(s.entries, SessionAnonymous)
			delete(s.entries, SessionGlobal)
			s.entries[sessionID] = entry{token: e.token, createdAt: e.createdAt}
		}
		metrics.CSRFValidations.WithLabelValues("ok").Inc()
		return true
	}

	metrics.CSRFValidations.WithLabelValues("mismatch").Inc()
	return false
}

// Sweep borra entradas fuera de ventana y devuelve cuántas sacó.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.createdAt) >= s.ttl {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len devuelve la cantidad de entradas vivas (para tests y métricas).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunSweeper corre Sweep cada interval hasta que el contexto se cancele.
// Corre en su propia goroutine; nunca bloquea a los workers de requests.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	log := logger.Named("csrf")
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				log.Debug("swept expired csrf entries", logger.Int("removed", n))
			}
		}
	}
}

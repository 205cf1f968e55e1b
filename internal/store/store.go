package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound lo retornan las implementaciones cuando el registro pedido no existe
// y la operación no tiene una variante "ok bool".
var ErrNotFound = errors.New("store: not found")

// User es la vista mínima del usuario que necesita este core.
// El resto del perfil es dueño del sistema externo.
type User struct {
	ID            int64
	Username      string
	Email         string
	PasswordHash  string
	EmailVerified bool
}

// TokenFields es el "side record": el único token pendiente por (usuario, propósito).
// Token guarda el hash SHA-256 del token emitido, nunca el valor en claro.
type TokenFields struct {
	Token     string
	ExpiresAt time.Time
}

// APIKeyRecord es la fila de API key de un slot.
type APIKeyRecord struct {
	Key        string
	Active     bool
	CreatedAt  time.Time
	LastUsedAt *time.Time // NULL hasta el primer uso
}

// Store es el contrato contra el user store persistente.
// Todas las llamadas son I/O bloqueante que puede fallar; este core no reintenta.
type Store interface {
	// Side records de purpose tokens (un registro por usuario por propósito;
	// Set sobreescribe el anterior).
	GetTokenFields(ctx context.Context, userID int64, purpose string) (TokenFields, bool, error)
	SetTokenFields(ctx context.Context, userID int64, purpose, token string, expiresAt time.Time) error
	// ConsumeTokenFields borra el side record solo si su hash coincide con
	// tokenHash, en una única operación. Devuelve consumed=false si el record
	// no existe o el hash no coincide: otro confirm ya lo consumió, o fue
	// superseded por una re-emisión. Dos confirms concurrentes con el mismo
	// token ven exactamente un consumed=true.
	ConsumeTokenFields(ctx context.Context, userID int64, purpose, tokenHash string) (consumed bool, err error)

	// API keys por slot (primary/secondary).
	GetAPIKey(ctx context.Context, userID int64, slot string) (APIKeyRecord, bool, error)
	SetAPIKey(ctx context.Context, userID int64, slot, value string, active bool, createdAt time.Time) error
	SetAPIKeyActive(ctx context.Context, userID int64, slot string, active bool) error
	ClearAPIKey(ctx context.Context, userID int64, slot string) error
	TouchLastUsed(ctx context.Context, userID int64, slot string) error

	// Lecturas/escrituras de usuario que usan los flujos de lifecycle.
	GetUserByID(ctx context.Context, userID int64) (User, bool, error)
	LookupUserIDByEmail(ctx context.Context, email string) (int64, bool, error)
	SetEmailVerified(ctx context.Context, userID int64) error
	UpdatePasswordHash(ctx context.Context, userID int64, phc string) error
	UpdateEmail(ctx context.Context, userID int64, email string) error
}

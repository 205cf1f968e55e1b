package apikey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/tokensmith/internal/metrics"
	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
	tokens "github.com/dropDatabas3/tokensmith/internal/security/token"
	"github.com/dropDatabas3/tokensmith/internal/store"
)

// Slot identifica uno de los dos puntos de rotación de API key por usuario.
type Slot string

const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
)

// Valid reporta si el slot es uno de los soportados.
func (s Slot) Valid() bool {
	return s == SlotPrimary || s == SlotSecondary
}

// CooldownWindow es el mínimo entre rotaciones sucesivas del mismo (usuario, slot).
const CooldownWindow = 5 * time.Minute

// keyBytes da 160 bits de entropía (hex → 40 chars ASCII).
const keyBytes = 20

// RateLimitedError indica que el slot está en cooldown. Recuperable: el caller espera.
type RateLimitedError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitedError) Error() string { return e.Message }

// IsRateLimited reporta si err es un rechazo por cooldown.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// ErrUnknownSlot se retorna ante un slot fuera de {primary, secondary}.
var ErrUnknownSlot = errors.New("apikey: unknown slot")

// CooldownStatus es el resultado de CheckCooldown.
type CooldownStatus struct {
	OnCooldown bool
	RetryAfter time.Duration
}

// Manager genera, rota y borra API keys por (usuario, slot), con un cooldown
// de rotación por slot mantenido en memoria de proceso.
//
// El mapa de cooldowns vive en un go-cache con TTL = ventana, así el janitor
// poda entradas viejas solo; el mutex del manager hace atómica la secuencia
// check-then-record frente a rotaciones concurrentes del mismo par.
type Manager struct {
	Store store.Store

	mu        sync.Mutex
	cooldowns *gocache.Cache
	now       func() time.Time
}

// New crea un Manager con la ventana de cooldown estándar.
func New(st store.Store) *Manager {
	return &Manager{
		Store:     st,
		cooldowns: gocache.New(CooldownWindow, time.Minute),
		now:       time.Now,
	}
}

func cooldownKey(userID int64, slot Slot) string {
	return strconv.FormatInt(userID, 10) + "|" + string(slot)
}

// GenerateKey devuelve una key nueva: hex de 20 bytes crypto/rand.
func (m *Manager) GenerateKey() (string, error) {
	return tokens.GenerateHexToken(keyBytes)
}

// CheckCooldown consulta si el (usuario, slot) puede rotar ya.
// Solo lectura; Rotate hace el check bajo lock.
func (m *Manager) CheckCooldown(userID int64, slot Slot) CooldownStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkLocked(userID, slot)
}

func (m *Manager) checkLocked(userID int64, slot Slot) CooldownStatus {
	v, ok := m.cooldowns.Get(cooldownKey(userID, slot))
	if !ok {
		return CooldownStatus{}
	}
	last, ok := v.(time.Time)
	if !ok {
		return CooldownStatus{}
	}
	elapsed := m.now().Sub(last)
	if elapsed >= CooldownWindow {
		return CooldownStatus{}
	}
	return CooldownStatus{OnCooldown: true, RetryAfter: CooldownWindow - elapsed}
}

// RecordRegeneration estampa "ahora" como última rotación del par.
// Se llama exactamente una vez por rotación exitosa.
func (m *Manager) RecordRegeneration(userID int64, slot Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(userID, slot)
}

func (m *Manager) recordLocked(userID int64, slot Slot) {
	m.cooldowns.Set(cooldownKey(userID, slot), m.now(), CooldownWindow)
}

// Rotate genera una key nueva y la persiste activa en el slot, desactivando
// implícitamente la anterior (el slot tiene a lo sumo una key).
//
// La secuencia check + stamp ocurre bajo el lock del manager: de dos Rotate
// concurrentes para el mismo par, exactamente uno pasa la ventana. Si la
// persistencia falla después de reservar el turno, el stamp se revierte para
// no dejar el slot bloqueado sin key nueva.
func (m *Manager) Rotate(ctx context.Context, userID int64, slot Slot) (string, error) {
	if !slot.Valid() {
		return "", ErrUnknownSlot
	}

	m.mu.Lock()
	st := m.checkLocked(userID, slot)
	if st.OnCooldown {
		m.mu.Unlock()
		metrics.KeyRotations.WithLabelValues(string(slot), "cooldown").Inc()
		return "", &RateLimitedError{
			RetryAfter: st.RetryAfter,
			Message:    "key rotation available in " + FormatWait(st.RetryAfter),
		}
	}
	m.recordLocked(userID, slot)
	m.mu.Unlock()

	log := logger.From(ctx).With(
		logger.Component("apikey"),
		logger.UserID(userID),
		logger.Slot(string(slot)),
	)

	key, err := m.GenerateKey()
	if err != nil {
		m.clearStamp(userID, slot)
		log.Error("keygen failed", logger.Err(err))
		return "", err
	}

	if err := m.Store.SetAPIKey(ctx, userID, string(slot), key, true, m.now().UTC()); err != nil {
		m.clearStamp(userID, slot)
		metrics.KeyRotations.WithLabelValues(string(slot), "error").Inc()
		log.Error("persist rotated key failed", logger.Err(err))
		return "", err
	}

	metrics.KeyRotations.WithLabelValues(string(slot), "ok").Inc()
	log.Info("api key rotated")
	return key, nil
}

func (m *Manager) clearStamp(userID int64, slot Slot) {
	m.mu.Lock()
	m.cooldowns.Delete(cooldownKey(userID, slot))
	m.mu.Unlock()
}

// Deactivate apaga el flag active del slot sin tocar el valor. Idempotente.
func (m *Manager) Deactivate(ctx context.Context, userID int64, slot Slot) error {
	if !slot.Valid() {
		return ErrUnknownSlot
	}
	return m.Store.SetAPIKeyActive(ctx, userID, string(slot), false)
}

// Delete borra valor y timestamps del slot. Idempotente: borrar una key
// ausente no es error.
func (m *Manager) Delete(ctx context.Context, userID int64, slot Slot) error {
	if !slot.Valid() {
		return ErrUnknownSlot
	}
	return m.Store.ClearAPIKey(ctx, userID, string(slot))
}

// FormatWait arma el mensaje de espera en minutos/segundos ("4m 35s").
func FormatWait(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Seconds() + 0.999) // redondeo hacia arriba
	mins := secs / 60
	secs = secs % 60
	if mins > 0 {
		return fmt.Sprintf("%dm %02ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

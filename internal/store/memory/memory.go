package memory

import (
	"context"
	"crypto/subtle"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/tokensmith/internal/store"
)

// Store es una implementación en memoria de store.Store.
// Usada en tests y en modo dev (sin Postgres). Thread-safe.
type Store struct {
	mu      sync.RWMutex
	users   map[int64]store.User
	tokens  map[string]store.TokenFields  // key: "<userID>|<purpose>"
	apiKeys map[string]store.APIKeyRecord // key: "<userID>|<slot>"
}

func New() *Store {
	return &Store{
		users:   make(map[int64]store.User),
		tokens:  make(map[string]store.TokenFields),
		apiKeys: make(map[string]store.APIKeyRecord),
	}
}

var _ store.Store = (*Store)(nil)

func key(userID int64, sub string) string {
	return strconv.FormatInt(userID, 10) + "|" + sub
}

// PutUser siembra un usuario (solo tests / modo dev).
func (s *Store) PutUser(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) GetTokenFields(_ context.Context, userID int64, purpose string) (store.TokenFields, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tf, ok := s.tokens[key(userID, purpose)]
	return tf, ok, nil
}

func (s *Store) SetTokenFields(_ context.Context, userID int64, purpose, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key(userID, purpose)] = store.TokenFields{Token: token, ExpiresAt: expiresAt}
	return nil
}

// ConsumeTokenFields compara y borra bajo el mismo lock: el primer confirm
// que llega se lleva el record, el resto ve consumed=false.
func (s *Store) ConsumeTokenFields(_ context.Context, userID int64, purpose, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, purpose)
	tf, ok := s.tokens[k]
	if !ok || subtle.ConstantTimeCompare([]byte(tf.Token), []byte(tokenHash)) != 1 {
		return false, nil
	}
	delete(s.tokens, k)
	return true, nil
}

func (s *Store) GetAPIKey(_ context.Context, userID int64, slot string) (store.APIKeyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.apiKeys[key(userID, slot)]
	return rec, ok, nil
}

func (s *Store) SetAPIKey(_ context.Context, userID int64, slot, value string, active bool, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// key nueva: last_used_at arranca en NULL
	s.apiKeys[key(userID, slot)] = store.APIKeyRecord{Key: value, Active: active, CreatedAt: createdAt}
	return nil
}

func (s *Store) SetAPIKeyActive(_ context.Context, userID int64, slot string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, slot)
	if rec, ok := s.apiKeys[k]; ok {
		rec.Active = active
		s.apiKeys[k] = rec
	}
	return nil
}

func (s *Store) ClearAPIKey(_ context.Context, userID int64, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apiKeys, key(userID, slot))
	return nil
}

func (s *Store) TouchLastUsed(_ context.Context, userID int64, slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, slot)
	rec, ok := s.apiKeys[k]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	// monotónico no-decreciente
	if rec.LastUsedAt == nil || now.After(*rec.LastUsedAt) {
		rec.LastUsedAt = &now
		s.apiKeys[k] = rec
	}
	return nil
}

func (s *Store) GetUserByID(_ context.Context, userID int64) (store.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	return u, ok, nil
}

func (s *Store) LookupUserIDByEmail(_ context.Context, email string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) SetEmailVerified(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.EmailVerified = true
	s.users[userID] = u
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID int64, phc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = phc
	s.users[userID] = u
	return nil
}

func (s *Store) UpdateEmail(_ context.Context, userID int64, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Email = strings.ToLower(email)
	u.EmailVerified = false
	s.users[userID] = u
	return nil
}

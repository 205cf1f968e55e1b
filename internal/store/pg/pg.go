package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
	"github.com/dropDatabas3/tokensmith/internal/store"
)

// DBOps es el subconjunto de pgxpool.Pool que usa este store.
// Permite inyectar un pool real o un mock en tests.
type DBOps interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implementa store.Store sobre Postgres (pgx).
//
// Esquema esperado:
//
//	purpose_token(user_id BIGINT, purpose TEXT, token_hash TEXT, expires_at TIMESTAMPTZ,
//	              PRIMARY KEY (user_id, purpose))
//	api_key(user_id BIGINT, slot TEXT, key_value TEXT, active BOOL,
//	        created_at TIMESTAMPTZ, last_used_at TIMESTAMPTZ NULL,
//	        PRIMARY KEY (user_id, slot))
//	app_user(id BIGINT PK, username TEXT, email TEXT, password_hash TEXT, email_verified BOOL)
type Store struct {
	DB DBOps
}

func New(pool *pgxpool.Pool) *Store { return &Store{DB: pool} }

var _ store.Store = (*Store)(nil)

// --- Side records de purpose tokens ---

func (s *Store) GetTokenFields(ctx context.Context, userID int64, purpose string) (store.TokenFields, bool, error) {
	var tf store.TokenFields
	err := s.DB.QueryRow(ctx, `
		SELECT token_hash, expires_at
		  FROM purpose_token
		 WHERE user_id = $1 AND purpose = $2`,
		userID, purpose,
	).Scan(&tf.Token, &tf.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.TokenFields{}, false, nil
		}
		return store.TokenFields{}, false, err
	}
	return tf, true, nil
}

// SetTokenFields sobreescribe el token pendiente (un registro por usuario/propósito).
func (s *Store) SetTokenFields(ctx context.Context, userID int64, purpose, token string, expiresAt time.Time) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO purpose_token (user_id, purpose, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, purpose)
		DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at`,
		userID, purpose, token, expiresAt,
	)
	if err != nil {
		logger.From(ctx).Error("db set token fields failed",
			logger.UserID(userID), logger.Purpose(purpose), logger.Err(err))
	}
	return err
}

// ConsumeTokenFields hace el compare-and-delete en un solo statement: el
// WHERE sobre token_hash garantiza que de dos confirms concurrentes solo uno
// ve una fila afectada.
func (s *Store) ConsumeTokenFields(ctx context.Context, userID int64, purpose, tokenHash string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		DELETE FROM purpose_token
		 WHERE user_id = $1 AND purpose = $2 AND token_hash = $3`,
		userID, purpose, tokenHash,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// --- API keys ---

func (s *Store) GetAPIKey(ctx context.Context, userID int64, slot string) (store.APIKeyRecord, bool, error) {
	var rec store.APIKeyRecord
	err := s.DB.QueryRow(ctx, `
		SELECT key_value, active, created_at, last_used_at
		  FROM api_key
		 WHERE user_id = $1 AND slot = $2`,
		userID, slot,
	).Scan(&rec.Key, &rec.Active, &rec.CreatedAt, &rec.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.APIKeyRecord{}, false, nil
		}
		return store.APIKeyRecord{}, false, err
	}
	return rec, true, nil
}

// SetAPIKey reemplaza la key del slot; last_used_at vuelve a NULL (key nueva, sin uso).
func (s *Store) SetAPIKey(ctx context.Context, userID int64, slot, value string, active bool, createdAt time.Time) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO api_key (user_id, slot, key_value, active, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (user_id, slot)
		DO UPDATE SET key_value = EXCLUDED.key_value,
		              active = EXCLUDED.active,
		              created_at = EXCLUDED.created_at,
		              last_used_at = NULL`,
		userID, slot, value, active, createdAt,
	)
	return err
}

func (s *Store) SetAPIKeyActive(ctx context.Context, userID int64, slot string, active bool) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE api_key SET active = $3 WHERE user_id = $1 AND slot = $2`,
		userID, slot, active,
	)
	return err
}

// ClearAPIKey borra la fila completa. Idempotente.
func (s *Store) ClearAPIKey(ctx context.Context, userID int64, slot string) error {
	_, err := s.DB.Exec(ctx,
		`DELETE FROM api_key WHERE user_id = $1 AND slot = $2`,
		userID, slot,
	)
	return err
}

// TouchLastUsed avanza last_used_at. GREATEST garantiza monotonía aunque
// lleguen writes fuera de orden.
func (s *Store) TouchLastUsed(ctx context.Context, userID int64, slot string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE api_key
		   SET last_used_at = GREATEST(COALESCE(last_used_at, 'epoch'::timestamptz), now())
		 WHERE user_id = $1 AND slot = $2`,
		userID, slot,
	)
	return err
}

// --- Usuario ---

func (s *Store) GetUserByID(ctx context.Context, userID int64) (store.User, bool, error) {
	var u store.User
	err := s.DB.QueryRow(ctx, `
		SELECT id, username, email, password_hash, email_verified
		  FROM app_user WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailVerified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.User{}, false, nil
		}
		return store.User{}, false, err
	}
	return u, true, nil
}

func (s *Store) LookupUserIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	var id int64
	err := s.DB.QueryRow(ctx,
		`SELECT id FROM app_user WHERE lower(email) = lower($1)`,
		email,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) SetEmailVerified(ctx context.Context, userID int64) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE app_user SET email_verified = TRUE WHERE id = $1`,
		userID,
	)
	return err
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, phc string) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE app_user SET password_hash = $2 WHERE id = $1`,
		userID, phc,
	)
	return err
}

func (s *Store) UpdateEmail(ctx context.Context, userID int64, email string) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE app_user SET email = lower($2), email_verified = FALSE WHERE id = $1`,
		userID, email,
	)
	return err
}
